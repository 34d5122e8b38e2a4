// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	histerrors "github.com/sirseerhq/issue-history/internal/errors"
	"github.com/sirseerhq/issue-history/internal/github"
	"github.com/sirseerhq/issue-history/internal/history"
	"github.com/sirseerhq/issue-history/internal/metadata"
	"github.com/sirseerhq/issue-history/internal/paginate"
	"github.com/sirseerhq/issue-history/internal/state"
	"github.com/sirseerhq/issue-history/test/testutil"
)

type runResult struct {
	code   int
	stdout string
	stderr string
}

// env isolates a test from the user's home, working directory and
// environment, and holds the state directory used by every run.
type env struct {
	t        *testing.T
	stateDir string
	config   string
}

func newEnv(t *testing.T, endpoint string) *env {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		"GITHUB_GRAPHQL_ENDPOINT",
		"ISSUE_HISTORY_PAGE_SIZE",
		"ISSUE_HISTORY_MAX_PAGES",
		"ISSUE_HISTORY_STATE_DIR",
		"ISSUE_HISTORY_TIMEOUT",
		"ISSUE_HISTORY_RETRY_ATTEMPTS",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())

	stateDir := filepath.Join(t.TempDir(), "state")
	return &env{
		t:        t,
		stateDir: stateDir,
		config:   testutil.WriteConfig(t, t.TempDir(), endpoint, stateDir, ""),
	}
}

func (e *env) run(stdin string, args ...string) runResult {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(append([]string(nil), args...), "--config", e.config)
	code := execute(context.Background(), args, streams{
		in:  strings.NewReader(stdin),
		out: &stdout,
		err: &stderr,
	})
	return runResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func (e *env) fetch(args ...string) runResult {
	e.t.Helper()
	return e.run(testutil.TestToken+"\n", append([]string{"octocat", "hello-world"}, args...)...)
}

func (e *env) checkpointPath() string {
	return state.FilePath(e.stateDir, "octocat/hello-world")
}

func TestFetch_EndToEndNDJSON(t *testing.T) {
	issues := testutil.GenerateIssues(23, 1)
	server := testutil.NewIssuesServer(t, issues)
	e := newEnv(t, server.Endpoint())

	res := e.fetch("--page-size", "5", "--format", "ndjson")
	require.Equal(t, 0, res.code, res.stderr)

	status, points := testutil.ParseNDJSONSeries(t, res.stdout)
	assert.True(t, status.Complete)
	assert.Equal(t, "octocat/hello-world", status.Repository)
	assert.Equal(t, 23, status.Issues)
	assert.Equal(t, 5, status.Pages)
	testutil.AssertSeries(t, points, history.Aggregate(issues))

	assert.Equal(t, 5, server.IssueRequestCount())
	assert.Contains(t, res.stderr, "Fetched 23 issues from octocat/hello-world in 5 pages")
	assert.Contains(t, res.stderr, "peak:")
	assert.NotContains(t, res.stderr, testutil.TestToken)
	testutil.AssertFileNotExists(t, e.checkpointPath())

	files := testutil.LoadMetadataFiles(t, e.stateDir, "octocat", "hello-world")
	require.Len(t, files, 1)
	m := files[0]
	assert.Equal(t, metadata.StatusComplete, m.Results.Status)
	assert.Equal(t, 23, m.Results.TotalIssues)
	assert.Equal(t, 5, m.Results.Pages)
	assert.Equal(t, 6, m.Results.APICallCount, "five pages plus the repository info query")
	assert.Equal(t, uint64(1), m.Results.FirstIssue)
	assert.Equal(t, uint64(23), m.Results.LastIssue)
}

func TestFetch_TableWithInterval(t *testing.T) {
	issues := testutil.GenerateIssues(30, 2)
	server := testutil.NewIssuesServer(t, issues)
	e := newEnv(t, server.Endpoint())

	res := e.fetch("--interval", "24h")
	require.Equal(t, 0, res.code, res.stderr)

	want, err := history.Resample(history.Aggregate(issues), 24*time.Hour)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, len(want)+1)
	assert.True(t, strings.HasPrefix(lines[0], "TIME"))
	assert.NotContains(t, res.stdout, "INCOMPLETE")
	for i, p := range want {
		assert.Equal(t, fmt.Sprintf("%-20s  %d", p.Time.Format(time.RFC3339), p.Open), lines[i+1])
	}
}

func TestFetch_OutputFile(t *testing.T) {
	issues := testutil.GenerateIssues(4, 3)
	server := testutil.NewIssuesServer(t, issues)
	e := newEnv(t, server.Endpoint())
	out := filepath.Join(t.TempDir(), "series.ndjson")

	res := e.fetch("--format", "ndjson", "--output", out)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	_, points := testutil.ParseNDJSONSeries(t, string(data))
	testutil.AssertSeries(t, points, history.Aggregate(issues))
}

func TestFetch_RetriesTransientFailures(t *testing.T) {
	issues := testutil.GenerateIssues(6, 4)
	server := testutil.NewIssuesServer(t, issues)
	server.FailNext(http.StatusServiceUnavailable, http.StatusServiceUnavailable)
	e := newEnv(t, server.Endpoint())

	res := e.fetch("--page-size", "3", "--format", "ndjson")
	require.Equal(t, 0, res.code, res.stderr)

	assert.Equal(t, 4, server.IssueRequestCount(), "two failed attempts plus two pages")
	_, points := testutil.ParseNDJSONSeries(t, res.stdout)
	testutil.AssertSeries(t, points, history.Aggregate(issues))

	files := testutil.LoadMetadataFiles(t, e.stateDir, "octocat", "hello-world")
	require.Len(t, files, 1)
	assert.Equal(t, 2, files[0].Results.RetryCount)
}

func TestFetch_Unauthorized(t *testing.T) {
	server := testutil.NewIssuesServer(t, testutil.GenerateIssues(3, 5))
	e := newEnv(t, server.Endpoint())

	res := e.run("not-the-token\n", "octocat", "hello-world")

	assert.Equal(t, 2, res.code)
	assert.Equal(t, 1, server.IssueRequestCount(), "401 must not be retried")
	assert.Contains(t, res.stderr, "Error: ")
	assert.Contains(t, res.stderr, "Hint: GitHub rejected the token")
	assert.Empty(t, res.stdout)
}

func TestFetch_NetworkFailure(t *testing.T) {
	e := newEnv(t, testutil.ClosedEndpoint(t))

	res := e.fetch()

	assert.Equal(t, 3, res.code, res.stderr)
	assert.Contains(t, res.stderr, "Network connection failed")
}

func TestFetch_ResumeAfterFailure(t *testing.T) {
	issues := testutil.GenerateIssues(23, 6)
	server := testutil.NewIssuesServer(t, issues)
	server.FailFrom(3, http.StatusBadGateway)
	e := newEnv(t, server.Endpoint())

	res := e.fetch("--page-size", "5", "--format", "ndjson")
	require.Equal(t, 1, res.code, res.stderr)
	assert.Empty(t, res.stdout, "no partial output without --partial")
	assert.Contains(t, res.stderr, "rerun with --resume")

	cp, err := state.Load(e.checkpointPath())
	require.NoError(t, err)
	assert.Len(t, cp.Issues, 10)
	assert.Equal(t, 2, cp.Pages)
	firstFetchID := cp.FetchID

	server.Recover()
	before := server.IssueRequestCount()

	res = e.fetch("--page-size", "5", "--format", "ndjson", "--resume")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, 3, server.IssueRequestCount()-before, "resume starts after the checkpointed cursor")

	status, points := testutil.ParseNDJSONSeries(t, res.stdout)
	assert.True(t, status.Complete)
	assert.Equal(t, 23, status.Issues)
	testutil.AssertSeries(t, points, history.Aggregate(issues))
	testutil.AssertFileNotExists(t, e.checkpointPath())

	var resumed *metadata.FetchMetadata
	for _, m := range testutil.LoadMetadataFiles(t, e.stateDir, "octocat", "hello-world") {
		if m.ResumedFrom != "" {
			resumed = &m
		}
	}
	require.NotNil(t, resumed, "resumed fetch should record its origin")
	assert.Equal(t, firstFetchID, resumed.ResumedFrom)
	assert.Equal(t, 23, resumed.Results.TotalIssues)
}

func TestFetch_PartialOutput(t *testing.T) {
	issues := testutil.GenerateIssues(12, 7)
	server := testutil.NewIssuesServer(t, issues)
	server.FailFrom(2, http.StatusNotFound)
	e := newEnv(t, server.Endpoint())

	res := e.fetch("--page-size", "5", "--format", "ndjson", "--partial")

	assert.Equal(t, 2, res.code, res.stderr)
	assert.Equal(t, 2, server.IssueRequestCount())
	status, points := testutil.ParseNDJSONSeries(t, res.stdout)
	assert.False(t, status.Complete)
	assert.NotEmpty(t, status.Error)
	assert.Equal(t, 5, status.Issues)
	testutil.AssertSeries(t, points, history.Aggregate(issues[:5]))
}

func TestFetch_PartialTableIsMarked(t *testing.T) {
	server := testutil.NewIssuesServer(t, testutil.GenerateIssues(12, 8))
	server.FailFrom(2, http.StatusUnauthorized)
	e := newEnv(t, server.Endpoint())

	res := e.fetch("--page-size", "5", "--partial")

	assert.Equal(t, 2, res.code)
	assert.True(t, strings.HasPrefix(res.stdout, "INCOMPLETE: partial history of octocat/hello-world"), res.stdout)
}

func TestFetch_MaxPages(t *testing.T) {
	server := testutil.NewIssuesServer(t, testutil.GenerateIssues(20, 9))
	e := newEnv(t, server.Endpoint())

	res := e.fetch("--page-size", "5", "--max-pages", "2")

	assert.Equal(t, 1, res.code)
	assert.Equal(t, 2, server.IssueRequestCount())
	assert.Contains(t, res.stderr, "page limit reached")
	testutil.AssertFileExists(t, e.checkpointPath())
}

func TestFetch_EmptyRepository(t *testing.T) {
	server := testutil.NewIssuesServer(t, nil)
	e := newEnv(t, server.Endpoint())

	res := e.fetch("--format", "ndjson")

	require.Equal(t, 0, res.code, res.stderr)
	status, points := testutil.ParseNDJSONSeries(t, res.stdout)
	assert.True(t, status.Complete)
	assert.Empty(t, points)
}

func TestFetch_InputErrors(t *testing.T) {
	server := testutil.NewIssuesServer(t, testutil.GenerateIssues(1, 10))

	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr string
	}{
		{name: "missing name", stdin: "t\n", args: []string{"octocat"}, wantErr: "accepts 2 arg(s)"},
		{name: "too many args", stdin: "t\n", args: []string{"a", "b", "c"}, wantErr: "accepts 2 arg(s)"},
		{name: "slash in owner", stdin: "t\n", args: []string{"octo/cat", "hello"}, wantErr: "invalid repository"},
		{name: "empty name", stdin: "t\n", args: []string{"octocat", " "}, wantErr: "invalid repository"},
		{name: "empty token", stdin: "\n", args: []string{"octocat", "hello-world"}, wantErr: "token is empty"},
		{name: "no token", stdin: "", args: []string{"octocat", "hello-world"}, wantErr: "token is empty"},
		{name: "page size too large", stdin: "t\n", args: []string{"octocat", "hello-world", "--page-size", "500"}, wantErr: "invalid configuration"},
		{name: "interval too fine", stdin: "t\n", args: []string{"octocat", "hello-world", "--interval", "1ns"}, wantErr: "interval must be at least 1s"},
		{name: "unknown format", stdin: "t\n", args: []string{"octocat", "hello-world", "--format", "xml"}, wantErr: "unknown output format"},
		{name: "resume without checkpoint", stdin: "t\n", args: []string{"octocat", "hello-world", "--resume"}, wantErr: "no checkpoint found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, server.Endpoint())
			res := e.run(tt.stdin, tt.args...)

			assert.Equal(t, 1, res.code)
			assert.Contains(t, res.stderr, tt.wantErr)
			assert.Empty(t, res.stdout)
		})
	}
	assert.Equal(t, 0, server.IssueRequestCount(), "input errors must fail before any issue request")
}

func TestFetch_ResumeRejectsOtherRepository(t *testing.T) {
	server := testutil.NewIssuesServer(t, testutil.GenerateIssues(1, 11))
	e := newEnv(t, server.Endpoint())

	require.NoError(t, state.Save(&state.Checkpoint{Repository: "someone/else", Cursor: "pos:0"}, e.checkpointPath()))

	res := e.fetch("--resume")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "belongs to someone/else")
}

func TestFetch_NonRetryableStatuses(t *testing.T) {
	tests := []struct {
		status   int
		wantCode int
	}{
		{http.StatusNotFound, 2},
		{http.StatusForbidden, 1},
		{http.StatusBadRequest, 1},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := testutil.NewErrorServer(t, tt.status)
			e := newEnv(t, server.URL+"/graphql")

			res := e.fetch("--format", "ndjson")

			assert.Equal(t, tt.wantCode, res.code, res.stderr)
			assert.Contains(t, res.stderr, fmt.Sprintf("http status %d", tt.status))
			assert.Empty(t, res.stdout)
			testutil.AssertFileNotExists(t, e.checkpointPath())
		})
	}
}

func TestFetch_ResumeRejectsTamperedCheckpoint(t *testing.T) {
	issues := testutil.GenerateIssues(12, 12)
	server := testutil.NewIssuesServer(t, issues)
	server.FailFrom(2, http.StatusBadGateway)
	e := newEnv(t, server.Endpoint())

	res := e.fetch("--page-size", "5")
	require.Equal(t, 1, res.code, res.stderr)

	var cp state.Checkpoint
	testutil.ReadJSON(t, e.checkpointPath(), &cp)
	cp.Cursor = "pos:10"
	testutil.WriteJSON(t, e.checkpointPath(), cp)

	server.Recover()
	before := server.IssueRequestCount()

	res = e.fetch("--page-size", "5", "--resume")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "checkpoint is corrupted")
	assert.Equal(t, before, server.IssueRequestCount(), "a tampered checkpoint must not be used")
}

func TestPreflight(t *testing.T) {
	ctx := context.Background()
	repo := github.RepoRef{Owner: "octocat", Name: "hello-world"}
	apiCalls := func(tracker *metadata.Tracker) int {
		return tracker.GenerateMetadata("test", metadata.FetchParams{}, nil, "").Results.APICallCount
	}

	t.Run("counts", func(t *testing.T) {
		client := &github.MockClient{Info: &github.RepositoryInfo{TotalIssues: 42, OpenIssues: 7}}
		tracker := metadata.New()
		assert.Equal(t, 42, preflight(ctx, client, repo, tracker))
		assert.Equal(t, 1, apiCalls(tracker))
	})

	t.Run("unsupported endpoint", func(t *testing.T) {
		client := &github.MockClient{InfoError: fmt.Errorf("wrapped: %w", github.ErrRepositoryInfoUnavailable)}
		tracker := metadata.New()
		assert.Equal(t, 0, preflight(ctx, client, repo, tracker))
		assert.Equal(t, 0, apiCalls(tracker))
	})

	t.Run("request failure is not fatal", func(t *testing.T) {
		client := &github.MockClient{InfoError: &histerrors.HTTPError{StatusCode: http.StatusUnauthorized}}
		tracker := metadata.New()
		assert.Equal(t, 0, preflight(ctx, client, repo, tracker))
		assert.Equal(t, 1, apiCalls(tracker))
	})
}

func TestMapErrorToExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"invalid token", &histerrors.HTTPError{StatusCode: 401}, 2},
		{"not found", fmt.Errorf("wrapped: %w", &histerrors.GraphQLError{Messages: []string{"Could not resolve to a Repository with the name 'x/y'."}}), 2},
		{"rate limit", &histerrors.HTTPError{StatusCode: 429}, 2},
		{"network", &histerrors.ConnectionError{Err: errors.New("dial tcp: refused")}, 3},
		{"server error", &histerrors.HTTPError{StatusCode: 502}, 1},
		{"malformed", &histerrors.MalformedResponseError{Reason: "missing data"}, 1},
		{"page limit", paginate.ErrPageLimit, 1},
		{"cancelled", context.Canceled, 1},
		{"generic", errors.New("something"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToExitCode(tt.err))
		})
	}
}

func TestVersionFlag(t *testing.T) {
	e := newEnv(t, github.DefaultEndpoint)
	res := e.run("", "--version")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "issue-history version")
}
