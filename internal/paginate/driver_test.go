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

package paginate

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	histerrors "github.com/sirseerhq/issue-history/internal/errors"
	"github.com/sirseerhq/issue-history/internal/github"
)

var testRepo = github.RepoRef{Owner: "octocat", Name: "hello-world"}

func fastRetry() *github.RetryConfig {
	return &github.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func syntheticIssues(n int) []github.Issue {
	base := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	issues := make([]github.Issue, 0, n)
	for i := 0; i < n; i++ {
		created := base.Add(time.Duration(i) * time.Hour)
		issue := github.Issue{Number: uint64(i + 1), CreatedAt: created}
		if i%2 == 1 {
			closed := created.Add(90 * time.Minute)
			issue.ClosedAt = &closed
		}
		issues = append(issues, issue)
	}
	return issues
}

func numbers(issues []github.Issue) []uint64 {
	out := make([]uint64, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Number)
	}
	return out
}

func TestDriver_PaginatesWithoutGapsOrDuplicates(t *testing.T) {
	const total = 23
	dataset := syntheticIssues(total)
	want := numbers(dataset)

	for _, omitPageInfo := range []bool{false, true} {
		for pageSize := 1; pageSize <= total+2; pageSize++ {
			transport := github.NewDatasetTransport(dataset)
			transport.OmitPageInfo = omitPageInfo

			driver := New(github.NewClientWithTransport(transport), testRepo, Options{PageSize: pageSize, Retry: fastRetry()})
			result := driver.Run(context.Background())

			require.NoError(t, result.Err, "pageSize=%d omitPageInfo=%v", pageSize, omitPageInfo)
			assert.Equal(t, StateDone, result.State)
			assert.Equal(t, want, numbers(result.Issues), "pageSize=%d omitPageInfo=%v", pageSize, omitPageInfo)

			wantPages := (total + pageSize - 1) / pageSize
			if omitPageInfo && total%pageSize == 0 {
				// a full last page looks like there could be more
				wantPages++
			}
			assert.Equal(t, wantPages, result.Pages, "pageSize=%d omitPageInfo=%v", pageSize, omitPageInfo)
			assert.Equal(t, wantPages, transport.CallCount())
		}
	}
}

func TestDriver_TwoIssuesPageSizeOne(t *testing.T) {
	dataset := syntheticIssues(2)
	transport := github.NewDatasetTransport([]github.Issue{dataset[1], dataset[0]})

	var hasNext []bool
	driver := New(github.NewClientWithTransport(transport), testRepo, Options{
		PageSize: 1,
		Retry:    fastRetry(),
		OnPage: func(e PageEvent) error {
			hasNext = append(hasNext, e.HasNextPage)
			return nil
		},
	})

	result := driver.Run(context.Background())

	require.NoError(t, result.Err)
	assert.True(t, result.Complete())
	assert.Equal(t, StateDone, driver.State())
	assert.Equal(t, 2, transport.CallCount())
	assert.Equal(t, []bool{true, false}, hasNext)
	assert.Equal(t, []uint64{1, 2}, numbers(result.Issues), "issues should be in creation order")
}

func TestDriver_RetriesTransientStatus(t *testing.T) {
	okBody := `{"data":{"repository":{"issues":{"pageInfo":{"hasNextPage":false,"endCursor":"c1"},` +
		`"edges":[{"cursor":"c1","node":{"number":1,"createdAt":"2024-01-01T00:00:00Z","closedAt":null}}]}}}}`

	transport := github.NewMockTransport(
		github.MockResponse{StatusCode: http.StatusServiceUnavailable, Body: "Service Unavailable"},
		github.MockResponse{StatusCode: http.StatusServiceUnavailable, Body: "Service Unavailable"},
		github.MockResponse{StatusCode: http.StatusOK, Body: okBody},
	)

	var retries int
	retry := fastRetry()
	retry.OnRetry = func(github.RetryEvent) { retries++ }

	result := New(github.NewClientWithTransport(transport), testRepo, Options{PageSize: 10, Retry: retry}).Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 3, transport.CallCount())
	assert.Equal(t, 2, retries)
	assert.Len(t, result.Issues, 1)
}

func TestDriver_RetriesExhausted(t *testing.T) {
	transport := github.NewMockTransport(
		github.MockResponse{Err: &histerrors.ConnectionError{Err: errors.New("dial tcp: i/o timeout")}},
	)

	result := New(github.NewClientWithTransport(transport), testRepo, Options{Retry: fastRetry()}).Run(context.Background())

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 3, transport.CallCount())
	assert.ErrorIs(t, result.Err, histerrors.ErrNetworkFailure)
	assert.False(t, result.Complete())
}

func TestDriver_FailsFastOnNonRetryableErrors(t *testing.T) {
	tests := []struct {
		name     string
		response github.MockResponse
		sentinel error
	}{
		{
			name:     "unauthorized",
			response: github.MockResponse{StatusCode: http.StatusUnauthorized, Body: `{"message":"Bad credentials"}`},
			sentinel: histerrors.ErrInvalidToken,
		},
		{
			name:     "not found status",
			response: github.MockResponse{StatusCode: http.StatusNotFound, Body: `{"message":"Not Found"}`},
			sentinel: histerrors.ErrRepoNotFound,
		},
		{
			name:     "graphql error",
			response: github.MockResponse{StatusCode: http.StatusOK, Body: `{"errors":[{"message":"Something went wrong while executing your query."}]}`},
			sentinel: histerrors.ErrGraphQL,
		},
		{
			name:     "malformed body",
			response: github.MockResponse{StatusCode: http.StatusOK, Body: `{"data":{"repository":{"pullRequests":{}}}}`},
			sentinel: histerrors.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := github.NewMockTransport(tt.response)
			result := New(github.NewClientWithTransport(transport), testRepo, Options{Retry: fastRetry()}).Run(context.Background())

			assert.Equal(t, StateFailed, result.State)
			assert.Equal(t, 1, transport.CallCount())
			assert.ErrorIs(t, result.Err, tt.sentinel)
		})
	}
}

func TestDriver_CancellationBetweenPages(t *testing.T) {
	transport := github.NewDatasetTransport(syntheticIssues(10))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := New(github.NewClientWithTransport(transport), testRepo, Options{
		PageSize: 3,
		Retry:    fastRetry(),
		OnPage: func(e PageEvent) error {
			if e.Page == 2 {
				cancel()
			}
			return nil
		},
	})

	result := driver.Run(ctx)

	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 2, transport.CallCount(), "no request should start after cancellation")
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, numbers(result.Issues), "partial result keeps fetched pages")
	assert.Equal(t, "pos:5", result.Cursor)
}

func TestDriver_MaxPages(t *testing.T) {
	transport := github.NewDatasetTransport(syntheticIssues(10))

	result := New(github.NewClientWithTransport(transport), testRepo, Options{PageSize: 2, MaxPages: 3, Retry: fastRetry()}).Run(context.Background())

	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, ErrPageLimit)
	assert.Equal(t, 3, result.Pages)
	assert.Len(t, result.Issues, 6)
}

func TestDriver_StalledCursor(t *testing.T) {
	page := &github.IssuePage{
		Issues:      syntheticIssues(1),
		HasNextPage: true,
		EndCursor:   "same",
	}
	client := github.NewMockClient(page, page, page)

	result := New(client, testRepo, Options{StartCursor: "same", Retry: fastRetry()}).Run(context.Background())

	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, ErrCursorStalled)
	assert.Equal(t, 1, client.CallCount)
}

func TestDriver_ThreadsCursorThroughClient(t *testing.T) {
	issues := syntheticIssues(3)
	client := github.NewMockClient(
		&github.IssuePage{Issues: issues[:2], HasNextPage: true, EndCursor: "c2"},
		&github.IssuePage{Issues: issues[2:], HasNextPage: false, EndCursor: "c3"},
	)

	var events []PageEvent
	result := New(client, testRepo, Options{
		PageSize: 2,
		Retry:    fastRetry(),
		OnPage: func(e PageEvent) error {
			events = append(events, e)
			return nil
		},
	}).Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, "c3", result.Cursor)
	assert.Equal(t, testRepo, client.LastRepo)
	assert.Equal(t, []github.FetchOptions{
		{PageSize: 2, After: ""},
		{PageSize: 2, After: "c2"},
	}, client.Opts)

	require.Len(t, events, 2)
	assert.Equal(t, PageEvent{Page: 1, Issues: issues[:2], Cursor: "c2", HasNextPage: true, Total: 2}, events[0])
	assert.Equal(t, PageEvent{Page: 2, Issues: issues[2:], Cursor: "c3", HasNextPage: false, Total: 3}, events[1])
}

func TestDriver_ClientErrors(t *testing.T) {
	page := &github.IssuePage{Issues: syntheticIssues(1), EndCursor: "c1"}

	tests := []struct {
		name      string
		errs      []error
		wantState State
		wantCalls int
	}{
		{
			name:      "connection reset is retried",
			errs:      []error{&histerrors.ConnectionError{Err: errors.New("connection reset by peer")}},
			wantState: StateDone,
			wantCalls: 2,
		},
		{
			name:      "rate limit is retried",
			errs:      []error{&histerrors.HTTPError{StatusCode: http.StatusTooManyRequests}},
			wantState: StateDone,
			wantCalls: 2,
		},
		{
			name:      "not found fails at once",
			errs:      []error{&histerrors.HTTPError{StatusCode: http.StatusNotFound}},
			wantState: StateFailed,
			wantCalls: 1,
		},
		{
			name: "persistent outage exhausts attempts",
			errs: []error{
				&histerrors.HTTPError{StatusCode: http.StatusBadGateway},
				&histerrors.HTTPError{StatusCode: http.StatusBadGateway},
				&histerrors.HTTPError{StatusCode: http.StatusBadGateway},
			},
			wantState: StateFailed,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := github.NewMockClient(page)
			client.Errors = append([]error(nil), tt.errs...)

			result := New(client, testRepo, Options{Retry: fastRetry()}).Run(context.Background())

			assert.Equal(t, tt.wantState, result.State)
			assert.Equal(t, tt.wantCalls, client.CallCount)
			if tt.wantState == StateDone {
				assert.Len(t, result.Issues, 1)
			} else {
				assert.Error(t, result.Err)
				assert.Empty(t, result.Issues)
			}
		})
	}
}

func TestDriver_ResumesFromSeed(t *testing.T) {
	dataset := syntheticIssues(5)
	transport := github.NewDatasetTransport(dataset)

	result := New(github.NewClientWithTransport(transport), testRepo, Options{
		PageSize:    2,
		Retry:       fastRetry(),
		StartCursor: "pos:1",
		Seed:        dataset[:2],
	}).Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, numbers(result.Issues))
	assert.Equal(t, 2, result.Pages)
}

func TestDriver_OnPageErrorFailsRun(t *testing.T) {
	transport := github.NewDatasetTransport(syntheticIssues(4))
	boom := errors.New("disk full")

	result := New(github.NewClientWithTransport(transport), testRepo, Options{
		PageSize: 2,
		Retry:    fastRetry(),
		OnPage:   func(PageEvent) error { return boom },
	}).Run(context.Background())

	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, boom)
	assert.Equal(t, 1, transport.CallCount())
}

func TestDriver_EmptyRepository(t *testing.T) {
	transport := github.NewDatasetTransport(nil)

	result := New(github.NewClientWithTransport(transport), testRepo, Options{Retry: fastRetry()}).Run(context.Background())

	require.NoError(t, result.Err)
	assert.Equal(t, StateDone, result.State)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 1, result.Pages)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "start", StateStart.String())
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "continuing", StateContinuing.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
