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

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse is one scripted reply of a MockTransport. A non-nil Err is
// returned instead of a response.
type MockResponse struct {
	StatusCode int
	Body       string
	Err        error
}

// MockTransport is a Transport that replays scripted responses in order and
// keeps replaying the last one once the script runs out.
type MockTransport struct {
	mu        sync.Mutex
	Responses []MockResponse
	Queries   []string
}

// NewMockTransport creates a transport that replays responses.
func NewMockTransport(responses ...MockResponse) *MockTransport {
	return &MockTransport{Responses: responses}
}

// Send implements Transport.
func (m *MockTransport) Send(ctx context.Context, query string) (*RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Queries = append(m.Queries, query)
	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("mock transport has no scripted responses")
	}

	idx := len(m.Queries) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	r := m.Responses[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return &RawResponse{Body: []byte(r.Body), StatusCode: r.StatusCode}, nil
}

// CallCount returns the number of Send calls so far.
func (m *MockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

var (
	firstArgPattern = regexp.MustCompile(`first: (\d+)`)
	afterArgPattern = regexp.MustCompile(`after: "([^"]*)"`)
)

// DatasetTransport is a Transport that answers issue queries from a fixed
// in-memory dataset, honoring the first/after arguments the way the real API
// does. Cursors are opaque strings derived from the issue position.
type DatasetTransport struct {
	mu     sync.Mutex
	issues []Issue
	calls  int
	// OmitPageInfo drops pageInfo from responses so callers fall back to the
	// edge-count heuristic.
	OmitPageInfo bool
}

// NewDatasetTransport creates a transport serving issues in creation order.
func NewDatasetTransport(issues []Issue) *DatasetTransport {
	sorted := append([]Issue(nil), issues...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Number < sorted[j].Number
	})
	return &DatasetTransport{issues: sorted}
}

// Send implements Transport.
func (d *DatasetTransport) Send(ctx context.Context, query string) (*RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++

	m := firstArgPattern.FindStringSubmatch(query)
	if m == nil {
		return &RawResponse{StatusCode: http.StatusOK, Body: []byte(`{"errors":[{"message":"missing first argument"}]}`)}, nil
	}
	first, _ := strconv.Atoi(m[1])

	start := 0
	if a := afterArgPattern.FindStringSubmatch(query); a != nil {
		pos, err := strconv.Atoi(strings.TrimPrefix(a[1], "pos:"))
		if err != nil || !strings.HasPrefix(a[1], "pos:") {
			return &RawResponse{StatusCode: http.StatusOK, Body: []byte(`{"errors":[{"message":"invalid cursor"}]}`)}, nil
		}
		start = pos + 1
	}

	end := start + first
	if end > len(d.issues) {
		end = len(d.issues)
	}
	if start > end {
		start = end
	}

	edges := make([]map[string]interface{}, 0, end-start)
	for i := start; i < end; i++ {
		edges = append(edges, issueEdgeJSON(fmt.Sprintf("pos:%d", i), d.issues[i]))
	}

	issues := map[string]interface{}{"edges": edges}
	if !d.OmitPageInfo {
		var endCursor interface{}
		if end > start {
			endCursor = fmt.Sprintf("pos:%d", end-1)
		}
		issues["pageInfo"] = map[string]interface{}{
			"hasNextPage": end < len(d.issues),
			"endCursor":   endCursor,
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"repository": map[string]interface{}{"issues": issues},
		},
	})
	if err != nil {
		return nil, err
	}
	return &RawResponse{Body: body, StatusCode: http.StatusOK}, nil
}

// CallCount returns the number of Send calls so far.
func (d *DatasetTransport) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func issueEdgeJSON(cursor string, issue Issue) map[string]interface{} {
	var closedAt interface{}
	if issue.ClosedAt != nil {
		closedAt = issue.ClosedAt.Format(time.RFC3339)
	}
	return map[string]interface{}{
		"cursor": cursor,
		"node": map[string]interface{}{
			"number":    issue.Number,
			"createdAt": issue.CreatedAt.Format(time.RFC3339),
			"closedAt":  closedAt,
		},
	}
}

// MockClient is a mock implementation of the GitHub Client interface for testing.
type MockClient struct {
	// Pages to return, in order
	Pages []*IssuePage

	// Errors returned by successive FetchIssues calls before any page is served
	Errors []error

	// Info returned by GetRepositoryInfo; InfoError takes precedence
	Info      *RepositoryInfo
	InfoError error

	// Track calls for verification
	CallCount int
	LastRepo  RepoRef
	Opts      []FetchOptions

	served int
}

// NewMockClient creates a mock client serving pages in order.
func NewMockClient(pages ...*IssuePage) *MockClient {
	return &MockClient{Pages: pages}
}

// FetchIssues implements the Client interface
func (m *MockClient) FetchIssues(ctx context.Context, repo RepoRef, opts FetchOptions) (*IssuePage, error) {
	m.CallCount++
	m.LastRepo = repo
	m.Opts = append(m.Opts, opts)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		return nil, err
	}

	if m.served >= len(m.Pages) {
		return &IssuePage{}, nil
	}
	page := m.Pages[m.served]
	m.served++
	return page, nil
}

// GetRepositoryInfo implements the Client interface
func (m *MockClient) GetRepositoryInfo(ctx context.Context, repo RepoRef) (*RepositoryInfo, error) {
	if m.InfoError != nil {
		return nil, m.InfoError
	}
	if m.Info != nil {
		return m.Info, nil
	}
	total := 0
	for _, p := range m.Pages {
		total += len(p.Issues)
	}
	return &RepositoryInfo{TotalIssues: total}, nil
}
