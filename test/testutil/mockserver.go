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

// Package testutil provides common test helpers for issue-history
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirseerhq/issue-history/internal/github"
)

// TestToken is the token IssuesServer accepts unless configured otherwise.
const TestToken = "test-token"

// IssuesServer is a GraphQL server that answers issue queries from an
// in-memory dataset and repository-info queries with matching counts. Issue
// requests can be made to fail with scripted HTTP statuses.
type IssuesServer struct {
	*httptest.Server

	// Token is the bearer token every request must carry. Empty disables
	// the check.
	Token string

	dataset  *github.DatasetTransport
	issues   []github.Issue
	requests atomic.Int32
	issueReq atomic.Int32

	mu         sync.Mutex
	failQueue  []int
	failFrom   int
	failStatus int
}

// NewIssuesServer starts a server for issues and stops it when the test ends.
func NewIssuesServer(t *testing.T, issues []github.Issue) *IssuesServer {
	t.Helper()

	s := &IssuesServer{
		Token:   TestToken,
		dataset: github.NewDatasetTransport(issues),
		issues:  issues,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Endpoint returns the GraphQL endpoint URL of the server.
func (s *IssuesServer) Endpoint() string {
	return s.URL + "/graphql"
}

// FailNext makes the next issue requests answer with statuses, in order.
func (s *IssuesServer) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQueue = append(s.failQueue, statuses...)
}

// FailFrom makes every issue request from the n-th one (1-based) on answer
// with status, until Recover is called.
func (s *IssuesServer) FailFrom(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFrom, s.failStatus = n, status
}

// Recover clears all scripted failures.
func (s *IssuesServer) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQueue = nil
	s.failFrom, s.failStatus = 0, 0
}

// RequestCount returns the number of requests received, of any kind.
func (s *IssuesServer) RequestCount() int {
	return int(s.requests.Load())
}

// IssueRequestCount returns the number of issue page requests received,
// including failed ones.
func (s *IssuesServer) IssueRequestCount() int {
	return int(s.issueReq.Load())
}

func (s *IssuesServer) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	if r.Method != http.MethodPost || r.URL.Path != "/graphql" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if s.Token != "" && !strings.EqualFold(r.Header.Get("Authorization"), "bearer "+s.Token) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	if strings.Contains(req.Query, "openIssues") {
		s.repositoryInfo(w)
		return
	}

	n := int(s.issueReq.Add(1))
	if status := s.scriptedFailure(n); status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(http.StatusText(status)))
		return
	}

	resp, err := s.dataset.Send(r.Context(), req.Query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func (s *IssuesServer) scriptedFailure(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.failQueue) > 0 {
		status := s.failQueue[0]
		s.failQueue = s.failQueue[1:]
		return status
	}
	if s.failFrom > 0 && n >= s.failFrom {
		return s.failStatus
	}
	return 0
}

func (s *IssuesServer) repositoryInfo(w http.ResponseWriter) {
	open := 0
	for _, issue := range s.issues {
		if issue.ClosedAt == nil {
			open++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"repository": map[string]interface{}{
				"issues":     map[string]int{"totalCount": len(s.issues)},
				"openIssues": map[string]int{"totalCount": open},
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewErrorServer creates a mock server that always returns the specified error
func NewErrorServer(t *testing.T, statusCode int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"message":%q}`, http.StatusText(statusCode))))
	}))
	t.Cleanup(server.Close)
	return server
}

// ClosedEndpoint returns a GraphQL endpoint URL nothing is listening on.
func ClosedEndpoint(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/graphql"
	server.Close()
	return endpoint
}
