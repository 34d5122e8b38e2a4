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

// Package errors defines sentinel errors and the typed failure taxonomy for
// fetching issues. Callers branch on the types (or on the sentinels via
// errors.Is) to decide whether a failure is worth retrying and which exit
// code the CLI returns.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for consistent error handling and exit code mapping
var (
	// ErrInvalidToken indicates GitHub authentication failed.
	// Maps to exit code 2.
	ErrInvalidToken = errors.New("invalid github token")

	// ErrRepoNotFound indicates the specified repository does not exist or is not accessible.
	// Maps to exit code 2.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrNetworkFailure indicates a network connection problem.
	// Maps to exit code 3.
	ErrNetworkFailure = errors.New("network connection failed")

	// ErrRateLimit indicates GitHub API rate limit has been exceeded.
	// Maps to exit code 2.
	ErrRateLimit = errors.New("github rate limit exceeded")

	// ErrHTTPStatus matches every non-200 response.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrGraphQL matches errors reported inside the GraphQL response body.
	ErrGraphQL = errors.New("graphql request failed")

	// ErrMalformedResponse indicates the response did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// ConnectionError reports that the request never produced a response:
// DNS, TLS, dial, timeout or a body that could not be read.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is reports ErrNetworkFailure so callers can match the sentinel.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrNetworkFailure
}

// HTTPError is a completed request whose status was not 200.
type HTTPError struct {
	StatusCode int
	// Message is the "message" field of a GitHub error body, if any.
	Message string
}

func (e *HTTPError) Error() string {
	text := http.StatusText(e.StatusCode)
	if e.Message != "" {
		return fmt.Sprintf("http status %d %s: %s", e.StatusCode, text, e.Message)
	}
	return fmt.Sprintf("http status %d %s", e.StatusCode, text)
}

// Is maps well-known statuses onto the sentinel errors.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrHTTPStatus:
		return true
	case ErrInvalidToken:
		return e.StatusCode == http.StatusUnauthorized
	case ErrRepoNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRateLimit:
		return e.StatusCode == http.StatusTooManyRequests ||
			(e.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(e.Message), "rate limit"))
	}
	return false
}

// Retryable reports whether the status is transient: 429 or any 5xx.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// GraphQLError carries the messages of a top-level "errors" array. GitHub
// returns these with status 200, so they are checked on every response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) == 0 {
		return "graphql error"
	}
	return "graphql error: " + strings.Join(e.Messages, "; ")
}

// Is maps GraphQL messages onto sentinels where GitHub uses a stable phrasing.
func (e *GraphQLError) Is(target error) bool {
	switch target {
	case ErrGraphQL:
		return true
	case ErrRepoNotFound:
		return e.contains("could not resolve to a repository")
	case ErrRateLimit:
		return e.contains("rate limit")
	}
	return false
}

func (e *GraphQLError) contains(substr string) bool {
	for _, msg := range e.Messages {
		if strings.Contains(strings.ToLower(msg), substr) {
			return true
		}
	}
	return false
}

// MalformedResponseError reports a body that is not JSON or lacks the
// expected data.repository.issues.edges shape.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// IsRetryable reports whether err is a transient failure: a connection
// error, or an HTTP 429/5xx. GraphQL and malformed-response errors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}

	return false
}
