package giterror

import (
	"errors"
	"strings"

	histerrors "github.com/sirseerhq/issue-history/internal/errors"
)

// Inspector provides methods for analyzing GitHub API errors.
type Inspector interface {
	// IsAuthError returns true if the error represents an authentication or authorization failure.
	IsAuthError(err error) bool

	// IsNotFoundError returns true if the error represents a resource not found error.
	IsNotFoundError(err error) bool

	// IsRateLimitError returns true if the error represents a rate limit error.
	IsRateLimitError(err error) bool

	// IsNetworkError returns true if the error represents a network connectivity error.
	IsNetworkError(err error) bool

	// IsRetryable returns true if repeating the same request may succeed.
	IsRetryable(err error) bool
}

// GitHubErrorInspector implements the Inspector interface for GitHub API errors.
type GitHubErrorInspector struct{}

// NewInspector creates a new GitHubErrorInspector.
func NewInspector() Inspector {
	return &GitHubErrorInspector{}
}

// IsAuthError checks if the error is an authentication or authorization error.
// Rate limit responses also use 403, so they are excluded here.
func (i *GitHubErrorInspector) IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, histerrors.ErrInvalidToken) {
		return true
	}
	if i.IsRateLimitError(err) {
		return false
	}
	var httpErr *histerrors.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 403
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "bad credentials") ||
		strings.Contains(errStr, "authentication")
}

// IsNotFoundError checks if the error is a not found error.
func (i *GitHubErrorInspector) IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, histerrors.ErrRepoNotFound) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "404") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "could not resolve to a repository")
}

// IsRateLimitError checks if the error is a rate limit error.
func (i *GitHubErrorInspector) IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, histerrors.ErrRateLimit) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429")
}

// IsNetworkError checks if the error is a network connectivity error.
func (i *GitHubErrorInspector) IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, histerrors.ErrNetworkFailure) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "dial tcp") ||
		strings.Contains(errStr, "tls handshake") ||
		strings.Contains(errStr, "network is unreachable")
}

// IsRetryable trusts the typed taxonomy when the error carries one and
// otherwise treats rate limits and network failures as transient.
func (i *GitHubErrorInspector) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if isTyped(err) {
		return histerrors.IsRetryable(err)
	}
	return i.IsRateLimitError(err) || i.IsNetworkError(err)
}

func isTyped(err error) bool {
	var (
		connErr      *histerrors.ConnectionError
		httpErr      *histerrors.HTTPError
		gqlErr       *histerrors.GraphQLError
		malformedErr *histerrors.MalformedResponseError
	)
	return errors.As(err, &connErr) ||
		errors.As(err, &httpErr) ||
		errors.As(err, &gqlErr) ||
		errors.As(err, &malformedErr)
}

// UserAction returns a short, actionable hint for the failure, or an empty
// string when there is nothing the user can do beyond reading the error.
func UserAction(err error) string {
	i := &GitHubErrorInspector{}
	switch {
	case err == nil:
		return ""
	case i.IsRateLimitError(err):
		return "GitHub API rate limit exceeded. Wait for the limit to reset, then rerun with --resume"
	case i.IsAuthError(err):
		return "GitHub rejected the token. Check that it is valid and has read access to the repository"
	case i.IsNotFoundError(err):
		return "Repository not found. Check the owner and name and your access permissions"
	case errors.Is(err, histerrors.ErrMalformedResponse):
		return "GitHub returned an unexpected response shape. The API contract may have changed"
	case i.IsNetworkError(err):
		return "Network connection failed. Check your internet connection, then rerun with --resume"
	}
	return ""
}
