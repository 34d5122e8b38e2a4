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
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirseerhq/issue-history/internal/giterror"
	"github.com/sirseerhq/issue-history/internal/log"
)

// RetryConfig configures the retry behavior for API calls
type RetryConfig struct {
	// MaxAttempts is the total number of tries per request, including the first.
	MaxAttempts int
	// InitialBackoff is the wait before the second attempt
	InitialBackoff time.Duration
	// MaxBackoff caps any single wait
	MaxBackoff time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
	// OnRetry, if set, is called before each wait.
	OnRetry func(RetryEvent)
}

// RetryEvent describes a failed attempt that is about to be retried.
type RetryEvent struct {
	Operation string
	Attempt   int
	Wait      time.Duration
	Err       error
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient wraps a GitHub client with automatic retry logic for
// transient failures (connection errors, HTTP 429 and 5xx) using
// exponential backoff. Every other error is returned on the first attempt.
type RetryClient struct {
	client    Client
	config    *RetryConfig
	inspector giterror.Inspector
}

// NewRetryClient creates a new RetryClient with the given configuration
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryClient{
		client:    client,
		config:    config,
		inspector: giterror.NewInspector(),
	}
}

// FetchIssues implements the Client interface with retry logic
func (r *RetryClient) FetchIssues(ctx context.Context, repo RepoRef, opts FetchOptions) (*IssuePage, error) {
	return withRetry(ctx, r, "fetch issues", func() (*IssuePage, error) {
		return r.client.FetchIssues(ctx, repo, opts)
	})
}

// GetRepositoryInfo implements the Client interface with retry logic
func (r *RetryClient) GetRepositoryInfo(ctx context.Context, repo RepoRef) (*RepositoryInfo, error) {
	return withRetry(ctx, r, "repository info", func() (*RepositoryInfo, error) {
		return r.client.GetRepositoryInfo(ctx, repo)
	})
}

func withRetry[T any](ctx context.Context, r *RetryClient, op string, call func() (T, error)) (T, error) {
	var zero T
	attempts := r.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Don't retry on non-retryable errors
		if !r.inspector.IsRetryable(err) {
			return zero, err
		}

		// Don't retry if context is cancelled
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt == attempts {
			break
		}

		backoff := r.calculateBackoff(attempt - 1)
		log.Warn("transient GitHub API failure, retrying",
			"operation", op, "attempt", attempt, "max_attempts", attempts, "wait", backoff.Round(time.Millisecond), "error", err)
		if r.config.OnRetry != nil {
			r.config.OnRetry(RetryEvent{Operation: op, Attempt: attempt, Wait: backoff, Err: err})
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// calculateBackoff calculates the backoff duration for the given retry
// (0 for the first retry), with ±10% jitter.
func (r *RetryClient) calculateBackoff(retry int) time.Duration {
	multiplier := r.config.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(multiplier, float64(retry))
	if r.config.MaxBackoff > 0 && backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	jitter := backoff * 0.1 * (2*rand.Float64() - 1)
	return time.Duration(backoff + jitter)
}
