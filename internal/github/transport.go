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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	histerrors "github.com/sirseerhq/issue-history/internal/errors"
	"github.com/sirseerhq/issue-history/internal/log"
	"github.com/sirseerhq/issue-history/pkg/version"
)

const (
	// DefaultEndpoint is the public GitHub GraphQL endpoint.
	DefaultEndpoint = "https://api.github.com/graphql"

	// DefaultTimeout bounds a single request, including reading the body.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 10 * 1024 * 1024
)

// Transport sends a GraphQL query and returns the raw response. HTTP error
// statuses are not errors at this layer; only failures to complete the
// round-trip are.
type Transport interface {
	Send(ctx context.Context, query string) (*RawResponse, error)
}

// HTTPTransport is the Transport used against the real API. It reuses one
// http.Client, and therefore one connection pool, for every page.
type HTTPTransport struct {
	endpoint   string
	httpClient *http.Client
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*transportOptions)

type transportOptions struct {
	timeout time.Duration
	base    http.RoundTripper
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) TransportOption {
	return func(o *transportOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBaseTransport replaces the pooled network transport, mainly for tests.
func WithBaseTransport(rt http.RoundTripper) TransportOption {
	return func(o *transportOptions) {
		o.base = rt
	}
}

// NewHTTPTransport creates a transport that authenticates every request with
// token as a bearer credential and posts queries to endpoint.
func NewHTTPTransport(token, endpoint string, opts ...TransportOption) *HTTPTransport {
	o := transportOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.base == nil {
		o.base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "bearer"})

	return &HTTPTransport{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: o.timeout,
			Transport: &oauth2.Transport{
				Source: src,
				Base: &headerTransport{
					userAgent: version.UserAgent(),
					base:      o.base,
				},
			},
		},
	}
}

// HTTPClient exposes the authenticated client so other GraphQL callers can
// share its connection pool.
func (t *HTTPTransport) HTTPClient() *http.Client {
	return t.httpClient
}

type graphqlRequest struct {
	Query string `json:"query"`
}

// Send posts query and returns the body and status code.
func (t *HTTPTransport) Send(ctx context.Context, query string) (*RawResponse, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL request: %w", err)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &histerrors.ConnectionError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &histerrors.ConnectionError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	log.Debug("graphql response", "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start).Round(time.Millisecond))

	return &RawResponse{Body: body, StatusCode: resp.StatusCode}, nil
}

// headerTransport sets the client identifier and caps response sizes.
// Authorization is added by the oauth2.Transport wrapping it.
type headerTransport struct {
	userAgent string
	base      http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.Body != nil {
		resp.Body = &limitedReader{ReadCloser: resp.Body, limit: maxResponseBytes}
	}
	return resp, nil
}

// limitedReader wraps a ReadCloser with a size limit to prevent excessive memory usage.
type limitedReader struct {
	io.ReadCloser
	limit int64
	read  int64
}

// Read implements io.Reader with size limit enforcement.
func (lr *limitedReader) Read(p []byte) (n int, err error) {
	if lr.read >= lr.limit {
		return 0, fmt.Errorf("response size exceeded limit of %d bytes", lr.limit)
	}

	remaining := lr.limit - lr.read
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err = lr.ReadCloser.Read(p)
	lr.read += int64(n)

	return n, err
}
