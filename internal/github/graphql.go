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
	"errors"
	"fmt"

	"github.com/shurcooL/graphql"

	histerrors "github.com/sirseerhq/issue-history/internal/errors"
	"github.com/sirseerhq/issue-history/internal/giterror"
	"github.com/sirseerhq/issue-history/internal/log"
)

// ErrRepositoryInfoUnavailable is returned by GetRepositoryInfo on a client
// built around a bare Transport.
var ErrRepositoryInfoUnavailable = errors.New("repository info requires an HTTP-backed client")

// GraphQLClient implements Client against GitHub's GraphQL API. Issue pages
// go through the query builder, a Transport and the response parser so every
// failure is classified into the typed taxonomy. The repository info lookup
// is a typed shurcooL/graphql query sharing the same HTTP client.
type GraphQLClient struct {
	transport Transport
	gql       *graphql.Client
	inspector giterror.Inspector
}

// NewGraphQLClient creates a client for endpoint that authenticates with token.
// The client is configured with:
//   - Bearer authentication via the provided token
//   - Custom GraphQL endpoint URL (e.g., for GitHub Enterprise)
//   - A per-request timeout (30s unless overridden)
//   - Response size limiting to prevent memory issues
//   - User-Agent header identifying the tool
func NewGraphQLClient(token, endpoint string, opts ...TransportOption) *GraphQLClient {
	t := NewHTTPTransport(token, endpoint, opts...)
	return &GraphQLClient{
		transport: t,
		gql:       graphql.NewClient(t.endpoint, t.HTTPClient()),
		inspector: giterror.NewInspector(),
	}
}

// NewClientWithTransport creates a client that sends issue queries through t.
// GetRepositoryInfo is not available on such a client.
func NewClientWithTransport(t Transport) *GraphQLClient {
	return &GraphQLClient{
		transport: t,
		inspector: giterror.NewInspector(),
	}
}

// FetchIssues fetches one page of issues from repo.
func (c *GraphQLClient) FetchIssues(ctx context.Context, repo RepoRef, opts FetchOptions) (*IssuePage, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	query, err := BuildIssuesQuery(repo, pageSize, opts.After)
	if err != nil {
		return nil, err
	}
	log.Trace("issues query", "repository", repo.String(), "after", opts.After, "first", pageSize)

	resp, err := c.transport.Send(ctx, query)
	if err != nil {
		return nil, err
	}

	return ParseIssuesPage(resp.Body, resp.StatusCode, pageSize)
}

// GetRepositoryInfo retrieves total and open issue counts with a single
// minimal query.
func (c *GraphQLClient) GetRepositoryInfo(ctx context.Context, repo RepoRef) (*RepositoryInfo, error) {
	if c.gql == nil {
		return nil, ErrRepositoryInfoUnavailable
	}

	var query struct {
		Repository struct {
			Issues struct {
				TotalCount graphql.Int
			}
			OpenIssues struct {
				TotalCount graphql.Int
			} `graphql:"openIssues: issues(states: OPEN)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner": graphql.String(repo.Owner),
		"name":  graphql.String(repo.Name),
	}

	if err := c.gql.Query(ctx, &query, variables); err != nil {
		return nil, c.mapError(ctx, err, repo)
	}

	return &RepositoryInfo{
		TotalIssues: int(query.Repository.Issues.TotalCount),
		OpenIssues:  int(query.Repository.OpenIssues.TotalCount),
	}, nil
}

// mapError maps shurcooL/graphql errors, which only carry a message, onto
// the sentinel errors with actionable messages.
func (c *GraphQLClient) mapError(ctx context.Context, err error, repo RepoRef) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	// Check rate limit first, as 403 can be both auth and rate limit
	if c.inspector.IsRateLimitError(err) {
		return fmt.Errorf("GitHub API rate limit exceeded (%v): %w", err, histerrors.ErrRateLimit)
	}

	if c.inspector.IsAuthError(err) {
		return fmt.Errorf("GitHub API authentication failed (%v): %w", err, histerrors.ErrInvalidToken)
	}

	if c.inspector.IsNotFoundError(err) {
		return fmt.Errorf("repository '%s' not found: %w", repo, histerrors.ErrRepoNotFound)
	}

	if c.inspector.IsNetworkError(err) {
		return &histerrors.ConnectionError{Err: err}
	}

	return fmt.Errorf("failed to get repository info: %w", err)
}
