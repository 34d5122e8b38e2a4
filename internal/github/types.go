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
	"fmt"
	"time"
)

// RepoRef identifies a repository by owner and name.
type RepoRef struct {
	Owner string
	Name  string
}

// String returns the "owner/name" form of the reference.
func (r RepoRef) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// Issue is the subset of a GitHub issue needed to rebuild its open/closed
// history. ClosedAt is nil while the issue is still open.
type Issue struct {
	Number    uint64     `json:"number"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// IssuePage is one page of issues together with the information needed to
// request the next one.
type IssuePage struct {
	Issues      []Issue
	HasNextPage bool
	EndCursor   string
}

// FetchOptions configures how a page of issues is fetched.
type FetchOptions struct {
	// PageSize controls how many issues to fetch per page.
	// Defaults to 100 if not specified, which is also GitHub's maximum.
	PageSize int

	// After is the cursor for pagination.
	// Empty string fetches from the beginning.
	// Use IssuePage.EndCursor from the previous response for the next page.
	After string
}

// RawResponse is an undecoded HTTP response from the GraphQL endpoint.
type RawResponse struct {
	Body       []byte
	StatusCode int
}

// RepositoryInfo contains issue totals for a repository, used for progress
// reporting before the paginated fetch starts.
type RepositoryInfo struct {
	TotalIssues int
	OpenIssues  int
}

const (
	// MaxPageSize is the largest page GitHub's GraphQL API will serve.
	MaxPageSize = 100

	defaultPageSize = MaxPageSize
)
