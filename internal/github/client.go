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

import "context"

// Client defines the interface for interacting with GitHub's API.
// This interface allows for easy mocking in tests.
type Client interface {
	// FetchIssues retrieves one page of issues, oldest first. It supports
	// cursor-based pagination through opts.After; the page size is set by
	// opts.PageSize.
	FetchIssues(ctx context.Context, repo RepoRef, opts FetchOptions) (*IssuePage, error)

	// GetRepositoryInfo retrieves the total and open issue counts.
	// Used for progress tracking and ETA calculation.
	GetRepositoryInfo(ctx context.Context, repo RepoRef) (*RepositoryInfo, error)
}
