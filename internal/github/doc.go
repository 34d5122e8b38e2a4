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

// Package github fetches issue history data from GitHub's GraphQL API.
//
// A page of issues is produced by three small pieces:
//   - BuildIssuesQuery renders the query for a repository, page size and cursor
//   - a Transport posts it with bearer authentication and returns body + status
//   - ParseIssuesPage turns the body into an IssuePage or a typed error
//
// GraphQLClient combines them behind the Client interface, and RetryClient
// adds bounded exponential backoff for transient failures. MockClient,
// MockTransport and DatasetTransport are test doubles.
//
// Basic usage:
//
//	client := github.NewRetryClient(github.NewGraphQLClient(token, github.DefaultEndpoint), nil)
//	page, err := client.FetchIssues(ctx, github.RepoRef{Owner: "golang", Name: "go"}, github.FetchOptions{
//	    PageSize: 100,
//	})
//	if err != nil {
//	    // Handle error
//	}
//	for _, issue := range page.Issues {
//	    // Process issue
//	}
package github
