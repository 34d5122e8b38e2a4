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

// Package main implements the issue-history command-line interface.
// It pages through every issue of a GitHub repository over the GraphQL API
// and prints how many issues were open over time.
//
// Usage:
//
//	issue-history <repo-owner> <repo-name> [flags]
//
// The GitHub token is read from the terminal without echo, or as a single
// line from stdin when stdin is not a terminal:
//
//	issue-history golang go --interval 24h
//	pass show github/token | issue-history golang go --format ndjson
//
// Interrupted or failed fetches leave a checkpoint behind; rerun with
// --resume to continue from the last page that was fetched.
//
// Exit codes:
//   - 0: Success
//   - 1: General error
//   - 2: Authentication, repository not found or rate limit
//   - 3: Network error
package main
