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

// Package metadata types define the structures used for tracking and
// persisting information about fetch operations.
package metadata

import (
	"time"
)

// Status values recorded in FetchResults.
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
)

// FetchMetadata is the record of a single fetch operation: what was asked
// for, how it went and what came back.
type FetchMetadata struct {
	ToolVersion string       `json:"tool_version"`
	QueryShape  string       `json:"query_shape"`
	FetchID     string       `json:"fetch_id"`
	Parameters  FetchParams  `json:"parameters"`
	Results     FetchResults `json:"results"`
	ResumedFrom string       `json:"resumed_from,omitempty"`
}

// FetchParams captures the input parameters of a fetch.
type FetchParams struct {
	Owner      string `json:"owner"`
	Repository string `json:"repository"`
	PageSize   int    `json:"page_size"`
	MaxPages   int    `json:"max_pages,omitempty"`
	Endpoint   string `json:"endpoint"`
}

// FetchResults contains statistics about a finished fetch.
type FetchResults struct {
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	TotalIssues  int        `json:"total_issues"`
	OpenIssues   int        `json:"open_issues"`
	FirstIssue   uint64     `json:"first_issue_number"`
	LastIssue    uint64     `json:"last_issue_number"`
	OldestIssue  *time.Time `json:"oldest_created_at,omitempty"`
	NewestClose  *time.Time `json:"newest_closed_at,omitempty"`
	Pages        int        `json:"pages"`
	APICallCount int        `json:"api_calls_made"`
	RetryCount   int        `json:"retries"`
	Duration     string     `json:"fetch_duration"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  time.Time  `json:"completed_at"`
}
