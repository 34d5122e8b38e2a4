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

// Package metadata tracks and persists statistics about fetch operations:
// API calls and retries made, pages and issues fetched, the range of issue
// numbers and dates covered, and whether the fetch completed.
//
// Metadata is saved as JSON files alongside checkpoints so that a slow or
// failed fetch can be diagnosed after the fact.
package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sirseerhq/issue-history/internal/github"
)

// QueryShape names the GraphQL query the issues were fetched with. Bump it
// when the query changes in a way that affects the results.
const QueryShape = "issues-created-asc-v1"

// Tracker collects statistics during a fetch operation. Create one at the
// start of each fetch. Its methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	fetchID   string
	startTime time.Time
	apiCalls  int
	retries   int
	pages     int
	stats     IssueStats
}

// IssueStats holds the numerical and temporal range of the fetched issues.
type IssueStats struct {
	Total       int
	Open        int
	FirstIssue  uint64    // Lowest issue number seen
	LastIssue   uint64    // Highest issue number seen
	OldestIssue time.Time // Earliest creation time
	NewestClose time.Time // Latest close time
}

// New creates a tracker with a fresh random fetch ID.
func New() *Tracker {
	return &Tracker{
		fetchID:   uuid.NewString(),
		startTime: time.Now(),
	}
}

// FetchID returns the identifier of this fetch.
func (t *Tracker) FetchID() string {
	return t.fetchID
}

// IncrementAPICall records one request sent to the API.
func (t *Tracker) IncrementAPICall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apiCalls++
}

// IncrementRetry records one retried request. A retry is also an API call.
func (t *Tracker) IncrementRetry() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retries++
	t.apiCalls++
}

// RecordPage records a fetched page and updates the issue statistics.
func (t *Tracker) RecordPage(issues []github.Issue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pages++
	t.recordIssues(issues)
}

// RecordSeed records issues carried over from a checkpoint without counting
// a page or an API call.
func (t *Tracker) RecordSeed(issues []github.Issue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordIssues(issues)
}

func (t *Tracker) recordIssues(issues []github.Issue) {
	for _, issue := range issues {
		t.stats.Total++

		if t.stats.FirstIssue == 0 || issue.Number < t.stats.FirstIssue {
			t.stats.FirstIssue = issue.Number
		}
		if issue.Number > t.stats.LastIssue {
			t.stats.LastIssue = issue.Number
		}

		if t.stats.OldestIssue.IsZero() || issue.CreatedAt.Before(t.stats.OldestIssue) {
			t.stats.OldestIssue = issue.CreatedAt
		}
		if issue.ClosedAt == nil {
			t.stats.Open++
		} else if issue.ClosedAt.After(t.stats.NewestClose) {
			t.stats.NewestClose = *issue.ClosedAt
		}
	}
}

// Stats returns a snapshot of the issue statistics.
func (t *Tracker) Stats() IssueStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// GenerateMetadata creates the metadata record for the fetch. fetchErr is
// the error that ended the fetch, or nil if it completed. resumedFrom is the
// fetch ID of the checkpoint the fetch resumed from, if any.
func (t *Tracker) GenerateMetadata(toolVersion string, params FetchParams, fetchErr error, resumedFrom string) *FetchMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()

	completedAt := time.Now()

	results := FetchResults{
		Status:       StatusComplete,
		TotalIssues:  t.stats.Total,
		OpenIssues:   t.stats.Open,
		FirstIssue:   t.stats.FirstIssue,
		LastIssue:    t.stats.LastIssue,
		Pages:        t.pages,
		APICallCount: t.apiCalls,
		RetryCount:   t.retries,
		Duration:     completedAt.Sub(t.startTime).Round(time.Millisecond).String(),
		StartedAt:    t.startTime.UTC(),
		CompletedAt:  completedAt.UTC(),
	}
	if fetchErr != nil {
		results.Status = StatusIncomplete
		results.Error = fetchErr.Error()
	}
	if !t.stats.OldestIssue.IsZero() {
		oldest := t.stats.OldestIssue
		results.OldestIssue = &oldest
	}
	if !t.stats.NewestClose.IsZero() {
		newest := t.stats.NewestClose
		results.NewestClose = &newest
	}

	return &FetchMetadata{
		ToolVersion: toolVersion,
		QueryShape:  QueryShape,
		FetchID:     t.fetchID,
		Parameters:  params,
		Results:     results,
		ResumedFrom: resumedFrom,
	}
}

// FileName returns the name SaveMetadata uses for m.
func FileName(m *FetchMetadata) string {
	repo := strings.ReplaceAll(m.Parameters.Owner+"-"+m.Parameters.Repository, "/", "-")
	return fmt.Sprintf("%s-%d-%s.metadata.json", repo, m.Results.StartedAt.Unix(), m.FetchID)
}

// SaveMetadata writes m as indented JSON into dir using a temporary file
// and rename, and returns the final path.
func SaveMetadata(m *FetchMetadata, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	path := filepath.Join(dir, FileName(m))
	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata file: %w", err)
	}

	if err := WriteMetadataToWriter(m, file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to close metadata file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to save metadata file: %w", err)
	}

	return path, nil
}

// WriteMetadataToWriter serializes metadata as indented JSON to w.
func WriteMetadataToWriter(m *FetchMetadata, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(m)
}
