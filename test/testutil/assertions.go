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

package testutil

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirseerhq/issue-history/internal/history"
	"github.com/sirseerhq/issue-history/internal/metadata"
	"github.com/sirseerhq/issue-history/internal/output"
)

// ParseNDJSONSeries splits NDJSON output into its status record and points.
func ParseNDJSONSeries(t *testing.T, data string) (output.Status, []history.Point) {
	t.Helper()

	var (
		status    output.Status
		points    []history.Point
		sawStatus bool
	)
	scanner := bufio.NewScanner(strings.NewReader(data))
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if text == "" {
			continue
		}
		if !sawStatus {
			if err := json.Unmarshal([]byte(text), &status); err != nil || status.Record != "status" {
				t.Fatalf("line %d: expected status record, got %s", line, text)
			}
			sawStatus = true
			continue
		}
		var p history.Point
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			t.Fatalf("line %d: invalid point %s: %v", line, text, err)
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !sawStatus {
		t.Fatal("output has no status record")
	}
	return status, points
}

// AssertSeries checks that got equals want point by point.
func AssertSeries(t *testing.T, got, want []history.Point) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("series has %d points, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Time.Equal(want[i].Time) || got[i].Open != want[i].Open {
			t.Fatalf("point %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// LoadMetadataFiles reads every metadata file for owner/name in dir.
func LoadMetadataFiles(t *testing.T, dir, owner, name string) []metadata.FetchMetadata {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, owner+"-"+name+"-*.metadata.json"))
	if err != nil {
		t.Fatalf("Failed to glob metadata files: %v", err)
	}

	out := make([]metadata.FetchMetadata, 0, len(matches))
	for _, path := range matches {
		var m metadata.FetchMetadata
		ReadJSON(t, path, &m)
		out = append(out, m)
	}
	return out
}

// AssertContainsString checks if a string contains a substring
func AssertContainsString(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("Expected string to contain %q, got: %s", needle, haystack)
	}
}

// AssertNotContainsString checks if a string does not contain a substring
func AssertNotContainsString(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		t.Errorf("Expected string to NOT contain %q, got: %s", needle, haystack)
	}
}

// AssertFileExists checks that a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks that a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Expected file to not exist: %s", path)
	}
}
