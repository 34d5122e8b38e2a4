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

package output

import (
	"fmt"
	"io"

	"github.com/sirseerhq/issue-history/internal/history"
)

// Supported formats.
const (
	FormatTable  = "table"
	FormatNDJSON = "ndjson"
)

// OutputWriter defines the interface for writing series records.
type OutputWriter interface {
	// Write writes a single record (a Status or a history.Point).
	Write(record interface{}) error

	// Close flushes buffered output. It does not close the underlying
	// io.Writer.
	Close() error
}

// Status describes the fetch a series was built from.
type Status struct {
	Record     string `json:"record"`
	Repository string `json:"repository"`
	Complete   bool   `json:"complete"`
	Issues     int    `json:"issues"`
	Pages      int    `json:"pages"`
	Error      string `json:"error,omitempty"`
}

// NewStatus creates the status record for repository. A non-nil err marks
// the series incomplete.
func NewStatus(repository string, issues, pages int, err error) Status {
	s := Status{
		Record:     "status",
		Repository: repository,
		Complete:   err == nil,
		Issues:     issues,
		Pages:      pages,
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// New returns a writer for format. colorize only affects the table format.
func New(format string, w io.Writer, colorize bool) (OutputWriter, error) {
	switch format {
	case FormatNDJSON:
		return NewWriter(w), nil
	case FormatTable, "":
		return NewTableWriter(w, colorize), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// WriteSeries writes status followed by every point.
func WriteSeries(w OutputWriter, status Status, points []history.Point) error {
	if err := w.Write(status); err != nil {
		return err
	}
	for _, p := range points {
		if err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}
