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
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/sirseerhq/issue-history/internal/history"
)

// timeColumnWidth fits an RFC 3339 UTC timestamp.
const timeColumnWidth = len("2006-01-02T15:04:05Z")

// TableWriter renders the series as two aligned columns.
type TableWriter struct {
	mu         sync.Mutex
	out        *bufio.Writer
	header     *color.Color
	warn       *color.Color
	wroteTitle bool
	rows       int
}

// NewTableWriter creates a table writer. With colorize set, the header is
// bold and the incomplete banner is yellow.
func NewTableWriter(w io.Writer, colorize bool) *TableWriter {
	header := color.New(color.Bold)
	warn := color.New(color.FgYellow, color.Bold)
	if colorize {
		header.EnableColor()
		warn.EnableColor()
	} else {
		header.DisableColor()
		warn.DisableColor()
	}
	return &TableWriter{
		out:    bufio.NewWriter(w),
		header: header,
		warn:   warn,
	}
}

// Write accepts a Status or a history.Point.
func (t *TableWriter) Write(record interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch r := record.(type) {
	case Status:
		return t.writeStatus(r)
	case history.Point:
		if err := t.writeTitle(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(t.out, "%-*s  %d\n", timeColumnWidth, r.Time.UTC().Format(time.RFC3339), r.Open)
		if err == nil {
			t.rows++
		}
		return err
	default:
		return fmt.Errorf("table output cannot render %T", record)
	}
}

func (t *TableWriter) writeStatus(s Status) error {
	if s.Complete {
		return nil
	}
	msg := fmt.Sprintf("INCOMPLETE: partial history of %s (%d issues from %d pages)", s.Repository, s.Issues, s.Pages)
	if s.Error != "" {
		msg += ": " + s.Error
	}
	_, err := t.warn.Fprintln(t.out, msg)
	return err
}

func (t *TableWriter) writeTitle() error {
	if t.wroteTitle {
		return nil
	}
	t.wroteTitle = true
	// Pad before colouring so escape codes do not affect alignment.
	_, err := t.header.Fprintln(t.out, fmt.Sprintf("%-*s  %s", timeColumnWidth, "TIME", "OPEN"))
	return err
}

// Rows returns the number of points written.
func (t *TableWriter) Rows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

// Close writes the header if no rows were written and flushes the table.
func (t *TableWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writeTitle(); err != nil {
		return err
	}
	return t.out.Flush()
}
