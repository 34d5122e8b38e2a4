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

// Package paginate drives cursor pagination over a repository's issues.
//
// A Driver runs a small state machine:
//
//	Start -> Fetching -> Continuing -> Fetching -> ... -> Done
//	                  \-> Failed
//
// Pages are fetched strictly one after another because each cursor comes
// from the previous page. Cancellation is checked before every fetch, so an
// interrupt takes effect between pages rather than in the middle of one.
// Transient failures are retried with exponential backoff by the
// github.RetryClient the driver wraps around its client.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirseerhq/issue-history/internal/github"
	"github.com/sirseerhq/issue-history/internal/log"
)

// State is a state of the pagination state machine.
type State int

const (
	StateStart State = iota
	StateFetching
	StateContinuing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetching:
		return "fetching"
	case StateContinuing:
		return "continuing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrPageLimit is reported when Options.MaxPages is reached before the
	// last page.
	ErrPageLimit = errors.New("page limit reached before the last page")

	// ErrCursorStalled is reported when a page claims more data follows but
	// does not move the cursor forward.
	ErrCursorStalled = errors.New("pagination cursor did not advance")
)

// PageEvent is passed to Options.OnPage after each successful page.
type PageEvent struct {
	Page        int
	Issues      []github.Issue
	Cursor      string
	HasNextPage bool
	Total       int
}

// Options configures a Driver.
type Options struct {
	// PageSize is the number of issues requested per page.
	PageSize int

	// MaxPages bounds the number of pages fetched by one run. Zero means no limit.
	MaxPages int

	// Retry configures backoff for transient failures. Nil uses
	// github.DefaultRetryConfig.
	Retry *github.RetryConfig

	// StartCursor resumes after a previously fetched page.
	StartCursor string

	// Seed holds issues already fetched by an earlier, interrupted run.
	Seed []github.Issue

	// OnPage, if set, is called after each page has been accumulated.
	// Returning an error fails the run.
	OnPage func(PageEvent) error
}

// Result is the terminal outcome of a run.
type Result struct {
	State State
	// Issues holds every issue accumulated so far, including Seed. After a
	// failure it is the partial result.
	Issues []github.Issue
	// Pages is the number of pages fetched by this run.
	Pages int
	// Cursor is the end cursor of the last page fetched.
	Cursor string
	Err    error
}

// Complete reports whether the run reached the last page.
func (r *Result) Complete() bool {
	return r.State == StateDone
}

// Driver pages through every issue of one repository.
type Driver struct {
	client github.Client
	repo   github.RepoRef
	opts   Options
	state  State
}

// New creates a driver for repo. Transient failures from client are retried
// according to opts.Retry.
func New(client github.Client, repo github.RepoRef, opts Options) *Driver {
	if opts.PageSize <= 0 {
		opts.PageSize = github.MaxPageSize
	}
	return &Driver{
		client: github.NewRetryClient(client, opts.Retry),
		repo:   repo,
		opts:   opts,
		state:  StateStart,
	}
}

// State returns the current state of the driver.
func (d *Driver) State() State {
	return d.state
}

// Run fetches pages until the repository is exhausted, the context is
// canceled, the page limit is hit, or a non-transient error occurs.
func (d *Driver) Run(ctx context.Context) *Result {
	issues := append([]github.Issue(nil), d.opts.Seed...)
	cursor := d.opts.StartCursor
	pages := 0

	fail := func(err error) *Result {
		d.state = StateFailed
		return &Result{State: StateFailed, Issues: issues, Pages: pages, Cursor: cursor, Err: err}
	}

	for {
		d.state = StateFetching

		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("fetch interrupted after %d pages: %w", pages, err))
		}
		if d.opts.MaxPages > 0 && pages >= d.opts.MaxPages {
			return fail(fmt.Errorf("%w (%d pages)", ErrPageLimit, d.opts.MaxPages))
		}

		start := time.Now()
		page, err := d.client.FetchIssues(ctx, d.repo, github.FetchOptions{
			PageSize: d.opts.PageSize,
			After:    cursor,
		})
		if err != nil {
			return fail(fmt.Errorf("fetching page %d of %s: %w", pages+1, d.repo, err))
		}
		pages++
		issues = append(issues, page.Issues...)

		log.Debug("fetched page", "repository", d.repo.String(), "page", pages, "issues", len(page.Issues),
			"has_next_page", page.HasNextPage, "elapsed", time.Since(start).Round(time.Millisecond))

		stalled := page.HasNextPage && (page.EndCursor == "" || page.EndCursor == cursor)
		if page.EndCursor != "" {
			cursor = page.EndCursor
		}

		if d.opts.OnPage != nil {
			event := PageEvent{
				Page:        pages,
				Issues:      page.Issues,
				Cursor:      cursor,
				HasNextPage: page.HasNextPage,
				Total:       len(issues),
			}
			if err := d.opts.OnPage(event); err != nil {
				return fail(fmt.Errorf("page %d handler: %w", pages, err))
			}
		}

		if !page.HasNextPage {
			d.state = StateDone
			return &Result{State: StateDone, Issues: issues, Pages: pages, Cursor: cursor}
		}
		if stalled {
			return fail(fmt.Errorf("%w at page %d (cursor %q)", ErrCursorStalled, pages, cursor))
		}

		d.state = StateContinuing
	}
}
