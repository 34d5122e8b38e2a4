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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sirseerhq/issue-history/internal/config"
	"github.com/sirseerhq/issue-history/internal/credentials"
	"github.com/sirseerhq/issue-history/internal/github"
	"github.com/sirseerhq/issue-history/internal/history"
	"github.com/sirseerhq/issue-history/internal/log"
	"github.com/sirseerhq/issue-history/internal/metadata"
	"github.com/sirseerhq/issue-history/internal/output"
	"github.com/sirseerhq/issue-history/internal/paginate"
	"github.com/sirseerhq/issue-history/internal/state"
	"github.com/sirseerhq/issue-history/pkg/version"
)

// fetchOptions holds the command-line flags.
type fetchOptions struct {
	configPath string
	pageSize   int
	maxPages   int
	format     string
	interval   time.Duration
	outputFile string
	resume     bool
	partial    bool
	verbosity  int
}

func newRootCommand(s streams) *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "issue-history <repo-owner> <repo-name>",
		Short: "Rebuild the open-issue count history of a GitHub repository",
		Long: `issue-history pages through every issue of a GitHub repository using the
GraphQL API and prints the number of open issues after every open and close
event, oldest first.

The GitHub token is prompted for on the terminal (input is not echoed). When
stdin is not a terminal a single line is read from it instead. The token is
never accepted as a flag or environment variable.

Settings are read from .issue-history.yaml or ~/.issue-history/config.yaml
and can be overridden by ISSUE_HISTORY_* environment variables and flags.`,
		Example: `  issue-history golang go
  issue-history golang go --interval 168h --format ndjson --output go.ndjson
  issue-history kubernetes kubernetes --resume -v`,
		Args:          cobra.ExactArgs(2),
		Version:       version.Version,
		SilenceUsage:  true, // Don't show usage on error
		SilenceErrors: true, // We'll handle error printing ourselves
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := github.RepoRef{Owner: strings.TrimSpace(args[0]), Name: strings.TrimSpace(args[1])}
			return runFetch(cmd.Context(), s, repo, opts, cmd.Flags())
		},
	}

	cmd.SetIn(s.in)
	cmd.SetOut(s.out)
	cmd.SetErr(s.err)

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to config file (default: .issue-history.yaml or ~/.issue-history/config.yaml)")
	f.IntVar(&opts.pageSize, "page-size", 100, "Issues requested per page (1-100)")
	f.IntVar(&opts.maxPages, "max-pages", 0, "Stop after this many pages (0 = no limit)")
	f.StringVar(&opts.format, "format", output.FormatTable, "Output format: table or ndjson")
	f.DurationVar(&opts.interval, "interval", 0, "Resample the series to one point per interval, e.g. 24h")
	f.StringVar(&opts.outputFile, "output", "", "Output file path (default: stdout)")
	f.BoolVar(&opts.resume, "resume", false, "Continue from the checkpoint left by an interrupted fetch")
	f.BoolVar(&opts.partial, "partial", false, "Print the partial series, marked incomplete, when the fetch fails")
	f.CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v progress, -vv debug, -vvv trace)")

	return cmd
}

// loadConfig resolves the effective configuration for repo: file, then
// environment, then flags the user set explicitly.
func loadConfig(repo github.RepoRef, opts fetchOptions, flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfigForRepo(opts.configPath, repo.String())
	if err != nil {
		return nil, err
	}

	if flags.Changed("page-size") {
		cfg.Defaults.PageSize = opts.pageSize
	}
	if flags.Changed("max-pages") {
		cfg.Defaults.MaxPages = opts.maxPages
	}
	if flags.Changed("format") {
		cfg.Defaults.OutputFormat = opts.format
	}
	if flags.Changed("interval") {
		cfg.Defaults.Interval = opts.interval
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validateRepo(repo github.RepoRef) error {
	for _, part := range []string{repo.Owner, repo.Name} {
		if part == "" || strings.ContainsAny(part, "/ \t") {
			return fmt.Errorf("invalid repository %q: expected <repo-owner> <repo-name>", repo.Owner+" "+repo.Name)
		}
	}
	return nil
}

// runFetch executes a full fetch of repo and writes the resulting series.
func runFetch(ctx context.Context, s streams, repo github.RepoRef, opts fetchOptions, flags *pflag.FlagSet) error {
	log.Initialize(opts.verbosity, s.err)

	if err := validateRepo(repo); err != nil {
		return err
	}

	cfg, err := loadConfig(repo, opts, flags)
	if err != nil {
		return err
	}

	token, err := credentials.Prompt(s.in, s.err)
	if err != nil {
		return err
	}
	log.Debug("configuration loaded", "endpoint", cfg.GitHub.GraphQLEndpoint, "page_size", cfg.Defaults.PageSize,
		"max_pages", cfg.Defaults.MaxPages, "state_dir", cfg.Defaults.StateDir)

	client := github.NewGraphQLClient(token.Value(), cfg.GitHub.GraphQLEndpoint, github.WithTimeout(cfg.GitHub.Timeout))
	statePath := state.FilePath(cfg.Defaults.StateDir, repo.String())
	tracker := metadata.New()

	var (
		seed        []github.Issue
		startCursor string
		resumedFrom string
	)
	if opts.resume {
		cp, loadErr := state.Load(statePath)
		if loadErr != nil {
			return loadErr
		}
		if cp.Repository != repo.String() {
			return fmt.Errorf("checkpoint %s belongs to %s, not %s", statePath, cp.Repository, repo)
		}
		seed, startCursor, resumedFrom = cp.Issues, cp.Cursor, cp.FetchID
		tracker.RecordSeed(seed)
		log.Info("resuming fetch", "repository", repo.String(), "issues", len(seed), "pages", cp.Pages, "checkpoint", statePath)
	}

	total := preflight(ctx, client, repo, tracker)

	f := &fetcher{
		repo:      repo,
		tracker:   tracker,
		statePath: statePath,
		pageSize:  cfg.Defaults.PageSize,
		total:     total,
		issues:    append([]github.Issue(nil), seed...),
		started:   time.Now(),
	}

	driver := paginate.New(client, repo, paginate.Options{
		PageSize:    cfg.Defaults.PageSize,
		MaxPages:    cfg.Defaults.MaxPages,
		StartCursor: startCursor,
		Seed:        seed,
		Retry: &github.RetryConfig{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			InitialBackoff:    cfg.Retry.InitialBackoff,
			MaxBackoff:        cfg.Retry.MaxBackoff,
			BackoffMultiplier: 2,
			OnRetry:           func(github.RetryEvent) { tracker.IncrementRetry() },
		},
		OnPage: f.onPage,
	})

	result := driver.Run(ctx)
	log.ProgressClear()

	params := metadata.FetchParams{
		Owner:      repo.Owner,
		Repository: repo.Name,
		PageSize:   cfg.Defaults.PageSize,
		MaxPages:   cfg.Defaults.MaxPages,
		Endpoint:   cfg.GitHub.GraphQLEndpoint,
	}
	m := tracker.GenerateMetadata(version.Version, params, result.Err, resumedFrom)
	if path, saveErr := metadata.SaveMetadata(m, cfg.Defaults.StateDir); saveErr != nil {
		log.Warn("could not save fetch metadata", "error", saveErr)
	} else {
		log.Info("fetch metadata saved", "path", path)
	}

	if result.Complete() {
		if err := state.Delete(statePath); err != nil {
			log.Warn("could not remove checkpoint", "path", statePath, "error", err)
		}
	} else if f.checkpointed {
		fmt.Fprintf(s.err, "Fetched %d issues before the failure; checkpoint saved to %s (rerun with --resume to continue)\n",
			len(result.Issues), statePath)
	}

	if !result.Complete() && !(opts.partial && len(result.Issues) > 0) {
		return result.Err
	}

	points := history.Aggregate(result.Issues)
	series, err := history.Resample(points, cfg.Defaults.Interval)
	if err != nil {
		if result.Err != nil {
			return fmt.Errorf("%w (and resampling the partial series failed: %v)", result.Err, err)
		}
		return err
	}
	status := output.NewStatus(repo.String(), len(result.Issues), result.Pages, result.Err)
	if err := writeSeries(s, opts.outputFile, cfg.Defaults.OutputFormat, status, series); err != nil {
		if result.Err != nil {
			return fmt.Errorf("%w (and writing the partial series failed: %v)", result.Err, err)
		}
		return err
	}

	if result.Err != nil {
		return result.Err
	}

	printSummary(s.err, repo, result, points, m)
	return nil
}

// preflight asks for the repository's issue counts to size the progress
// display. Failures are not fatal: the first page reports them properly.
func preflight(ctx context.Context, client github.Client, repo github.RepoRef, tracker *metadata.Tracker) int {
	info, err := client.GetRepositoryInfo(ctx, repo)
	if errors.Is(err, github.ErrRepositoryInfoUnavailable) {
		return 0
	}
	tracker.IncrementAPICall()
	if err != nil {
		log.Debug("repository info unavailable", "repository", repo.String(), "error", err)
		return 0
	}
	log.Info("repository found", "repository", repo.String(), "issues", info.TotalIssues, "open", info.OpenIssues)
	return info.TotalIssues
}

// fetcher carries per-run state for the page hook.
type fetcher struct {
	repo         github.RepoRef
	tracker      *metadata.Tracker
	statePath    string
	pageSize     int
	total        int
	issues       []github.Issue
	started      time.Time
	checkpointed bool
	warned       bool
}

// onPage records metadata, shows progress and checkpoints every page that
// is not the last one.
func (f *fetcher) onPage(e paginate.PageEvent) error {
	f.tracker.IncrementAPICall()
	f.tracker.RecordPage(e.Issues)
	f.issues = append(f.issues, e.Issues...)

	f.progress(e)

	if !e.HasNextPage {
		return nil
	}

	cp := &state.Checkpoint{
		Repository: f.repo.String(),
		FetchID:    f.tracker.FetchID(),
		Cursor:     e.Cursor,
		PageSize:   f.pageSize,
		Pages:      e.Page,
		Issues:     f.issues,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := state.Save(cp, f.statePath); err != nil {
		// The fetch itself can still succeed; only resuming is lost.
		if !f.warned {
			log.Warn("could not write checkpoint", "path", f.statePath, "error", err)
			f.warned = true
		}
		return nil
	}
	f.checkpointed = true
	log.Trace("checkpoint written", "path", f.statePath, "cursor", e.Cursor, "issues", len(f.issues))
	return nil
}

// progress displays progress with percentage and ETA when the total is known.
func (f *fetcher) progress(e paginate.PageEvent) {
	if f.total <= 0 {
		log.Progress("Fetching %s: %d issues | page %d", f.repo, e.Total, e.Page)
		return
	}

	percent := float64(e.Total) * 100 / float64(f.total)
	if percent > 100 {
		percent = 100
	}

	var eta string
	if e.Total > 0 && e.HasNextPage {
		elapsed := time.Since(f.started)
		remaining := time.Duration(float64(elapsed) * float64(f.total-e.Total) / float64(e.Total))
		if remaining > 0 {
			eta = fmt.Sprintf(" | ETA: %s", remaining.Round(time.Second))
		}
	}

	log.Progress("Fetching %s: %d / %d issues [%.1f%%] | page %d%s", f.repo, e.Total, f.total, percent, e.Page, eta)
}

// writeSeries writes the series to outputFile, or to stdout when empty.
func writeSeries(s streams, outputFile, format string, status output.Status, points []history.Point) (err error) {
	dst := s.out
	colorize := false

	if outputFile != "" {
		file, createErr := os.Create(outputFile)
		if createErr != nil {
			return fmt.Errorf("failed to create output file: %w", createErr)
		}
		defer func() {
			if closeErr := file.Close(); err == nil && closeErr != nil {
				err = fmt.Errorf("failed to close output file: %w", closeErr)
			}
		}()
		dst = file
	} else {
		colorize = isTerminal(s.out) && !color.NoColor
	}

	w, err := output.New(format, dst, colorize)
	if err != nil {
		return err
	}
	if err := output.WriteSeries(w, status, points); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printSummary(w io.Writer, repo github.RepoRef, result *paginate.Result, points []history.Point, m *metadata.FetchMetadata) {
	fmt.Fprintf(w, "Fetched %d issues from %s in %d pages (%d API calls, %s)\n",
		len(result.Issues), repo, result.Pages, m.Results.APICallCount, m.Results.Duration)

	if peak, ok := history.Peak(points); ok {
		fmt.Fprintf(w, "Open now: %d, peak: %d at %s\n",
			history.Current(points), peak.Open, peak.Time.Format(time.RFC3339))
	}
}
