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

// Package config provides configuration management for issue-history with
// support for multiple configuration sources and a well-defined precedence
// order.
//
// Configuration sources (in precedence order, highest to lowest):
//  1. Command-line flags
//  2. Environment variables
//  3. Repository-specific configuration
//  4. Configuration file
//  5. Built-in defaults
//
// Command-line flags are applied by the caller after loading. The token is
// never part of the configuration; it is always prompted for.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirseerhq/issue-history/internal/output"
)

// maxPageSize is the largest page the GitHub GraphQL API serves.
const maxPageSize = 100

// MinInterval is the finest resampling interval accepted.
const MinInterval = time.Second

// LoadConfig loads configuration from multiple sources and applies them in
// the correct precedence order. If configPath is provided, it loads from
// that specific file. Otherwise, it searches standard locations:
//   - .issue-history.yaml (current directory)
//   - .issue-history.yml (current directory)
//   - ~/.issue-history/config.yaml
//   - ~/.issue-history/config.yml
//
// Returns an error if the specified config file cannot be loaded, but will
// succeed with defaults if no config file is found in standard locations.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		for _, path := range defaultPaths() {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Defaults.StateDir = expandPath(cfg.Defaults.StateDir)

	return cfg, nil
}

// LoadConfigForRepo loads configuration and applies the overrides for repo,
// given in "owner/name" form.
func LoadConfigForRepo(configPath, repo string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg.Defaults.PageSize = cfg.PageSizeFor(repo)

	// The env var still wins over the repository override.
	if v := os.Getenv("ISSUE_HISTORY_PAGE_SIZE"); v != "" {
		size, err := parsePositiveInt(v)
		if err != nil {
			return nil, fmt.Errorf("ISSUE_HISTORY_PAGE_SIZE: %w", err)
		}
		cfg.Defaults.PageSize = size
	}

	return cfg, nil
}

func defaultPaths() []string {
	home := homeDir()
	return []string{
		".issue-history.yaml",
		".issue-history.yml",
		filepath.Join(home, ".issue-history", "config.yaml"),
		filepath.Join(home, ".issue-history", "config.yml"),
	}
}

// loadConfigFile reads and parses a YAML config file
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Repositories == nil {
		cfg.Repositories = make(map[string]RepoConfig)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
// Malformed numeric values are reported rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	if endpoint := os.Getenv("GITHUB_GRAPHQL_ENDPOINT"); endpoint != "" {
		cfg.GitHub.GraphQLEndpoint = endpoint
	}

	if v := os.Getenv("ISSUE_HISTORY_PAGE_SIZE"); v != "" {
		size, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("ISSUE_HISTORY_PAGE_SIZE: %w", err)
		}
		cfg.Defaults.PageSize = size
	}
	if v := os.Getenv("ISSUE_HISTORY_MAX_PAGES"); v != "" {
		pages, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("ISSUE_HISTORY_MAX_PAGES: %w", err)
		}
		cfg.Defaults.MaxPages = pages
	}
	if stateDir := os.Getenv("ISSUE_HISTORY_STATE_DIR"); stateDir != "" {
		cfg.Defaults.StateDir = stateDir
	}
	if v := os.Getenv("ISSUE_HISTORY_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ISSUE_HISTORY_TIMEOUT: %w", err)
		}
		cfg.GitHub.Timeout = timeout
	}
	if v := os.Getenv("ISSUE_HISTORY_RETRY_ATTEMPTS"); v != "" {
		attempts, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("ISSUE_HISTORY_RETRY_ATTEMPTS: %w", err)
		}
		cfg.Retry.MaxAttempts = attempts
	}

	return nil
}

func homeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home = os.Getenv("USERPROFILE") // Windows
	}
	return home
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		path = filepath.Join(homeDir(), path[2:])
	}
	return os.ExpandEnv(path)
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &i)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// PageSizeFor returns the effective page size for repo ("owner/name"),
// taking repository-specific overrides into account.
func (c *Config) PageSizeFor(repo string) int {
	if repoConfig, ok := c.Repositories[repo]; ok && repoConfig.PageSize > 0 {
		return repoConfig.PageSize
	}
	return c.Defaults.PageSize
}

// Validate checks if the configuration contains valid values. This should
// be called after loading configuration and applying flags.
func (c *Config) Validate() error {
	if c.Defaults.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got: %d", c.Defaults.PageSize)
	}
	if c.Defaults.PageSize > maxPageSize {
		return fmt.Errorf("page size %d exceeds GitHub API limit of %d", c.Defaults.PageSize, maxPageSize)
	}
	for repo, rc := range c.Repositories {
		if rc.PageSize < 0 || rc.PageSize > maxPageSize {
			return fmt.Errorf("page size %d for %s must be between 1 and %d", rc.PageSize, repo, maxPageSize)
		}
	}
	if c.Defaults.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative, got: %d", c.Defaults.MaxPages)
	}
	if c.Defaults.Interval < 0 {
		return fmt.Errorf("interval cannot be negative, got: %s", c.Defaults.Interval)
	}
	if c.Defaults.Interval > 0 && c.Defaults.Interval < MinInterval {
		return fmt.Errorf("interval must be at least %s, got: %s", MinInterval, c.Defaults.Interval)
	}
	switch c.Defaults.OutputFormat {
	case output.FormatTable, output.FormatNDJSON:
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", c.Defaults.OutputFormat, output.FormatTable, output.FormatNDJSON)
	}
	if c.GitHub.GraphQLEndpoint == "" {
		return fmt.Errorf("GitHub GraphQL endpoint cannot be empty")
	}
	if c.GitHub.Timeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got: %s", c.GitHub.Timeout)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive, got: %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	return nil
}
