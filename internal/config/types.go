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

// Package config types define the configuration structures used throughout
// issue-history. These types represent settings that can be loaded from
// YAML configuration files, environment variables, or command-line flags.
package config

import (
	"time"

	"github.com/sirseerhq/issue-history/internal/output"
)

// Config represents the complete configuration for issue-history.
type Config struct {
	GitHub       GitHubConfig          `yaml:"github"`
	Defaults     DefaultsConfig        `yaml:"defaults"`
	Retry        RetryConfig           `yaml:"retry"`
	Repositories map[string]RepoConfig `yaml:"repositories"`
}

// GitHubConfig holds the API endpoint and per-request timeout. A custom
// endpoint points the tool at a GitHub Enterprise server.
type GitHubConfig struct {
	GraphQLEndpoint string        `yaml:"graphql_endpoint"`
	Timeout         time.Duration `yaml:"timeout"`
}

// DefaultsConfig contains settings that apply to every fetch unless
// overridden by repository-specific settings or command-line flags.
type DefaultsConfig struct {
	PageSize     int           `yaml:"page_size"`
	MaxPages     int           `yaml:"max_pages"`
	OutputFormat string        `yaml:"output_format"`
	Interval     time.Duration `yaml:"interval"`
	StateDir     string        `yaml:"state_dir"`
}

// RetryConfig controls backoff for transient API failures.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// RepoConfig contains repository-specific overrides, keyed by "owner/name".
// Very old repositories with many issues sometimes need smaller pages to
// stay under the API's response time limits.
type RepoConfig struct {
	PageSize int `yaml:"page_size"`
}

// DefaultConfig returns a Config with defaults suitable for github.com.
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			GraphQLEndpoint: "https://api.github.com/graphql",
			Timeout:         30 * time.Second,
		},
		Defaults: DefaultsConfig{
			PageSize:     100,
			OutputFormat: output.FormatTable,
			StateDir:     "~/.issue-history/state",
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Repositories: make(map[string]RepoConfig),
	}
}
