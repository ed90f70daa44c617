// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Connections
	DatabaseURL  string `json:"database_url,omitempty"`   // PostgreSQL connection URL
	GeminiAPIKey string `json:"gemini_api_key,omitempty"` // Gemini API key
	SearchAPIKey string `json:"search_api_key,omitempty"` // Google Custom Search API key
	SearchCX     string `json:"search_cx,omitempty"`      // Google Custom Search engine ID

	// Scout budgets
	MaxIterations     int      `json:"max_iterations,omitempty"`      // Search-refine loop cap
	MaxQueries        int      `json:"max_queries,omitempty"`         // Distinct query cap per session
	MinQualityResults int      `json:"min_quality_results,omitempty"` // Proposals needed to stop early
	MinRelevance      float64  `json:"min_relevance,omitempty"`       // Acceptance score threshold (0.0-1.0)
	ResultsPerQuery   int      `json:"results_per_query,omitempty"`   // Search results requested per query
	AllowedDomains    []string `json:"allowed_domains,omitempty"`     // Restrict proposals to these domains

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("config error: 'max_iterations' must be non-negative")
	}
	if c.MaxQueries < 0 {
		return fmt.Errorf("config error: 'max_queries' must be non-negative")
	}
	if c.MinQualityResults < 0 {
		return fmt.Errorf("config error: 'min_quality_results' must be non-negative")
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return fmt.Errorf("config error: 'min_relevance' must be between 0 and 1")
	}
	if c.ResultsPerQuery < 0 || c.ResultsPerQuery > 10 {
		return fmt.Errorf("config error: 'results_per_query' must be between 0 and 10")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.SearchAPIKey == "" {
		result.SearchAPIKey = defaults.SearchAPIKey
	}
	if result.SearchCX == "" {
		result.SearchCX = defaults.SearchCX
	}

	// Int fields: use default if zero
	if result.MaxIterations == 0 {
		result.MaxIterations = defaults.MaxIterations
	}
	if result.MaxQueries == 0 {
		result.MaxQueries = defaults.MaxQueries
	}
	if result.MinQualityResults == 0 {
		result.MinQualityResults = defaults.MinQualityResults
	}
	if result.ResultsPerQuery == 0 {
		result.ResultsPerQuery = defaults.ResultsPerQuery
	}

	// Float fields
	if result.MinRelevance == 0 {
		result.MinRelevance = defaults.MinRelevance
	}

	if len(result.AllowedDomains) == 0 {
		result.AllowedDomains = defaults.AllowedDomains
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
