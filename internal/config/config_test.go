package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"database_url": "postgres://localhost/vault",
		"search_cx": "abc123",
		"max_iterations": 4,
		"min_relevance": 0.7,
		"allowed_domains": ["arxiv.org", "go.dev"],
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/vault", cfg.DatabaseURL)
	assert.Equal(t, "abc123", cfg.SearchCX)
	assert.Equal(t, 4, cfg.MaxIterations)
	assert.Equal(t, 0.7, cfg.MinRelevance)
	assert.Equal(t, []string{"arxiv.org", "go.dev"}, cfg.AllowedDomains)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	content := `{ invalid json }`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_NegativeBudget(t *testing.T) {
	cfg := &Config{
		MaxIterations: -1,
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_iterations")
}

func TestValidate_RelevanceOutOfRange(t *testing.T) {
	cfg := &Config{
		MinRelevance: 1.5,
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min_relevance")
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		MaxIterations:   3,
		MaxQueries:      5,
		MinRelevance:    0.6,
		ResultsPerQuery: 5,
	}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestMergeWithDefaults(t *testing.T) {
	defaults := Config{
		DatabaseURL:       "postgres://localhost/vault",
		MaxIterations:     3,
		MaxQueries:        5,
		MinQualityResults: 3,
		MinRelevance:      0.6,
	}

	partial := Config{
		MaxIterations: 5,
		SearchCX:      "custom-cx",
	}

	merged := partial.MergeWithDefaults(defaults)

	// Custom values should be preserved
	assert.Equal(t, 5, merged.MaxIterations)
	assert.Equal(t, "custom-cx", merged.SearchCX)

	// Default values should fill in empty fields
	assert.Equal(t, "postgres://localhost/vault", merged.DatabaseURL)
	assert.Equal(t, 5, merged.MaxQueries)
	assert.Equal(t, 3, merged.MinQualityResults)
	assert.Equal(t, 0.6, merged.MinRelevance)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{
		DatabaseURL: "postgres://localhost/other",
		MaxQueries:  7,
	}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "postgres://localhost/other", merged.DatabaseURL)
	assert.Equal(t, 7, merged.MaxQueries)
}
