// Package config loads the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the entitysearch configuration.
type Config struct {
	Database Database `yaml:"database"`
	Search   Search   `yaml:"search"`
	Indexer  Indexer  `yaml:"indexer"`
	Logging  Logging  `yaml:"logging"`
}

// Database holds storage settings.
type Database struct {
	Path string `yaml:"path"`
}

// Search holds search service settings.
type Search struct {
	// SearchableFields are matched against the search term.
	SearchableFields []string `yaml:"searchable_fields"`
	// HighlightStartTag and HighlightEndTag wrap matched terms in excerpts.
	HighlightStartTag string `yaml:"highlight_start_tag"`
	HighlightEndTag   string `yaml:"highlight_end_tag"`
	// ClearBatchSize bounds one clear-index delete batch.
	ClearBatchSize int `yaml:"clear_batch_size"`
	// SuggestionCacheSize is the autocomplete cache capacity.
	SuggestionCacheSize int `yaml:"suggestion_cache_size"`
	// SuggestionCacheTTLSec is the autocomplete cache entry lifetime.
	SuggestionCacheTTLSec int `yaml:"suggestion_cache_ttl_sec"`
}

// Indexer holds batch indexing settings.
type Indexer struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// Logging holds logging settings.
type Logging struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: info)
}

// Load reads configuration from the given YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR} or ${VAR:-default}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "entitysearch.db"
	}
	if len(c.Search.SearchableFields) == 0 {
		c.Search.SearchableFields = []string{"title", "content"}
	}
	if c.Search.HighlightStartTag == "" {
		c.Search.HighlightStartTag = "<em>"
	}
	if c.Search.HighlightEndTag == "" {
		c.Search.HighlightEndTag = "</em>"
	}
	if c.Search.ClearBatchSize <= 0 {
		c.Search.ClearBatchSize = 50
	}
	if c.Search.SuggestionCacheSize <= 0 {
		c.Search.SuggestionCacheSize = 1000
	}
	if c.Search.SuggestionCacheTTLSec <= 0 {
		c.Search.SuggestionCacheTTLSec = 60
	}
	if c.Indexer.BatchSize <= 0 {
		c.Indexer.BatchSize = 50
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// ok
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	for _, field := range c.Search.SearchableFields {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("search.searchable_fields must not contain empty names")
		}
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
