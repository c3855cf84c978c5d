package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
search:
  searchable_fields: [title, content, summary]
  highlight_start_tag: "<mark>"
  highlight_end_tag: "</mark>"
indexer:
  workers: 4
  batch_size: 100
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, []string{"title", "content", "summary"}, cfg.Search.SearchableFields)
	assert.Equal(t, "<mark>", cfg.Search.HighlightStartTag)
	assert.Equal(t, 4, cfg.Indexer.Workers)
	assert.Equal(t, 100, cfg.Indexer.BatchSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "content"}, cfg.Search.SearchableFields)
	assert.Equal(t, "<em>", cfg.Search.HighlightStartTag)
	assert.Equal(t, "</em>", cfg.Search.HighlightEndTag)
	assert.Equal(t, 50, cfg.Search.ClearBatchSize)
	assert.Equal(t, 1000, cfg.Search.SuggestionCacheSize)
	assert.Equal(t, 60, cfg.Search.SuggestionCacheTTLSec)
	assert.Equal(t, 50, cfg.Indexer.BatchSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("ENTITYSEARCH_TEST_DB", "/var/data/search.db")
	path := writeConfig(t, `
database:
  path: ${ENTITYSEARCH_TEST_DB}
logging:
  level: ${ENTITYSEARCH_TEST_LEVEL:-warn}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/data/search.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_InvalidLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: loud
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "database: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "entitysearch.db", cfg.Database.Path)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmptySearchableField(t *testing.T) {
	cfg := Default()
	cfg.Search.SearchableFields = []string{"title", "  "}
	assert.Error(t, cfg.Validate())
}
