package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
storage:
  database_path: test-rentdesk.db
server:
  port: 9090
reconciliation:
  auto_match_threshold: 80
  suggestion_threshold: 50
  batch_limit: 100
observability:
  logging:
    level: debug
    format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-rentdesk.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 80, cfg.Reconciliation.AutoMatchThreshold)
	assert.Equal(t, 50, cfg.Reconciliation.SuggestionThreshold)
	assert.Equal(t, 100, cfg.Reconciliation.BatchLimit)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
}

func TestLoadFromYAML_SparseFileGetsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  database_path: only.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "only.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 70, cfg.Reconciliation.AutoMatchThreshold)
	assert.Equal(t, 40, cfg.Reconciliation.SuggestionThreshold)
	assert.Equal(t, 500, cfg.Reconciliation.BatchLimit)
	assert.Equal(t, "rules", cfg.Reconciliation.Scorer)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromYAML_EnvExpansion(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "expanded-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gemini:\n  api_key: ${GEMINI_API_KEY}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-key", cfg.Gemini.APIKey)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RENTDESK_DB_PATH", "env.db")
	t.Setenv("RECONCILE_AUTO_THRESHOLD", "75")
	t.Setenv("RECONCILE_BATCH_LIMIT", "250")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg := LoadFromEnv()
	assert.NotNil(t, cfg)
	assert.Equal(t, "env.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 75, cfg.Reconciliation.AutoMatchThreshold)
	assert.Equal(t, 250, cfg.Reconciliation.BatchLimit)
	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	os.Unsetenv("RENTDESK_DB_PATH")
	os.Unsetenv("RECONCILE_AUTO_THRESHOLD")
	os.Unsetenv("RECONCILE_SUGGEST_THRESHOLD")

	cfg := LoadFromEnv()
	assert.NotNil(t, cfg)
	assert.Equal(t, "rentdesk.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 70, cfg.Reconciliation.AutoMatchThreshold)
	assert.Equal(t, 40, cfg.Reconciliation.SuggestionThreshold)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
}

func TestLoadOrEnv_FallbackToEnv(t *testing.T) {
	cfg := LoadOrEnvWithPath("/nonexistent/config.yaml")
	assert.NotNil(t, cfg)
	assert.Equal(t, 500, cfg.Reconciliation.BatchLimit)
}
