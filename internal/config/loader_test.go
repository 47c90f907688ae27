package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "planora.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Load_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 60*time.Second, cfg.Executor.EffectTimeout)

	// Derived paths are filled in
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Ledger.DBPath)
	assert.NotEmpty(t, cfg.Ledger.AuditLogPath)
}

func TestLoader_Load_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{
		"data_dir": "`+dir+`",
		"logging": {"level": "debug", "console": false},
		"executor": {"effect_timeout": 5000000000},
		"policy_defaults": {
			"allowed_write_operations": ["note", "task"],
			"redact_pii": true
		}
	}`)

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 5*time.Second, cfg.Executor.EffectTimeout)
	assert.Equal(t, []string{"note", "task"}, cfg.PolicyDefaults.AllowedWriteOperations)

	assert.Equal(t, filepath.Join(dir, "planora.log"), cfg.Logging.File)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.Ledger.DBPath)
}

func TestLoader_Load_InvalidJSON(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), `{not json`)

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoader_Load_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{
		"data_dir": "`+dir+`",
		"logging": {"level": "verbose"}
	}`)

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}
