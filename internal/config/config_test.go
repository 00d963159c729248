package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.JSON)
	assert.Equal(t, "results", cfg.Defaults.ResultsDir)
	assert.Equal(t, 10, cfg.Defaults.Workers)
	assert.Equal(t, 300*time.Second, cfg.Defaults.Timeout)
	assert.Empty(t, cfg.Defaults.APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MODELRUN_LOGGING_LEVEL", "debug")
	t.Setenv("MODELRUN_DEFAULTS_WORKERS", "4")
	t.Setenv("MODELRUN_DEFAULTS_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Defaults.Workers)
	assert.Equal(t, "sk-test", cfg.Defaults.APIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modelrun.yaml")
	data := `
logging:
  level: warn
  json: true
defaults:
  results_dir: /var/lib/modelrun/results
  timeout: 120s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "/var/lib/modelrun/results", cfg.Defaults.ResultsDir)
	assert.Equal(t, 120*time.Second, cfg.Defaults.Timeout)
	// Untouched values keep their defaults.
	assert.Equal(t, 10, cfg.Defaults.Workers)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
