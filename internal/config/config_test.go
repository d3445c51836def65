package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", false)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "human", cfg.Format)
	assert.Empty(t, cfg.DataDir)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocelot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir = "/tmp/db"
log_level = "debug"
format = "json"
quiet = true
`), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/db", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Quiet)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"), true)
	assert.Error(t, err)
}

func TestLoadMissingImplicitFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), false)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}
