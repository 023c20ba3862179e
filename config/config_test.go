package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilpvfx/spk/config"
)

func TestDefaultUsesHomeRepoPath(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Contains(t, cfg.LocalRepoPath, ".spk")
}

func TestLoadSkipsMissingLayers(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Default().LogLevel, cfg.LogLevel)
}

func TestLoadMergesUserLayer(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "spk")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	contents := "log_level = \"debug\"\nlocal_repo_path = \"/srv/spk\"\n\n[[repos]]\nname = \"origin\"\npath = \"/srv/spk/repo\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(contents), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/srv/spk", cfg.LocalRepoPath)
	require.Len(t, cfg.Repos, 1)
	assert.Equal(t, "origin", cfg.Repos[0].Name)
}
