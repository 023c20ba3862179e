// Package config holds spk's runtime configuration, loaded from layered
// TOML files rather than kept as an ambient singleton: cmd/spk loads a
// Config once per command invocation and passes it explicitly to the
// command's Run, which opens repositories from it. The Solver and Builder
// constructors do not take a Config.
package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config is spk's full runtime configuration.
type Config struct {
	// Repos lists the named repositories consulted when resolving build
	// environments, in priority order.
	Repos []RepoConfig `toml:"repos"`

	// LocalRepoPath is the filesystem root of the local repository specs
	// and packages are published to.
	LocalRepoPath string `toml:"local_repo_path"`

	// LogLevel is the spklog level name ("debug", "info", "warn", "error").
	LogLevel string `toml:"log_level"`
}

// RepoConfig names one configured repository and where it lives.
type RepoConfig struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Default returns the built-in configuration used when no config file is
// found at either layer.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		LocalRepoPath: filepath.Join(home, ".spk", "repo"),
		LogLevel:      "info",
	}
}

// Load builds a Config by layering, in order, the system config
// ("/etc/spk/config.toml"), then the user config
// ("$HOME/.config/spk/config.toml"), over Default. A layer that does not
// exist is skipped; any other read or parse error is returned.
func Load() (Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	paths := []string{
		"/etc/spk/config.toml",
		filepath.Join(home, ".config", "spk", "config.toml"),
	}
	for _, p := range paths {
		if err := mergeFile(&cfg, p); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// mergeFile applies the TOML file at path onto cfg, leaving cfg unchanged
// if the file does not exist.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read config %s", path)
	}

	var layer Config
	if err := toml.Unmarshal(data, &layer); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}

	if layer.LocalRepoPath != "" {
		cfg.LocalRepoPath = layer.LocalRepoPath
	}
	if layer.LogLevel != "" {
		cfg.LogLevel = layer.LogLevel
	}
	if len(layer.Repos) > 0 {
		cfg.Repos = layer.Repos
	}
	return nil
}
