// Package config loads the shell's TOML configuration file. Every field
// except DataDir has a flag counterpart, and flags win over file values.
// DataDir has no flag; the positional data directory wins over the file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the shell settings.
type Config struct {
	// DataDir is the database environment directory.
	DataDir string `toml:"data_dir"`
	// LogFile receives structured logs; empty means stderr.
	LogFile string `toml:"log_file"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// Format selects the result formatter: human or json.
	Format string `toml:"format"`
	// Quiet suppresses the prompt even on a terminal.
	Quiet bool `toml:"quiet"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{LogLevel: "warn", Format: "human"}
}

// Load reads the config file at path on top of the defaults. A missing
// file is not an error when path was not set explicitly.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}
