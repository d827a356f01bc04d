// Package config loads the history engine's tunables from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the engine tunables.
type Config struct {
	// MaxNodes is the retention ceiling on total history node count.
	MaxNodes int `yaml:"max_nodes"`

	// MergeWindowMS is the coalescing window in milliseconds.
	MergeWindowMS int64 `yaml:"merge_window_ms"`

	// AutoMerge enables coalescing of adjacent same-kind edits.
	AutoMerge bool `yaml:"auto_merge"`

	// HistoryFile is the per-project history database filename.
	HistoryFile string `yaml:"history_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxNodes:      1000,
		MergeWindowMS: 2000,
		AutoMerge:     true,
		HistoryFile:   ".histree.db",
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.MaxNodes <= 0 {
		return fmt.Errorf("max_nodes must be positive, got %d", c.MaxNodes)
	}
	if c.MergeWindowMS < 0 {
		return fmt.Errorf("merge_window_ms must not be negative, got %d", c.MergeWindowMS)
	}
	if c.HistoryFile == "" {
		return fmt.Errorf("history_file must not be empty")
	}
	return nil
}
