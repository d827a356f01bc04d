package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "histree.yaml")
	data := `
max_nodes: 250
merge_window_ms: 500
auto_merge: false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxNodes != 250 || cfg.MergeWindowMS != 500 || cfg.AutoMerge {
		t.Errorf("cfg = %+v", cfg)
	}
	// Keys absent from the file keep their defaults.
	if cfg.HistoryFile != Default().HistoryFile {
		t.Errorf("history_file = %q, want default", cfg.HistoryFile)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "histree.yaml")
	if err := os.WriteFile(path, []byte("max_nodes: [what"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero max_nodes", func(c *Config) { c.MaxNodes = 0 }, false},
		{"negative max_nodes", func(c *Config) { c.MaxNodes = -5 }, false},
		{"negative merge window", func(c *Config) { c.MergeWindowMS = -1 }, false},
		{"zero merge window", func(c *Config) { c.MergeWindowMS = 0 }, true},
		{"empty history file", func(c *Config) { c.HistoryFile = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, ok = %v", err, tt.ok)
			}
		})
	}
}
