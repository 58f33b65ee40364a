package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad feed url", func(c *Config) { c.Crawl.FeedURL = "ftp://example.com" }},
		{"zero stale rounds", func(c *Config) { c.Crawl.StaleScrollRounds = 0 }},
		{"zero max rounds", func(c *Config) { c.Crawl.MaxScrollRounds = 0 }},
		{"zero attach timeout", func(c *Config) { c.Crawl.ControlAttachTimeout = 0 }},
		{"inverted settle range", func(c *Config) {
			c.Crawl.SettleDelayMin = 5 * time.Second
			c.Crawl.SettleDelayMax = 2 * time.Second
		}},
		{"unknown provider", func(c *Config) { c.Classify.Provider = "magic" }},
		{"zero batch size", func(c *Config) { c.Classify.BatchSize = 0 }},
		{"no labels", func(c *Config) { c.Classify.Labels = nil }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "parquet" }},
		{"mongo without uri", func(c *Config) { c.Storage.Type = "mongodb" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad metrics port", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Port = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawl.StaleScrollRounds != 3 {
		t.Errorf("StaleScrollRounds = %d, want 3", cfg.Crawl.StaleScrollRounds)
	}
	if cfg.Crawl.ControlAttachTimeout != 15*time.Second {
		t.Errorf("ControlAttachTimeout = %s, want 15s", cfg.Crawl.ControlAttachTimeout)
	}
	if cfg.Classify.Model != "gemini-2.5-flash" {
		t.Errorf("Model = %q", cfg.Classify.Model)
	}
	if cfg.Classify.MaxOutputTokens != 65536 {
		t.Errorf("MaxOutputTokens = %d", cfg.Classify.MaxOutputTokens)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "teascout.yaml")
	yaml := `
crawl:
  max_stores_per_category: 5
  excluded_categories: ["超市"]
classify:
  batch_size: 20
  labels: ["咖啡廳", "其他"]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawl.MaxStoresPerCategory != 5 {
		t.Errorf("MaxStoresPerCategory = %d, want 5", cfg.Crawl.MaxStoresPerCategory)
	}
	if cfg.Classify.BatchSize != 20 {
		t.Errorf("BatchSize = %d, want 20", cfg.Classify.BatchSize)
	}
	if len(cfg.Classify.Labels) != 2 {
		t.Errorf("Labels = %v", cfg.Classify.Labels)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.Crawl.MaxScrollRounds != 20 {
		t.Errorf("MaxScrollRounds = %d, want default 20", cfg.Crawl.MaxScrollRounds)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://www.ubereats.com/tw/feed"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	for _, bad := range []string{"", "ftp://x", "https://", "not a url at all://"} {
		if err := ValidateURL(bad); err == nil {
			t.Errorf("ValidateURL(%q) accepted", bad)
		}
	}
}
