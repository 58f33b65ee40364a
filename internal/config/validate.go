package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func (cfg *Config) Validate() error {
	if err := ValidateURL(cfg.Crawl.FeedURL); err != nil {
		return fmt.Errorf("crawl.feed_url: %w", err)
	}
	if cfg.Crawl.MaxStoresPerCategory < 0 {
		return fmt.Errorf("crawl.max_stores_per_category must be >= 0, got %d", cfg.Crawl.MaxStoresPerCategory)
	}
	if cfg.Crawl.StaleScrollRounds < 1 {
		return fmt.Errorf("crawl.stale_scroll_rounds must be >= 1, got %d", cfg.Crawl.StaleScrollRounds)
	}
	if cfg.Crawl.MaxScrollRounds < 1 {
		return fmt.Errorf("crawl.max_scroll_rounds must be >= 1, got %d", cfg.Crawl.MaxScrollRounds)
	}
	if cfg.Crawl.ControlAttachTimeout <= 0 {
		return fmt.Errorf("crawl.control_attach_timeout must be > 0")
	}
	if cfg.Crawl.SettleDelayMin < 0 || cfg.Crawl.SettleDelayMax < cfg.Crawl.SettleDelayMin {
		return fmt.Errorf("crawl settle delay range is invalid: [%s, %s]",
			cfg.Crawl.SettleDelayMin, cfg.Crawl.SettleDelayMax)
	}
	if cfg.Crawl.CategoryDelayMin < 0 || cfg.Crawl.CategoryDelayMax < cfg.Crawl.CategoryDelayMin {
		return fmt.Errorf("crawl category delay range is invalid: [%s, %s]",
			cfg.Crawl.CategoryDelayMin, cfg.Crawl.CategoryDelayMax)
	}

	if cfg.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be > 0")
	}

	switch cfg.Classify.Provider {
	case "gemini", "openai", "ollama":
	default:
		return fmt.Errorf("classify.provider must be gemini/openai/ollama, got %q", cfg.Classify.Provider)
	}
	if cfg.Classify.BatchSize < 1 {
		return fmt.Errorf("classify.batch_size must be >= 1, got %d", cfg.Classify.BatchSize)
	}
	if cfg.Classify.MaxInFlight < 1 {
		return fmt.Errorf("classify.max_in_flight must be >= 1, got %d", cfg.Classify.MaxInFlight)
	}
	if len(cfg.Classify.Labels) == 0 {
		return fmt.Errorf("classify.labels must not be empty")
	}

	switch cfg.Storage.Type {
	case "json", "mongodb", "multi":
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: json, mongodb, multi)", cfg.Storage.Type)
	}
	if cfg.Storage.Type != "json" && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required for storage.type %q", cfg.Storage.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a navigation target.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
