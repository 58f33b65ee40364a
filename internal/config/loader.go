package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("TEASCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("teascout")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".teascout"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides merge
// against the full key set.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawl.feed_url", cfg.Crawl.FeedURL)
	v.SetDefault("crawl.address", cfg.Crawl.Address)
	v.SetDefault("crawl.max_stores_per_category", cfg.Crawl.MaxStoresPerCategory)
	v.SetDefault("crawl.stale_scroll_rounds", cfg.Crawl.StaleScrollRounds)
	v.SetDefault("crawl.max_scroll_rounds", cfg.Crawl.MaxScrollRounds)
	v.SetDefault("crawl.menu_scroll_rounds", cfg.Crawl.MenuScrollRounds)
	v.SetDefault("crawl.control_attach_timeout", cfg.Crawl.ControlAttachTimeout)
	v.SetDefault("crawl.settle_delay_min", cfg.Crawl.SettleDelayMin)
	v.SetDefault("crawl.settle_delay_max", cfg.Crawl.SettleDelayMax)
	v.SetDefault("crawl.category_delay_min", cfg.Crawl.CategoryDelayMin)
	v.SetDefault("crawl.category_delay_max", cfg.Crawl.CategoryDelayMax)
	v.SetDefault("crawl.scroll_delay_min", cfg.Crawl.ScrollDelayMin)
	v.SetDefault("crawl.scroll_delay_max", cfg.Crawl.ScrollDelayMax)
	v.SetDefault("crawl.excluded_categories", cfg.Crawl.ExcludedCategories)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.user_agent", cfg.Browser.UserAgent)
	v.SetDefault("browser.locale", cfg.Browser.Locale)
	v.SetDefault("browser.timezone", cfg.Browser.Timezone)
	v.SetDefault("browser.window_width", cfg.Browser.WindowWidth)
	v.SetDefault("browser.window_height", cfg.Browser.WindowHeight)
	v.SetDefault("browser.nav_timeout", cfg.Browser.NavTimeout)

	v.SetDefault("classify.provider", cfg.Classify.Provider)
	v.SetDefault("classify.model", cfg.Classify.Model)
	v.SetDefault("classify.endpoint", cfg.Classify.Endpoint)
	v.SetDefault("classify.batch_size", cfg.Classify.BatchSize)
	v.SetDefault("classify.max_in_flight", cfg.Classify.MaxInFlight)
	v.SetDefault("classify.max_output_tokens", cfg.Classify.MaxOutputTokens)
	v.SetDefault("classify.temperature", cfg.Classify.Temperature)
	v.SetDefault("classify.request_timeout", cfg.Classify.RequestTimeout)
	v.SetDefault("classify.price_ceiling", cfg.Classify.PriceCeiling)
	v.SetDefault("classify.labels", cfg.Classify.Labels)
	v.SetDefault("classify.excluded_store_types", cfg.Classify.ExcludedStoreTypes)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_dir", cfg.Storage.OutputDir)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
