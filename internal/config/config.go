package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for teascout.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"    yaml:"crawl"`
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Classify ClassifyConfig `mapstructure:"classify" yaml:"classify"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// CrawlConfig controls category discovery, navigation, and collection.
type CrawlConfig struct {
	FeedURL string `mapstructure:"feed_url" yaml:"feed_url"`
	Address string `mapstructure:"address"  yaml:"address"`

	// Categories is an explicit allow-list. When non-empty, discovery is
	// skipped and these labels are used verbatim.
	Categories []string `mapstructure:"categories" yaml:"categories"`

	// ExcludedCategories are never crawled, even when listed in Categories.
	ExcludedCategories []string `mapstructure:"excluded_categories" yaml:"excluded_categories"`

	// MaxStoresPerCategory caps each category's collection; 0 means uncapped.
	MaxStoresPerCategory int `mapstructure:"max_stores_per_category" yaml:"max_stores_per_category"`
	StaleScrollRounds    int `mapstructure:"stale_scroll_rounds"     yaml:"stale_scroll_rounds"`
	MaxScrollRounds      int `mapstructure:"max_scroll_rounds"       yaml:"max_scroll_rounds"`
	MenuScrollRounds     int `mapstructure:"menu_scroll_rounds"      yaml:"menu_scroll_rounds"`

	ControlAttachTimeout time.Duration `mapstructure:"control_attach_timeout" yaml:"control_attach_timeout"`
	SettleDelayMin       time.Duration `mapstructure:"settle_delay_min"       yaml:"settle_delay_min"`
	SettleDelayMax       time.Duration `mapstructure:"settle_delay_max"       yaml:"settle_delay_max"`
	CategoryDelayMin     time.Duration `mapstructure:"category_delay_min"     yaml:"category_delay_min"`
	CategoryDelayMax     time.Duration `mapstructure:"category_delay_max"     yaml:"category_delay_max"`
	ScrollDelayMin       time.Duration `mapstructure:"scroll_delay_min"       yaml:"scroll_delay_min"`
	ScrollDelayMax       time.Duration `mapstructure:"scroll_delay_max"       yaml:"scroll_delay_max"`

	// SkipMenus disables per-store menu enrichment.
	SkipMenus bool `mapstructure:"skip_menus" yaml:"skip_menus"`
}

// BrowserConfig controls the headless browser surface.
type BrowserConfig struct {
	Headless     bool          `mapstructure:"headless"      yaml:"headless"`
	UserAgent    string        `mapstructure:"user_agent"    yaml:"user_agent"`
	Locale       string        `mapstructure:"locale"        yaml:"locale"`
	Timezone     string        `mapstructure:"timezone"      yaml:"timezone"`
	WindowWidth  int           `mapstructure:"window_width"  yaml:"window_width"`
	WindowHeight int           `mapstructure:"window_height" yaml:"window_height"`
	NavTimeout   time.Duration `mapstructure:"nav_timeout"   yaml:"nav_timeout"`
}

// ClassifyConfig controls LLM classification.
type ClassifyConfig struct {
	Provider        string        `mapstructure:"provider"          yaml:"provider"`
	Model           string        `mapstructure:"model"             yaml:"model"`
	Endpoint        string        `mapstructure:"endpoint"          yaml:"endpoint"`
	BatchSize       int           `mapstructure:"batch_size"        yaml:"batch_size"`
	MaxInFlight     int           `mapstructure:"max_in_flight"     yaml:"max_in_flight"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	Temperature     float64       `mapstructure:"temperature"       yaml:"temperature"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`

	// PriceCeiling: stores with a higher average price are filtered out by
	// the classification instructions.
	PriceCeiling int `mapstructure:"price_ceiling" yaml:"price_ceiling"`

	// Labels is the fixed set of category labels the classifier may assign.
	Labels []string `mapstructure:"labels" yaml:"labels"`

	// ExcludedStoreTypes are structurally disqualified store types the
	// classifier is instructed to drop.
	ExcludedStoreTypes []string `mapstructure:"excluded_store_types" yaml:"excluded_store_types"`
}

// StorageConfig controls dataset persistence.
type StorageConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"`
	OutputDir       string `mapstructure:"output_dir"       yaml:"output_dir"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			FeedURL:              "https://www.ubereats.com/tw/feed",
			MaxStoresPerCategory: 30,
			StaleScrollRounds:    3,
			MaxScrollRounds:      20,
			MenuScrollRounds:     5,
			ControlAttachTimeout: 15 * time.Second,
			SettleDelayMin:       2 * time.Second,
			SettleDelayMax:       5 * time.Second,
			CategoryDelayMin:     3 * time.Second,
			CategoryDelayMax:     6 * time.Second,
			ScrollDelayMin:       1500 * time.Millisecond,
			ScrollDelayMax:       3 * time.Second,
			ExcludedCategories:   []string{"grocery", "convenience", "超市", "量販"},
		},
		Browser: BrowserConfig{
			Headless: true,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
			Locale:       "zh-TW",
			Timezone:     "Asia/Taipei",
			WindowWidth:  1280,
			WindowHeight: 800,
			NavTimeout:   30 * time.Second,
		},
		Classify: ClassifyConfig{
			Provider:        "gemini",
			Model:           "gemini-2.5-flash",
			BatchSize:       60,
			MaxInFlight:     3,
			MaxOutputTokens: 65536,
			Temperature:     0.2,
			RequestTimeout:  120 * time.Second,
			PriceCeiling:    500,
			Labels:          []string{"咖啡廳", "手搖飲", "甜點", "烘焙坊", "其他"},
			ExcludedStoreTypes: []string{
				"超市", "量販店", "便利商店",
			},
		},
		Storage: StorageConfig{
			Type:            "json",
			OutputDir:       "./dataset",
			MongoDatabase:   "teascout",
			MongoCollection: "datasets",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
