// teascout crawls a delivery platform's category feed and classifies the
// collected stores into a labeled dataset with an LLM.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yutingko/teascout/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "teascout",
		Short: "teascout — category crawler and store classifier",
		Long: `teascout collects stores from a delivery platform's category feed and
classifies them into a fixed label set with an LLM.

Commands:
  crawl     — discover categories, collect stores, write the raw snapshot
  classify  — classify a raw snapshot into the final dataset
  run       — crawl and classify in one pass`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("teascout %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Crawl:\n")
			fmt.Printf("  Feed URL:           %s\n", cfg.Crawl.FeedURL)
			fmt.Printf("  Categories:         %v\n", cfg.Crawl.Categories)
			fmt.Printf("  Excluded:           %v\n", cfg.Crawl.ExcludedCategories)
			fmt.Printf("  Max Stores/Cat:     %d\n", cfg.Crawl.MaxStoresPerCategory)
			fmt.Printf("  Scroll Rounds:      %d max, %d stale\n", cfg.Crawl.MaxScrollRounds, cfg.Crawl.StaleScrollRounds)
			fmt.Printf("  Attach Timeout:     %s\n", cfg.Crawl.ControlAttachTimeout)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:           %v\n", cfg.Browser.Headless)
			fmt.Printf("  Locale:             %s (%s)\n", cfg.Browser.Locale, cfg.Browser.Timezone)
			fmt.Printf("  Window:             %dx%d\n", cfg.Browser.WindowWidth, cfg.Browser.WindowHeight)
			fmt.Printf("\nClassify:\n")
			fmt.Printf("  Provider:           %s (%s)\n", cfg.Classify.Provider, cfg.Classify.Model)
			fmt.Printf("  Batch Size:         %d\n", cfg.Classify.BatchSize)
			fmt.Printf("  Max In Flight:      %d\n", cfg.Classify.MaxInFlight)
			fmt.Printf("  Labels:             %v\n", cfg.Classify.Labels)
			fmt.Printf("  Price Ceiling:      %d\n", cfg.Classify.PriceCeiling)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:               %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Dir:         %s\n", cfg.Storage.OutputDir)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:               %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	out := os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// loadConfig loads and validates configuration for a subcommand.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
