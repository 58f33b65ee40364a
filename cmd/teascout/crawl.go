package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/crawl"
	"github.com/yutingko/teascout/internal/fetch"
	"github.com/yutingko/teascout/internal/observability"
	"github.com/yutingko/teascout/internal/storage"
	"github.com/yutingko/teascout/internal/types"
)

var (
	feedURL    string
	address    string
	categories string
	skipMenus  bool
	outputDir  string
	headful    bool
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the category feed and collect stores",
		Long: "Discover categories on the feed, collect stores from each listing,\n" +
			"enrich them with menu data, and write the raw snapshot.",
		RunE: runCrawl,
	}

	cmd.Flags().StringVar(&feedURL, "feed-url", "", "feed URL to crawl")
	cmd.Flags().StringVar(&address, "address", "", "delivery address to set before crawling")
	cmd.Flags().StringVar(&categories, "categories", "", "comma-separated category allow-list (skips discovery)")
	cmd.Flags().BoolVar(&skipMenus, "skip-menus", false, "skip per-store menu enrichment")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&headful, "headful", false, "run the browser with a visible window")

	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCrawlOverrides(cfg)
	logger := setupLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	store, err := storage.Open(cfg.Storage.Type, cfg.Storage.OutputDir,
		cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	start := time.Now()
	result, err := doCrawl(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	if err := store.SaveRawStores(ctx, result.Stores); err != nil {
		return err
	}
	if err := store.SaveOutcomes(ctx, result.Outcomes); err != nil {
		logger.Warn("failed to save outcome report", "error", err)
	}

	printCrawlSummary(result, time.Since(start))
	return nil
}

// doCrawl runs the full crawl over a fresh browser surface.
func doCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*crawl.Result, error) {
	surface, err := browser.NewRodSurface(cfg.Browser, logger)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer surface.Close()

	fetcher := fetch.NewClient(fetch.Config{
		UserAgent:      cfg.Browser.UserAgent,
		AcceptLanguage: cfg.Browser.Locale,
	}, logger)

	orch := crawl.NewOrchestrator(surface, fetcher, cfg.Crawl, logger)
	result, err := orch.Run(ctx)
	if err != nil {
		return nil, err
	}

	recordCrawlMetrics(metrics, result)
	return result, nil
}

func recordCrawlMetrics(metrics *observability.Metrics, result *crawl.Result) {
	for _, o := range result.Outcomes {
		switch o.State {
		case types.StateSucceeded.String():
			metrics.CategoriesSucceeded.Add(1)
		case types.StateEmpty.String():
			metrics.CategoriesEmpty.Add(1)
		case types.StateFailed.String():
			metrics.CategoriesFailed.Add(1)
		}
		if o.Retried {
			metrics.CategoriesRetried.Add(1)
		}
	}
	metrics.StoresCollected.Add(int64(len(result.Stores)))
	if result.RateLimited {
		metrics.RateLimitHits.Add(1)
	}
}

func applyCrawlOverrides(cfg *config.Config) {
	if feedURL != "" {
		cfg.Crawl.FeedURL = feedURL
	}
	if address != "" {
		cfg.Crawl.Address = address
	}
	if categories != "" {
		var labels []string
		for _, l := range strings.Split(categories, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
		cfg.Crawl.Categories = labels
	}
	if skipMenus {
		cfg.Crawl.SkipMenus = true
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if headful {
		cfg.Browser.Headless = false
	}
}

func printCrawlSummary(result *crawl.Result, elapsed time.Duration) {
	fmt.Printf("\nCrawl complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Stores collected: %d\n", len(result.Stores))
	for _, o := range result.Outcomes {
		line := fmt.Sprintf("  %-12s %s", o.State, o.Label)
		if o.StoreCount > 0 {
			line += fmt.Sprintf(" (%d stores)", o.StoreCount)
		}
		if o.Retried {
			line += " [retried]"
		}
		fmt.Println(line)
	}
	if result.RateLimited {
		fmt.Println("\nRun was rate limited; results above are partial.")
	}
}
