package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yutingko/teascout/internal/observability"
	"github.com/yutingko/teascout/internal/storage"
	"github.com/yutingko/teascout/internal/types"
)

var skipCrawl bool

// runCmd creates the "run" subcommand: crawl and classify in one process.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl and classify in one pass",
		RunE:  runFull,
	}

	cmd.Flags().BoolVar(&skipCrawl, "skip-crawl", false, "classify the existing raw snapshot instead of crawling")
	cmd.Flags().StringVar(&feedURL, "feed-url", "", "feed URL to crawl")
	cmd.Flags().StringVar(&address, "address", "", "delivery address to set before crawling")
	cmd.Flags().StringVar(&categories, "categories", "", "comma-separated category allow-list (skips discovery)")
	cmd.Flags().BoolVar(&skipMenus, "skip-menus", false, "skip per-store menu enrichment")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&headful, "headful", false, "run the browser with a visible window")
	cmd.Flags().StringVar(&classifyModel, "model", "", "override the configured model")

	return cmd
}

func runFull(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCrawlOverrides(cfg)
	if classifyModel != "" {
		cfg.Classify.Model = classifyModel
	}
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
	mode := "full"
	var stores []types.Store

	if skipCrawl {
		stores, err = loadRawStores(cfg)
		if err != nil {
			return err
		}
		if len(stores) == 0 {
			return fmt.Errorf("no stores to classify")
		}
	} else {
		result, err := doCrawl(ctx, cfg, logger, metrics)
		if err != nil {
			return err
		}

		// Persist the snapshot before classification so a failed or aborted
		// classification can be replayed without re-crawling.
		if err := store.SaveRawStores(ctx, result.Stores); err != nil {
			return err
		}
		if err := store.SaveOutcomes(ctx, result.Outcomes); err != nil {
			logger.Warn("failed to save outcome report", "error", err)
		}
		printCrawlSummary(result, time.Since(start))

		if result.RateLimited {
			mode = "full_partial"
		}
		stores = result.Stores
	}

	if len(stores) == 0 {
		logger.Warn("crawl collected no stores, skipping classification")
		return nil
	}

	ds, err := doClassify(ctx, cfg, stores, mode, logger, metrics)
	if err != nil {
		return err
	}

	if err := store.SaveDataset(ctx, ds); err != nil {
		return err
	}
	metrics.DatasetsStored.Add(1)

	fmt.Printf("\nPipeline complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Stores in:         %d\n", len(stores))
	fmt.Printf("  Stores classified: %d\n", ds.StoreCount)
	return nil
}
