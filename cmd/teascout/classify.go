package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yutingko/teascout/internal/classify"
	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/crawl"
	"github.com/yutingko/teascout/internal/observability"
	"github.com/yutingko/teascout/internal/pipeline"
	"github.com/yutingko/teascout/internal/storage"
	"github.com/yutingko/teascout/internal/types"
)

var (
	inputPath     string
	classifyModel string
)

// classifyCmd creates the "classify" subcommand.
func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a raw crawl snapshot into the final dataset",
		Long: "Read a raw store snapshot, batch it per source category, classify\n" +
			"each batch with the LLM, and merge the results into one dataset.",
		RunE: runClassify,
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "raw stores JSON file (default: <output dir>/raw_stores.json)")
	cmd.Flags().StringVar(&classifyModel, "model", "", "override the configured model")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if classifyModel != "" {
		cfg.Classify.Model = classifyModel
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	logger := setupLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := loadRawStores(cfg)
	if err != nil {
		return err
	}
	if len(stores) == 0 {
		return fmt.Errorf("no stores to classify")
	}

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
	ds, err := doClassify(ctx, cfg, stores, "classify", logger, metrics)
	if err != nil {
		return err
	}

	if err := store.SaveDataset(ctx, ds); err != nil {
		return err
	}
	metrics.DatasetsStored.Add(1)

	fmt.Printf("\nClassification complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Stores in:  %d\n", len(stores))
	fmt.Printf("  Stores out: %d\n", ds.StoreCount)
	return nil
}

// doClassify runs batching, classification, post-processing, and the merge.
// A rate-limit abort is downgraded to a partial dataset with a warning; the
// batches that completed still count.
func doClassify(ctx context.Context, cfg *config.Config, stores []types.Store, mode string, logger *slog.Logger, metrics *observability.Metrics) (*types.Dataset, error) {
	apiKey, err := resolveAPIKey(cfg.Classify.Provider)
	if err != nil {
		return nil, err
	}

	client := classify.NewLLMClient(cfg.Classify, apiKey, logger)
	clf := classify.NewClassifier(client, cfg.Classify, logger)

	results, err := clf.Classify(ctx, stores)
	if err != nil {
		if !errors.Is(err, types.ErrRateLimited) {
			return nil, err
		}
		logger.Warn("classification rate limited, merging completed batches", "error", err)
		metrics.RateLimitHits.Add(1)
	}

	metrics.BatchesTotal.Add(int64(len(results)))
	for _, res := range results {
		if res.Err != nil {
			metrics.BatchesFailed.Add(1)
			logger.Warn("batch failed", "batch", res.Batch.Key, "error", res.Err)
		}
	}

	ds := classify.Merge(results, mode, time.Now().UTC())

	processed, err := postProcess(cfg.Classify, ds.Stores, logger)
	if err != nil {
		return nil, err
	}
	metrics.StoresClassified.Add(int64(len(processed)))
	metrics.StoresDropped.Add(int64(len(ds.Stores) - len(processed)))

	ds.Stores = processed
	ds.StoreCount = len(processed)
	return ds, nil
}

// postProcess runs the classified stores through the cleanup pipeline.
func postProcess(cfg config.ClassifyConfig, stores []types.ClassifiedStore, logger *slog.Logger) ([]types.ClassifiedStore, error) {
	fallback := ""
	for _, l := range cfg.Labels {
		if l == "其他" {
			fallback = l
			break
		}
	}

	pipe := pipeline.New(logger)
	pipe.Use(&pipeline.TrimMiddleware{})
	pipe.Use(&pipeline.RequiredFieldsMiddleware{})
	pipe.Use(pipeline.NewLabelAllowlistMiddleware(cfg.Labels, fallback))
	pipe.Use(&pipeline.PriceCeilingMiddleware{Ceiling: cfg.PriceCeiling})
	pipe.Use(pipeline.NewDedupMiddleware(crawl.CanonicalURL))

	return pipe.ProcessAll(stores)
}

// resolveAPIKey reads the provider's API key from the environment. Ollama
// runs locally and needs none.
func resolveAPIKey(provider string) (string, error) {
	var names []string
	switch provider {
	case "gemini":
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case "openai":
		names = []string{"OPENAI_API_KEY"}
	case "ollama":
		return "", nil
	}
	for _, name := range names {
		if key := os.Getenv(name); key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("no API key for provider %q (set %v)", provider, names)
}

// loadRawStores reads the raw snapshot written by the crawl command. The
// default path mirrors where file storage writes it, so a bare classify run
// picks up the latest crawl from the same output directory.
func loadRawStores(cfg *config.Config) ([]types.Store, error) {
	path := inputPath
	if path == "" {
		path = filepath.Join(cfg.Storage.OutputDir, "raw_stores.json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw stores: %w", err)
	}
	var stores []types.Store
	if err := json.Unmarshal(data, &stores); err != nil {
		return nil, fmt.Errorf("parse raw stores %s: %w", path, err)
	}
	return stores, nil
}
