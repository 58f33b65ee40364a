package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/types"
)

// Batch is one classification unit: stores from a single source category,
// split when the category exceeds the batch size.
type Batch struct {
	Key      string
	Category string
	Stores   []types.Store
}

// BatchResult carries one batch's outcome. Err is batch-scoped; a failed
// batch never invalidates its siblings.
type BatchResult struct {
	Batch  Batch
	Stores []types.ClassifiedStore
	Err    error
}

// generator is the LLM surface the classifier needs.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier fans batches out to the LLM with bounded concurrency.
type Classifier struct {
	llm    generator
	cfg    config.ClassifyConfig
	logger *slog.Logger
}

// NewClassifier creates a batch classifier.
func NewClassifier(llm generator, cfg config.ClassifyConfig, logger *slog.Logger) *Classifier {
	return &Classifier{
		llm:    llm,
		cfg:    cfg,
		logger: logger.With("component", "classifier"),
	}
}

// Partition groups stores into batches by source category, preserving the
// first-seen category order and the store order within each category.
// Categories larger than the batch size split into numbered batches.
func Partition(stores []types.Store, batchSize int) []Batch {
	if batchSize <= 0 {
		batchSize = 60
	}

	var order []string
	grouped := make(map[string][]types.Store)
	for _, s := range stores {
		if _, ok := grouped[s.Category]; !ok {
			order = append(order, s.Category)
		}
		grouped[s.Category] = append(grouped[s.Category], s)
	}

	var batches []Batch
	for _, cat := range order {
		group := grouped[cat]
		for i := 0; i < len(group); i += batchSize {
			end := i + batchSize
			if end > len(group) {
				end = len(group)
			}
			key := cat
			if len(group) > batchSize {
				key = fmt.Sprintf("%s#%d", cat, i/batchSize+1)
			}
			batches = append(batches, Batch{Key: key, Category: cat, Stores: group[i:end]})
		}
	}
	return batches
}

// Classify partitions the stores and runs every batch through the LLM.
// Per-batch failures are recorded on their BatchResult and the rest of the
// run proceeds. The one exception is a rate-limit signal, which cancels the
// remaining batches; results completed before the abort are still returned,
// and the error reports the abort.
func (c *Classifier) Classify(ctx context.Context, stores []types.Store) ([]BatchResult, error) {
	batches := Partition(stores, c.cfg.BatchSize)
	results := make([]BatchResult, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	limit := c.cfg.MaxInFlight
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			res := c.runBatch(gctx, batch)
			results[i] = res
			if errors.Is(res.Err, types.ErrRateLimited) {
				return res.Err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.logger.Warn("classification aborted", "error", err)
		return results, err
	}
	return results, nil
}

func (c *Classifier) runBatch(ctx context.Context, batch Batch) BatchResult {
	res := BatchResult{Batch: batch}

	prompt, err := BuildPrompt(c.cfg, batch.Stores)
	if err != nil {
		res.Err = &types.ClassifyError{BatchKey: batch.Key, Err: err}
		return res
	}

	raw, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		res.Err = &types.ClassifyError{BatchKey: batch.Key, Err: err}
		return res
	}

	var classified []types.ClassifiedStore
	if err := json.Unmarshal([]byte(StripFences(raw)), &classified); err != nil {
		res.Err = &types.ClassifyError{
			BatchKey: batch.Key,
			Err:      fmt.Errorf("parse model output: %w", err),
		}
		return res
	}

	res.Stores = classified
	c.logger.Info("batch classified",
		"batch", batch.Key, "in", len(batch.Stores), "out", len(classified))
	return res
}
