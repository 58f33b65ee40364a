// Package storage persists run artifacts: the raw crawl snapshot, the final
// dataset, and the per-category outcome report.
package storage

import (
	"context"

	"github.com/yutingko/teascout/internal/types"
)

// Storage is the interface for all dataset backends.
type Storage interface {
	// SaveDataset persists the final classified dataset.
	SaveDataset(ctx context.Context, ds *types.Dataset) error

	// SaveRawStores persists the pre-classification crawl snapshot so a
	// classification run can be replayed without re-crawling.
	SaveRawStores(ctx context.Context, stores []types.Store) error

	// SaveOutcomes persists the per-category crawl report.
	SaveOutcomes(ctx context.Context, outcomes []types.CategoryOutcome) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}
