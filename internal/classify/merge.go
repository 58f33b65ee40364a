package classify

import (
	"time"

	"github.com/yutingko/teascout/internal/types"
)

// Merge folds the batch results into one dataset. Pure: the inputs are not
// mutated and the same inputs always produce the same dataset. Failed
// batches contribute nothing; duplicates across batches resolve first-wins
// by URL, preserving batch order.
func Merge(results []BatchResult, mode string, generatedAt time.Time) *types.Dataset {
	seen := make(map[string]struct{})
	stores := make([]types.ClassifiedStore, 0)

	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, s := range res.Stores {
			if _, dup := seen[s.URL]; dup {
				continue
			}
			seen[s.URL] = struct{}{}
			stores = append(stores, s)
		}
	}

	return &types.Dataset{
		GeneratedAt:  generatedAt,
		PipelineMode: mode,
		StoreCount:   len(stores),
		Stores:       stores,
	}
}
