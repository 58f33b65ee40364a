// Package pipeline post-processes classified stores before persistence.
// Middleware runs in registration order; any stage can drop a store by
// returning nil.
package pipeline

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/yutingko/teascout/internal/types"
)

// Middleware processes a classified store and returns the (possibly
// modified) store. Return nil to drop the store from the dataset.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a store. Return nil to drop the store.
	Process(store *types.ClassifiedStore) (*types.ClassifiedStore, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the store through all middleware in order.
func (p *Pipeline) Process(store *types.ClassifiedStore) (*types.ClassifiedStore, error) {
	current := store

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, err
		}
		if result == nil {
			p.logger.Debug("store dropped", "stage", mw.Name(), "url", store.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs every store through the chain and returns the survivors.
func (p *Pipeline) ProcessAll(stores []types.ClassifiedStore) ([]types.ClassifiedStore, error) {
	out := make([]types.ClassifiedStore, 0, len(stores))
	for i := range stores {
		s := stores[i]
		res, err := p.Process(&s)
		if err != nil {
			return nil, err
		}
		if res != nil {
			out = append(out, *res)
		}
	}
	return out, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// TrimMiddleware trims whitespace from the string fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(store *types.ClassifiedStore) (*types.ClassifiedStore, error) {
	store.Name = strings.TrimSpace(store.Name)
	store.Label = strings.TrimSpace(store.Label)
	store.URL = strings.TrimSpace(store.URL)
	for i, h := range store.Highlights {
		store.Highlights[i] = strings.TrimSpace(h)
	}
	return store, nil
}

// RequiredFieldsMiddleware drops stores missing a name, label, or URL. The
// model occasionally emits partial objects on truncated output.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(store *types.ClassifiedStore) (*types.ClassifiedStore, error) {
	if store.Name == "" || store.Label == "" || store.URL == "" {
		return nil, nil
	}
	return store, nil
}

// LabelAllowlistMiddleware drops stores whose label is outside the fixed
// label set, routing unknown labels to a fallback instead when one is set.
type LabelAllowlistMiddleware struct {
	labels   map[string]struct{}
	fallback string
}

// NewLabelAllowlistMiddleware creates a label validator. fallback may be
// empty to drop off-set labels outright.
func NewLabelAllowlistMiddleware(labels []string, fallback string) *LabelAllowlistMiddleware {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return &LabelAllowlistMiddleware{labels: set, fallback: fallback}
}

func (m *LabelAllowlistMiddleware) Name() string { return "label_allowlist" }

func (m *LabelAllowlistMiddleware) Process(store *types.ClassifiedStore) (*types.ClassifiedStore, error) {
	if len(m.labels) == 0 {
		return store, nil
	}
	if _, ok := m.labels[store.Label]; ok {
		return store, nil
	}
	if m.fallback == "" {
		return nil, nil
	}
	store.Label = m.fallback
	return store, nil
}

// PriceCeilingMiddleware drops stores above the average-price ceiling. The
// model is instructed to do this itself; this stage enforces it.
type PriceCeilingMiddleware struct {
	Ceiling int
}

func (m *PriceCeilingMiddleware) Name() string { return "price_ceiling" }

func (m *PriceCeilingMiddleware) Process(store *types.ClassifiedStore) (*types.ClassifiedStore, error) {
	if m.Ceiling > 0 && store.AvgPrice > m.Ceiling {
		return nil, nil
	}
	return store, nil
}

// DedupMiddleware drops stores with duplicate URLs, first wins.
type DedupMiddleware struct {
	mu        sync.Mutex
	seen      map[string]struct{}
	canonical func(string) string
}

// NewDedupMiddleware creates a URL deduplicator. canonical normalizes URLs
// before comparison and may be nil for exact matching.
func NewDedupMiddleware(canonical func(string) string) *DedupMiddleware {
	if canonical == nil {
		canonical = func(s string) string { return s }
	}
	return &DedupMiddleware{
		seen:      make(map[string]struct{}),
		canonical: canonical,
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(store *types.ClassifiedStore) (*types.ClassifiedStore, error) {
	key := m.canonical(store.URL)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil
	}
	m.seen[key] = struct{}{}
	return store, nil
}
