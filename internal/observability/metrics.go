package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational metrics for a pipeline run.
type Metrics struct {
	// Crawl metrics
	CategoriesSucceeded atomic.Int64
	CategoriesEmpty     atomic.Int64
	CategoriesFailed    atomic.Int64
	CategoriesRetried   atomic.Int64
	StoresCollected     atomic.Int64
	RateLimitHits       atomic.Int64

	// Classification metrics
	BatchesTotal     atomic.Int64
	BatchesFailed    atomic.Int64
	StoresClassified atomic.Int64
	StoresDropped    atomic.Int64

	// Storage metrics
	DatasetsStored atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"teascout_categories_succeeded_total", "Categories that finished with stores", m.CategoriesSucceeded.Load()},
		{"teascout_categories_empty_total", "Categories whose listing stabilized empty", m.CategoriesEmpty.Load()},
		{"teascout_categories_failed_total", "Categories that failed both passes", m.CategoriesFailed.Load()},
		{"teascout_categories_retried_total", "Categories given the retry pass", m.CategoriesRetried.Load()},
		{"teascout_stores_collected_total", "Stores collected across categories", m.StoresCollected.Load()},
		{"teascout_rate_limit_hits_total", "Rate-limit signals observed", m.RateLimitHits.Load()},
		{"teascout_classify_batches_total", "Classification batches attempted", m.BatchesTotal.Load()},
		{"teascout_classify_batches_failed_total", "Classification batches that failed", m.BatchesFailed.Load()},
		{"teascout_stores_classified_total", "Stores classified by the model", m.StoresClassified.Load()},
		{"teascout_stores_dropped_total", "Stores dropped by post-processing", m.StoresDropped.Load()},
		{"teascout_datasets_stored_total", "Datasets persisted", m.DatasetsStored.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"categories_succeeded": m.CategoriesSucceeded.Load(),
		"categories_empty":     m.CategoriesEmpty.Load(),
		"categories_failed":    m.CategoriesFailed.Load(),
		"categories_retried":   m.CategoriesRetried.Load(),
		"stores_collected":     m.StoresCollected.Load(),
		"rate_limit_hits":      m.RateLimitHits.Load(),
		"classify_batches":     m.BatchesTotal.Load(),
		"batches_failed":       m.BatchesFailed.Load(),
		"stores_classified":    m.StoresClassified.Load(),
		"stores_dropped":       m.StoresDropped.Load(),
		"datasets_stored":      m.DatasetsStored.Load(),
	}
}
