package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/types"
)

// Result is the outcome of a full crawl run.
type Result struct {
	// Stores is the deduplicated union of every category's collection, in
	// collection order. First sighting wins on cross-category duplicates.
	Stores []types.Store

	// Outcomes reports every category's terminal state.
	Outcomes []types.CategoryOutcome

	// RateLimited is set when the run was aborted by a rate-limit signal.
	// Stores then holds the partial results collected before the abort.
	RateLimited bool
}

// Orchestrator runs the category crawl: one sequential pass over every
// category, then exactly one retry pass over the categories that ended the
// first pass EMPTY or FAILED. Categories are strictly sequential; the site's
// abuse detection punishes parallel sessions long before parallelism pays
// for itself.
type Orchestrator struct {
	surface    browser.Surface
	discoverer *Discoverer
	navigator  *Navigator
	collector  *Collector
	menu       *MenuScraper
	cfg        config.CrawlConfig
	logger     *slog.Logger
	rng        *rand.Rand
	sleep      func(ctx context.Context, d time.Duration) error

	seen   map[string]struct{}
	stores []types.Store
}

// NewOrchestrator wires a crawl run over the given surface.
func NewOrchestrator(surface browser.Surface, fetcher snapshotter, cfg config.CrawlConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		surface:    surface,
		discoverer: NewDiscoverer(surface, cfg, logger),
		navigator:  NewNavigator(surface, cfg, logger),
		collector:  NewCollector(surface, cfg, logger),
		menu:       NewMenuScraper(fetcher, surface, cfg, logger),
		cfg:        cfg,
		logger:     logger.With("component", "orchestrator"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:      ctxSleep,
	}
}

// Run executes the crawl and returns collected stores plus the per-category
// report. A rate-limit signal aborts the remaining run but the partial
// result is still returned with RateLimited set; every other error is
// category-scoped and never takes down the run.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.seen = make(map[string]struct{})
	o.stores = nil

	if err := o.surface.Navigate(ctx, o.cfg.FeedURL); err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	BootstrapAddress(ctx, o.surface, o.cfg, o.logger)

	tags, err := o.discoverer.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		o.logger.Warn("no categories discovered, nothing to crawl")
		return &Result{Stores: []types.Store{}, Outcomes: []types.CategoryOutcome{}}, nil
	}

	progress := make([]*types.CategoryProgress, len(tags))
	for i, tag := range tags {
		progress[i] = types.NewCategoryProgress(tag)
	}

	rateLimited := o.pass(ctx, progress, false)
	if !rateLimited {
		rateLimited = o.pass(ctx, progress, true)
	}

	res := &Result{
		Stores:      o.stores,
		Outcomes:    make([]types.CategoryOutcome, len(progress)),
		RateLimited: rateLimited,
	}
	for i, p := range progress {
		res.Outcomes[i] = p.Outcome()
	}

	o.logger.Info("crawl finished",
		"categories", len(progress),
		"stores", len(res.Stores),
		"rate_limited", rateLimited,
	)
	return res, nil
}

// pass runs one sequential pass. In retry mode only categories that
// qualified for the single retry are visited. Returns true when the pass
// was aborted by a rate-limit signal.
func (o *Orchestrator) pass(ctx context.Context, progress []*types.CategoryProgress, retry bool) bool {
	for _, p := range progress {
		if retry && !p.Retryable() {
			continue
		}
		if !retry && p.State() != types.StatePending {
			continue
		}
		if ctx.Err() != nil {
			return false
		}

		err := o.runCategory(ctx, p)
		if errors.Is(err, types.ErrRateLimited) {
			o.logger.Warn("rate limited, aborting remaining pass",
				"label", p.Tag.Label, "retry_pass", retry)
			return true
		}

		if err := o.sleep(ctx, randomDelay(o.rng, o.cfg.CategoryDelayMin, o.cfg.CategoryDelayMax)); err != nil {
			return false
		}
	}
	return false
}

// runCategory takes one category through select, collect, and enrich. The
// returned error is only consulted for the rate-limit abort; everything else
// is already recorded on the progress record.
func (o *Orchestrator) runCategory(ctx context.Context, p *types.CategoryProgress) error {
	if err := p.Start(); err != nil {
		o.logger.Error("invalid category transition", "error", err)
		return nil
	}
	o.logger.Info("category started", "label", p.Tag.Label, "attempt", p.Attempts())

	if err := o.navigator.Select(ctx, p.Tag); err != nil {
		_ = p.Fail(err)
		return err
	}

	links, err := o.collector.Collect(ctx, p.Tag)
	if err != nil {
		if errors.Is(err, types.ErrEmptyListing) {
			_ = p.Finish(0)
			return nil
		}
		_ = p.Fail(err)
		return err
	}

	collected := 0
	for _, link := range links {
		key := CanonicalURL(link.URL)
		if _, dup := o.seen[key]; dup {
			continue
		}

		store, err := o.menu.Enrich(ctx, link)
		if err != nil {
			_ = p.Fail(err)
			return err
		}

		o.seen[key] = struct{}{}
		o.stores = append(o.stores, store)
		collected++
	}

	_ = p.Finish(collected)
	o.logger.Info("category finished",
		"label", p.Tag.Label, "state", p.State().String(), "stores", collected)
	return nil
}
