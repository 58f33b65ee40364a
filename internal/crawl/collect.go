package crawl

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/types"
)

// storeLinkSelector matches store cards on a category listing.
const storeLinkSelector = `a[href*='/store/']`

// scrollStep is the per-round viewport scroll distance in pixels.
const scrollStep = 1200

// Collector harvests store links from a selected category listing. The
// listing lazy-loads on scroll, so collection alternates scroll rounds with
// harvest passes until the set stops growing.
type Collector struct {
	surface browser.Surface
	cfg     config.CrawlConfig
	logger  *slog.Logger
	rng     *rand.Rand
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewCollector creates a listing collector.
func NewCollector(surface browser.Surface, cfg config.CrawlConfig, logger *slog.Logger) *Collector {
	return &Collector{
		surface: surface,
		cfg:     cfg,
		logger:  logger.With("component", "collector"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   ctxSleep,
	}
}

// Collect scrolls the current listing and returns the unique stores found,
// tagged with the category label. Termination: the per-category cap (0 means
// uncapped), the stale-round threshold (consecutive rounds with no growth),
// or the hard round ceiling, whichever comes first. Zero stores after a
// stable listing is reported as types.ErrEmptyListing.
func (c *Collector) Collect(ctx context.Context, tag types.CategoryTag) ([]types.StoreLink, error) {
	seen := make(map[string]struct{})
	var links []types.StoreLink
	stale := 0

	for round := 0; round < c.cfg.MaxScrollRounds; round++ {
		if err := ctx.Err(); err != nil {
			return links, err
		}

		added, err := c.harvest(ctx, tag, seen, &links)
		if err != nil {
			return links, err
		}

		if limit := c.cfg.MaxStoresPerCategory; limit > 0 && len(links) >= limit {
			links = links[:limit]
			c.logger.Debug("per-category cap reached", "label", tag.Label, "count", len(links))
			break
		}

		if added == 0 {
			stale++
			if stale >= c.cfg.StaleScrollRounds {
				c.logger.Debug("listing stabilized", "label", tag.Label, "rounds", round+1)
				break
			}
		} else {
			stale = 0
		}

		if err := c.surface.ScrollBy(ctx, 0, scrollStep); err != nil {
			c.logger.Warn("scroll failed", "label", tag.Label, "error", err)
		}
		if err := c.sleep(ctx, randomDelay(c.rng, c.cfg.ScrollDelayMin, c.cfg.ScrollDelayMax)); err != nil {
			return links, err
		}
	}

	if len(links) == 0 {
		return nil, &types.NavError{Category: tag.Label, Stage: "COLLECT", Err: types.ErrEmptyListing}
	}

	c.logger.Info("category collected", "label", tag.Label, "stores", len(links))
	return links, nil
}

// harvest scans the currently attached store cards and appends the ones not
// seen before, keyed by the store's stable ID.
func (c *Collector) harvest(ctx context.Context, tag types.CategoryTag, seen map[string]struct{}, links *[]types.StoreLink) (int, error) {
	els, err := c.surface.FindAll(ctx, storeLinkSelector)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, el := range els {
		link, ok := c.linkFromElement(el, tag)
		if !ok {
			continue
		}
		if _, dup := seen[link.StoreID]; dup {
			continue
		}
		seen[link.StoreID] = struct{}{}
		*links = append(*links, link)
		added++
		if limit := c.cfg.MaxStoresPerCategory; limit > 0 && len(*links) >= limit {
			break
		}
	}
	return added, nil
}

func (c *Collector) linkFromElement(el browser.Element, tag types.CategoryTag) (types.StoreLink, bool) {
	href, err := el.Attribute("href")
	if err != nil || href == "" {
		return types.StoreLink{}, false
	}
	id := ExtractStoreID(href)
	if id == "" {
		return types.StoreLink{}, false
	}

	slug := ExtractStoreSlug(href)
	name := slug
	if text, err := el.Text(); err == nil {
		// The card text stacks name, rating, and ETA; the name is the
		// first non-empty line.
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				name = line
				break
			}
		}
	}

	return types.StoreLink{
		StoreID:  id,
		Name:     name,
		Slug:     slug,
		URL:      BuildStoreURL(c.cfg.FeedURL, slug, id),
		Category: tag.Label,
	}, true
}
