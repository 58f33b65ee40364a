// Package crawl implements the category crawl: discovery, navigation,
// listing collection, menu enrichment, and the orchestrating state machine.
package crawl

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/types"
)

// categorySelector matches the category pill controls on the feed. The feed
// renders them as anchors inside a horizontally scrolling carousel.
const categorySelector = `a[data-testid*='category'], a[href*='/category/']`

// Discoverer enumerates the navigable categories on the feed surface.
type Discoverer struct {
	surface browser.Surface
	cfg     config.CrawlConfig
	logger  *slog.Logger
}

// NewDiscoverer creates a category discoverer.
func NewDiscoverer(surface browser.Surface, cfg config.CrawlConfig, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		surface: surface,
		cfg:     cfg,
		logger:  logger.With("component", "discoverer"),
	}
}

// Discover returns the category tags currently visible on the loaded feed,
// in presentation order, with permanent exclusions applied. Zero tags is
// reported by the caller, not treated as fatal here.
func (d *Discoverer) Discover(ctx context.Context) ([]types.CategoryTag, error) {
	els, err := d.surface.FindAll(ctx, categorySelector)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(els))
	tags := make([]types.CategoryTag, 0, len(els))
	for _, el := range els {
		tag, ok := d.tagFromElement(el)
		if !ok {
			continue
		}
		if _, dup := seen[tag.StableID]; dup {
			continue
		}
		if d.Excluded(tag.Label) {
			d.logger.Debug("category excluded", "label", tag.Label)
			continue
		}
		seen[tag.StableID] = struct{}{}
		tags = append(tags, tag)
	}

	d.logger.Info("categories discovered", "count", len(tags))
	return tags, nil
}

// Resolve returns the category set to crawl. A non-empty allow-list skips
// discovery entirely and is used verbatim, trusting that each entry may or
// may not currently exist; exclusions still apply.
func (d *Discoverer) Resolve(ctx context.Context) ([]types.CategoryTag, error) {
	if len(d.cfg.Categories) == 0 {
		return d.Discover(ctx)
	}

	tags := make([]types.CategoryTag, 0, len(d.cfg.Categories))
	for _, label := range d.cfg.Categories {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if d.Excluded(label) {
			d.logger.Warn("allow-listed category is permanently excluded, skipping", "label", label)
			continue
		}
		tags = append(tags, types.CategoryTag{Label: label, StableID: label})
	}
	d.logger.Info("category allow-list in effect", "count", len(tags))
	return tags, nil
}

// Excluded reports whether the label matches the permanent exclusion list.
// Matching is case-insensitive on substrings, so "大量超市團購" is caught
// by an exclusion entry of "超市".
func (d *Discoverer) Excluded(label string) bool {
	l := strings.ToLower(label)
	for _, ex := range d.cfg.ExcludedCategories {
		ex = strings.ToLower(strings.TrimSpace(ex))
		if ex != "" && strings.Contains(l, ex) {
			return true
		}
	}
	return false
}

func (d *Discoverer) tagFromElement(el browser.Element) (types.CategoryTag, bool) {
	label, err := el.Text()
	if err != nil {
		return types.CategoryTag{}, false
	}
	label = strings.TrimSpace(strings.SplitN(label, "\n", 2)[0])

	id, _ := el.Attribute("data-testid")
	href, _ := el.Attribute("href")
	if id == "" {
		id = href
	}
	if label == "" || id == "" {
		return types.CategoryTag{}, false
	}
	return types.CategoryTag{Label: label, StableID: id, Href: href}, true
}
