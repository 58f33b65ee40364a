package crawl

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/types"
)

// menuItemSelector matches priced item cards on a store page.
const menuItemSelector = `li[data-testid*='store-item'], div[data-testid*='store-item'], li div[data-test*='menu-item']`

// menuItemXPath is the fallback query when CSS selectors miss, which happens
// on the server-rendered variant of the store page.
const menuItemXPath = `//li[contains(@data-testid, 'store-item')] | //div[contains(@data-testid, 'store-item')]`

// snapshotter fetches a rendered-as-served HTML document.
type snapshotter interface {
	Get(ctx context.Context, url string) (string, error)
}

// MenuScraper enriches store links with menu items and an average price.
// Strategy order per store: cheap HTTP snapshot parsed with CSS selectors,
// the same snapshot re-queried with XPath, and only then a full browser
// render with scroll rounds.
type MenuScraper struct {
	fetcher snapshotter
	surface browser.Surface
	cfg     config.CrawlConfig
	logger  *slog.Logger
	rng     *rand.Rand
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewMenuScraper creates a menu scraper. surface may be nil to disable the
// browser fallback.
func NewMenuScraper(fetcher snapshotter, surface browser.Surface, cfg config.CrawlConfig, logger *slog.Logger) *MenuScraper {
	return &MenuScraper{
		fetcher: fetcher,
		surface: surface,
		cfg:     cfg,
		logger:  logger.With("component", "menu"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   ctxSleep,
	}
}

// Enrich turns a store link into a full store record. Menu failures are not
// fatal: the store is still returned, just without items. A rate-limit
// signal from any strategy propagates so the caller can abort the pass.
func (m *MenuScraper) Enrich(ctx context.Context, link types.StoreLink) (types.Store, error) {
	store := types.Store{
		Name:     link.Name,
		Category: link.Category,
		URL:      link.URL,
	}
	if m.cfg.SkipMenus {
		return store, nil
	}

	items, err := m.scrape(ctx, link)
	if err != nil {
		if errors.Is(err, types.ErrRateLimited) || ctx.Err() != nil {
			return store, err
		}
		m.logger.Warn("menu scrape failed, keeping store without items",
			"store", link.Name, "error", err)
		return store, nil
	}

	store.MenuItems = items
	store.AvgPrice = types.AvgMenuPrice(items)
	return store, nil
}

func (m *MenuScraper) scrape(ctx context.Context, link types.StoreLink) ([]types.MenuItem, error) {
	doc, err := m.fetcher.Get(ctx, link.URL)
	if err != nil {
		if errors.Is(err, types.ErrRateLimited) {
			return nil, err
		}
		m.logger.Debug("snapshot fetch failed", "store", link.Name, "error", err)
	} else {
		if looksRateLimited(doc) {
			return nil, types.ErrRateLimited
		}
		if items := parseMenuCSS(doc); len(items) > 0 {
			return items, nil
		}
		if items := parseMenuXPath(doc); len(items) > 0 {
			return items, nil
		}
	}

	if m.surface == nil {
		return nil, errors.New("snapshot yielded no menu items and no browser fallback")
	}
	return m.scrapeBrowser(ctx, link)
}

// parseMenuCSS extracts menu items from a document using CSS selectors.
func parseMenuCSS(doc string) []types.MenuItem {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil
	}

	var items []types.MenuItem
	seen := make(map[string]struct{})
	d.Find(menuItemSelector).Each(func(_ int, sel *goquery.Selection) {
		if item, ok := menuItemFromText(sel.Text()); ok {
			if _, dup := seen[item.Name]; !dup {
				seen[item.Name] = struct{}{}
				items = append(items, item)
			}
		}
	})
	return items
}

// parseMenuXPath re-queries the document with XPath, catching markup the CSS
// path misses.
func parseMenuXPath(doc string) []types.MenuItem {
	root, err := htmlquery.Parse(strings.NewReader(doc))
	if err != nil {
		return nil
	}
	nodes, err := htmlquery.QueryAll(root, menuItemXPath)
	if err != nil {
		return nil
	}

	var items []types.MenuItem
	seen := make(map[string]struct{})
	for _, node := range nodes {
		if item, ok := menuItemFromText(nodeText(node)); ok {
			if _, dup := seen[item.Name]; !dup {
				seen[item.Name] = struct{}{}
				items = append(items, item)
			}
		}
	}
	return items
}

// nodeText walks the node's subtree collecting text, one line per text node.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// menuItemFromText parses an item card's stacked text: the name is the first
// line without a price, the price the first line with one. Serialized text
// sometimes runs name and price together on one line, so the text before the
// price token also counts as a name.
func menuItemFromText(text string) (types.MenuItem, bool) {
	var name string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if loc := priceRe.FindStringIndex(line); loc != nil {
			price, _ := ParsePrice(line)
			if name == "" {
				name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line[:loc[0]]), "NT"))
			}
			if name == "" {
				continue
			}
			return types.MenuItem{Name: name, PriceTWD: price}, true
		}
		if name == "" {
			name = line
		}
	}
	return types.MenuItem{}, false
}

// scrapeBrowser renders the store page and harvests item cards over a few
// scroll rounds. Used only when the snapshot path comes up empty.
func (m *MenuScraper) scrapeBrowser(ctx context.Context, link types.StoreLink) ([]types.MenuItem, error) {
	if err := m.surface.Navigate(ctx, link.URL); err != nil {
		return nil, err
	}
	if err := m.surface.WaitQuiescent(ctx, m.cfg.ControlAttachTimeout); err != nil {
		m.logger.Debug("store page did not settle", "store", link.Name, "error", err)
	}

	var items []types.MenuItem
	seen := make(map[string]struct{})
	for round := 0; round < m.cfg.MenuScrollRounds; round++ {
		els, err := m.surface.FindAll(ctx, menuItemSelector)
		if err != nil {
			return items, err
		}
		for _, el := range els {
			text, err := el.Text()
			if err != nil {
				continue
			}
			if item, ok := menuItemFromText(text); ok {
				if _, dup := seen[item.Name]; !dup {
					seen[item.Name] = struct{}{}
					items = append(items, item)
				}
			}
		}

		if err := m.surface.ScrollBy(ctx, 0, scrollStep); err != nil {
			break
		}
		if err := m.sleep(ctx, randomDelay(m.rng, m.cfg.ScrollDelayMin, m.cfg.ScrollDelayMax)); err != nil {
			return items, err
		}
	}

	doc, err := m.surface.HTML(ctx)
	if err == nil && looksRateLimited(doc) {
		return items, types.ErrRateLimited
	}
	return items, nil
}
