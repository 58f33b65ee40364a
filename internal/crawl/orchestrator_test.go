package crawl

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/types"
)

// scriptedFeed wires a fakeSurface that serves category controls on the feed
// and per-category store listings, with listings supplied by the test.
type scriptedFeed struct {
	surface *fakeSurface
	// listings maps category label to a function returning the store hrefs
	// visible on that category's page for the given visit number.
	listings map[string]func(visit int) []string
	visits   map[string]int
}

func newScriptedFeed(labels ...string) *scriptedFeed {
	f := &scriptedFeed{
		surface:  &fakeSurface{},
		listings: make(map[string]func(int) []string),
		visits:   make(map[string]int),
	}

	visible := browser.Box{Width: 80, Height: 40}
	f.surface.elements = func(sel string) []browser.Element {
		current := f.surface.current
		switch sel {
		case categorySelector:
			els := make([]browser.Element, 0, len(labels))
			for _, l := range labels {
				els = append(els, categoryEl(l, "cat-"+l, "/tw/category/"+l, visible))
			}
			return els
		case storeLinkSelector:
			label := categoryFromURL(current)
			fn := f.listings[label]
			if fn == nil {
				return nil
			}
			hrefs := fn(f.visits[label])
			els := make([]browser.Element, 0, len(hrefs))
			for i, href := range hrefs {
				els = append(els, storeEl(fmt.Sprintf("%s 店 %d", label, i), href))
			}
			return els
		}
		return nil
	}
	return f
}

func categoryFromURL(url string) string {
	i := strings.LastIndex(url, "/category/")
	if i < 0 {
		return ""
	}
	return url[i+len("/category/"):]
}

// countVisits wraps the orchestrator run so each category selection bumps
// its visit counter. Selection always navigates through the feed first, so
// arriving on a category page marks one visit.
func (f *scriptedFeed) trackVisits() {
	inner := f.surface.elements
	lastURL := ""
	f.surface.elements = func(sel string) []browser.Element {
		if cur := f.surface.current; cur != lastURL {
			if label := categoryFromURL(cur); label != "" {
				f.visits[label]++
			}
			lastURL = cur
		}
		return inner(sel)
	}
}

func newTestOrchestrator(surface *fakeSurface) *Orchestrator {
	cfg := testCrawlConfig()
	cfg.ExcludedCategories = nil
	o := NewOrchestrator(surface, &fakeSnapshotter{}, cfg, testLogger())
	o.sleep = noSleep
	o.navigator.sleep = noSleep
	o.collector.sleep = noSleep
	o.menu.sleep = noSleep
	return o
}

func TestRunEmptyCategoryGetsOneRetry(t *testing.T) {
	feed := newScriptedFeed("a", "d")
	feed.listings["a"] = func(int) []string {
		return []string{storeHref(1), storeHref(2)}
	}
	// Empty on the first visit, 1 store on the retry.
	feed.listings["d"] = func(visit int) []string {
		if visit <= 1 {
			return nil
		}
		return []string{storeHref(42)}
	}
	feed.trackVisits()

	o := newTestOrchestrator(feed.surface)
	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Stores) != 3 {
		t.Fatalf("got %d stores, want 3", len(res.Stores))
	}
	if feed.visits["d"] != 2 {
		t.Errorf("category d visited %d times, want 2", feed.visits["d"])
	}

	byLabel := outcomesByLabel(res.Outcomes)
	if byLabel["a"].State != types.StateSucceeded.String() || byLabel["a"].StoreCount != 2 {
		t.Errorf("outcome a = %+v", byLabel["a"])
	}
	d := byLabel["d"]
	if d.State != types.StateSucceeded.String() || d.StoreCount != 1 || !d.Retried {
		t.Errorf("outcome d = %+v, want retried success with 1 store", d)
	}
}

func TestRunEmptyTwiceEndsEmpty(t *testing.T) {
	feed := newScriptedFeed("a")
	feed.listings["a"] = func(int) []string { return nil }
	feed.trackVisits()

	o := newTestOrchestrator(feed.surface)
	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if feed.visits["a"] != 2 {
		t.Errorf("category a visited %d times, want exactly 2 (one retry)", feed.visits["a"])
	}
	if res.Outcomes[0].State != types.StateEmpty.String() {
		t.Errorf("outcome = %+v, want EMPTY", res.Outcomes[0])
	}
	if len(res.Stores) != 0 {
		t.Errorf("got %d stores, want 0", len(res.Stores))
	}
}

func TestRunRateLimitAbortsAndPreservesPartials(t *testing.T) {
	feed := newScriptedFeed("a", "b", "c")
	feed.listings["a"] = func(int) []string {
		return []string{storeHref(1), storeHref(2)}
	}
	feed.listings["b"] = func(int) []string { return []string{storeHref(3)} }
	feed.listings["c"] = func(int) []string { return []string{storeHref(4)} }

	// The block page appears once the crawl reaches category b.
	feed.surface.htmlFn = func(current string) string {
		if categoryFromURL(current) == "b" {
			return "<html>too many requests</html>"
		}
		return "<html>ok</html>"
	}

	o := newTestOrchestrator(feed.surface)
	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !res.RateLimited {
		t.Fatal("RateLimited not set")
	}
	if len(res.Stores) != 2 {
		t.Errorf("got %d stores, want the 2 collected before the abort", len(res.Stores))
	}

	byLabel := outcomesByLabel(res.Outcomes)
	if byLabel["a"].State != types.StateSucceeded.String() {
		t.Errorf("outcome a = %+v", byLabel["a"])
	}
	if byLabel["b"].State != types.StateFailed.String() {
		t.Errorf("outcome b = %+v, want FAILED", byLabel["b"])
	}
	if byLabel["c"].State != types.StatePending.String() {
		t.Errorf("outcome c = %+v, want still PENDING", byLabel["c"])
	}
	if byLabel["b"].Retried || byLabel["c"].Retried {
		t.Error("rate-limited run must skip the retry pass")
	}
}

func TestRunDedupsAcrossCategories(t *testing.T) {
	feed := newScriptedFeed("a", "b")
	// Both categories list store 7; it must appear once, credited to a.
	feed.listings["a"] = func(int) []string {
		return []string{storeHref(7), storeHref(1)}
	}
	feed.listings["b"] = func(int) []string {
		return []string{storeHref(7), storeHref(2)}
	}

	o := newTestOrchestrator(feed.surface)
	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Stores) != 3 {
		t.Fatalf("got %d stores, want 3 after dedup", len(res.Stores))
	}
	count := 0
	for _, s := range res.Stores {
		if strings.Contains(s.URL, fmt.Sprintf("%022d", 7)) {
			count++
			if s.Category != "a" {
				t.Errorf("duplicate store credited to %q, want first-seen category a", s.Category)
			}
		}
	}
	if count != 1 {
		t.Errorf("duplicate store appears %d times, want 1", count)
	}
}

func TestRunZeroCategoriesIsNotFatal(t *testing.T) {
	surface := &fakeSurface{
		elements: func(string) []browser.Element { return nil },
	}
	o := newTestOrchestrator(surface)
	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("zero discovered categories must not fail the run: %v", err)
	}
	if len(res.Stores) != 0 || len(res.Outcomes) != 0 {
		t.Errorf("result = %+v, want empty stores and outcomes", res)
	}
	if res.RateLimited {
		t.Error("RateLimited set on an empty run")
	}
}

func outcomesByLabel(outcomes []types.CategoryOutcome) map[string]types.CategoryOutcome {
	m := make(map[string]types.CategoryOutcome, len(outcomes))
	for _, o := range outcomes {
		m[o.Label] = o
	}
	return m
}
