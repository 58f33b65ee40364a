package crawl

import (
	"context"
	"errors"
	"testing"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/types"
)

func newTestNavigator(surface *fakeSurface) *Navigator {
	n := NewNavigator(surface, testCrawlConfig(), testLogger())
	n.sleep = noSleep
	return n
}

func TestSelectPrefersDirectHref(t *testing.T) {
	visible := browser.Box{Width: 80, Height: 40}
	control := categoryEl("咖啡和茶", "cat-coffee", "/tw/category/coffee", visible)
	surface := &fakeSurface{
		elements: func(sel string) []browser.Element {
			if sel == categorySelector {
				return []browser.Element{control}
			}
			return nil
		},
	}

	n := newTestNavigator(surface)
	tag := types.CategoryTag{Label: "咖啡和茶", StableID: "cat-coffee", Href: "/tw/category/coffee"}
	if err := n.Select(context.Background(), tag); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if control.clicks != 0 {
		t.Error("direct href available, control should not be clicked")
	}
	want := "https://www.ubereats.com/tw/category/coffee"
	found := false
	for _, u := range surface.navs {
		if u == want {
			found = true
		}
	}
	if !found {
		t.Errorf("navigations %v missing %q", surface.navs, want)
	}
}

func TestSelectFallsBackToClickWhenNoHref(t *testing.T) {
	visible := browser.Box{Width: 80, Height: 40}
	control := categoryEl("甜點", "cat-dessert", "", visible)
	surface := &fakeSurface{
		elements: func(sel string) []browser.Element {
			if sel == categorySelector {
				return []browser.Element{control}
			}
			return nil
		},
	}

	n := newTestNavigator(surface)
	tag := types.CategoryTag{Label: "甜點", StableID: "cat-dessert"}
	if err := n.Select(context.Background(), tag); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if control.clicks == 0 {
		t.Error("expected simulated click when no direct target exists")
	}
}

func TestSelectZeroSizeBoxWithoutHrefFails(t *testing.T) {
	// No href and a zero-size box leaves no working strategy. The failure
	// must be preceded by exactly one reload-and-retry.
	control := categoryEl("早餐", "cat-breakfast", "", browser.Box{})
	surface := &fakeSurface{
		elements: func(sel string) []browser.Element {
			if sel == categorySelector {
				return []browser.Element{control}
			}
			return nil
		},
	}

	n := newTestNavigator(surface)
	tag := types.CategoryTag{Label: "早餐", StableID: "cat-breakfast"}
	err := n.Select(context.Background(), tag)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, types.ErrInteractionUnavailable) {
		t.Errorf("error = %v, want ErrInteractionUnavailable", err)
	}

	var navErr *types.NavError
	if !errors.As(err, &navErr) {
		t.Fatalf("error %v is not a NavError", err)
	}
	if surface.reloads != 1 {
		t.Errorf("reloads = %d, want exactly 1", surface.reloads)
	}
	if control.clicks != 0 {
		t.Error("zero-size control must never be clicked")
	}
}

func TestSelectTimesOutWhenControlsNeverAttach(t *testing.T) {
	surface := &fakeSurface{
		elements: func(string) []browser.Element { return nil },
	}

	n := newTestNavigator(surface)
	err := n.Select(context.Background(), types.CategoryTag{Label: "x", StableID: "x"})
	if !errors.Is(err, types.ErrNavigationTimeout) {
		t.Errorf("error = %v, want ErrNavigationTimeout", err)
	}
	if surface.reloads != 1 {
		t.Errorf("reloads = %d, want 1", surface.reloads)
	}
}

func TestSelectRateLimitIsNotRetried(t *testing.T) {
	visible := browser.Box{Width: 80, Height: 40}
	surface := &fakeSurface{
		html: "<html><body>Too many requests</body></html>",
		elements: func(sel string) []browser.Element {
			if sel == categorySelector {
				return []browser.Element{categoryEl("x", "cat-x", "/tw/category/x", visible)}
			}
			return nil
		},
	}

	n := newTestNavigator(surface)
	tag := types.CategoryTag{Label: "x", StableID: "cat-x", Href: "/tw/category/x"}
	err := n.Select(context.Background(), tag)
	if !errors.Is(err, types.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	if surface.reloads != 0 {
		t.Errorf("rate limit must not trigger a reload retry, got %d reloads", surface.reloads)
	}
}

func TestLooksRateLimited(t *testing.T) {
	tests := []struct {
		html string
		want bool
	}{
		{"<p>TOO MANY REQUESTS</p>", true},
		{"<p>we detected unusual activity</p>", true},
		{"<p>please verify you are a human</p>", true},
		{"<p>welcome to the feed</p>", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := looksRateLimited(tt.html); got != tt.want {
			t.Errorf("looksRateLimited(%q) = %v, want %v", tt.html, got, tt.want)
		}
	}
}

func TestFindControlMatchesByStableIDThenLabel(t *testing.T) {
	visible := browser.Box{Width: 80, Height: 40}
	byID := categoryEl("咖啡和茶", "cat-coffee", "", visible)
	byLabel := categoryEl("甜點", "other-id", "", visible)
	surface := &fakeSurface{
		elements: func(string) []browser.Element {
			return []browser.Element{byLabel, byID}
		},
	}
	n := newTestNavigator(surface)

	el, err := n.findControl(context.Background(), types.CategoryTag{Label: "咖啡和茶", StableID: "cat-coffee"})
	if err != nil {
		t.Fatalf("findControl by id: %v", err)
	}
	if el != browser.Element(byID) {
		t.Error("expected stable-id match to win")
	}

	el, err = n.findControl(context.Background(), types.CategoryTag{Label: "甜點", StableID: "missing"})
	if err != nil {
		t.Fatalf("findControl by label: %v", err)
	}
	if el != browser.Element(byLabel) {
		t.Error("expected label fallback match")
	}

	_, err = n.findControl(context.Background(), types.CategoryTag{Label: "missing", StableID: "missing"})
	if !errors.Is(err, types.ErrElementNotFound) {
		t.Errorf("error = %v, want ErrElementNotFound", err)
	}
}
