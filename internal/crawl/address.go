package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/config"
)

// Selectors for the delivery-address prompt that gates the feed on a fresh
// session. Markup churns here, so several candidates are tried per step.
var (
	addressInputSelectors = []string{
		`input[id='location-typeahead-home-input']`,
		`input[placeholder*='地址']`,
		`input[aria-label*='address' i]`,
	}
	addressSuggestionSelector = `ul[id*='typeahead'] li, div[data-testid*='suggestion']`
)

// BootstrapAddress sets the delivery address so the feed renders a real
// storefront instead of the onboarding screen. Strictly best-effort: a
// session restored from prior state has no prompt at all, so every missing
// control is treated as "already set" rather than a failure.
func BootstrapAddress(ctx context.Context, surface browser.Surface, cfg config.CrawlConfig, logger *slog.Logger) {
	log := logger.With("component", "address")
	if cfg.Address == "" {
		log.Debug("no delivery address configured, skipping bootstrap")
		return
	}

	var input browser.Element
	for _, sel := range addressInputSelectors {
		el, err := surface.Find(ctx, sel, 3*time.Second)
		if err == nil {
			input = el
			break
		}
	}
	if input == nil {
		log.Debug("no address prompt present, assuming address is set")
		return
	}

	if err := input.Input(cfg.Address); err != nil {
		log.Warn("typing delivery address failed", "error", err)
		return
	}

	suggestion, err := surface.Find(ctx, addressSuggestionSelector, 5*time.Second)
	if err != nil {
		log.Warn("no address suggestions appeared", "address", cfg.Address)
		return
	}
	if err := suggestion.Click(); err != nil {
		log.Warn("selecting address suggestion failed", "error", err)
		return
	}

	if err := surface.WaitQuiescent(ctx, cfg.ControlAttachTimeout); err != nil {
		log.Debug("feed did not settle after address selection", "error", err)
	}
	log.Info("delivery address set", "address", cfg.Address)
}
