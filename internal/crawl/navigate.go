package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/types"
)

// navState tracks a single category selection through its lifecycle.
type navState int

const (
	navNotSelected navState = iota
	navAwaitingControls
	navSelected
	navRetryPending
	navFailed
)

func (s navState) String() string {
	switch s {
	case navNotSelected:
		return "NOT_SELECTED"
	case navAwaitingControls:
		return "AWAITING_CONTROLS"
	case navSelected:
		return "SELECTED"
	case navRetryPending:
		return "RETRY_PENDING"
	case navFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// rateLimitMarkers are fragments the site serves when it has flagged the
// session for abuse-rate blocking.
var rateLimitMarkers = []string{
	"too many requests",
	"unusual activity",
	"verify you are a human",
	"are you a robot",
	"access to this page has been denied",
}

// looksRateLimited scans a document for abuse-block signatures.
func looksRateLimited(html string) bool {
	l := strings.ToLower(html)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}

// Navigator makes the listing surface for a category actually visible and
// stable. A full page load does not imply the category controls have
// rendered, so every interaction waits for attachment first.
type Navigator struct {
	surface browser.Surface
	cfg     config.CrawlConfig
	logger  *slog.Logger
	rng     *rand.Rand
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewNavigator creates a navigation controller.
func NewNavigator(surface browser.Surface, cfg config.CrawlConfig, logger *slog.Logger) *Navigator {
	return &Navigator{
		surface: surface,
		cfg:     cfg,
		logger:  logger.With("component", "navigator"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   ctxSleep,
	}
}

// Select navigates to the tag's listing surface. On failure it performs
// exactly one full reload-and-retry before surfacing the error. A
// rate-limit signal is never retried; it escalates immediately.
func (n *Navigator) Select(ctx context.Context, tag types.CategoryTag) error {
	state := navNotSelected
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		err := n.trySelect(ctx, tag)
		if err == nil {
			state = navSelected
			n.logger.Debug("category selected", "label", tag.Label, "state", state.String(), "attempt", attempt+1)
			return nil
		}
		if errors.Is(err, types.ErrRateLimited) || ctx.Err() != nil {
			return err
		}

		lastErr = err
		if attempt == 0 {
			state = navRetryPending
			n.logger.Warn("category selection failed, reloading once",
				"label", tag.Label, "state", state.String(), "error", err)
			if rerr := n.surface.Reload(ctx); rerr != nil {
				n.logger.Warn("reload failed", "label", tag.Label, "error", rerr)
			}
		}
	}

	state = navFailed
	return &types.NavError{Category: tag.Label, Stage: state.String(), Err: lastErr}
}

func (n *Navigator) trySelect(ctx context.Context, tag types.CategoryTag) error {
	if err := n.surface.Navigate(ctx, n.cfg.FeedURL); err != nil {
		return fmt.Errorf("load feed: %w", err)
	}

	// AWAITING_CONTROLS: wait for any category control to attach to the
	// render tree, bounded by the attach ceiling.
	if _, err := n.surface.Find(ctx, categorySelector, n.cfg.ControlAttachTimeout); err != nil {
		return fmt.Errorf("%w: %v", types.ErrNavigationTimeout, err)
	}

	var selErr error
	for _, strategy := range []func(context.Context, types.CategoryTag) error{
		n.directNavigate,
		n.clickControl,
	} {
		selErr = strategy(ctx, tag)
		if selErr == nil {
			break
		}
		if errors.Is(selErr, types.ErrRateLimited) {
			return selErr
		}
		n.logger.Debug("selection strategy failed, trying next", "label", tag.Label, "error", selErr)
	}
	if selErr != nil {
		return selErr
	}

	return n.settle(ctx, tag)
}

// directNavigate extracts a direct navigation target from the control and
// loads it. Preferred over simulated clicks: controls with unrasterized
// image assets report a zero-size box and cannot be clicked reliably.
func (n *Navigator) directNavigate(ctx context.Context, tag types.CategoryTag) error {
	target := tag.Href
	if target == "" {
		el, err := n.findControl(ctx, tag)
		if err != nil {
			return err
		}
		target, err = el.Attribute("href")
		if err != nil || target == "" {
			return fmt.Errorf("%w: no direct target on control %q", types.ErrInteractionUnavailable, tag.Label)
		}
	}
	resolved, err := n.resolve(target)
	if err != nil {
		return err
	}
	return n.surface.Navigate(ctx, resolved)
}

// clickControl simulates interaction with the control: bring it into the
// viewport along both axes, then click.
func (n *Navigator) clickControl(ctx context.Context, tag types.CategoryTag) error {
	el, err := n.findControl(ctx, tag)
	if err != nil {
		return err
	}

	box, err := el.Box()
	if err != nil {
		return fmt.Errorf("read control box %q: %w", tag.Label, err)
	}
	if box.Zero() {
		return fmt.Errorf("%w: control %q has a zero-size box", types.ErrInteractionUnavailable, tag.Label)
	}

	if err := el.BringIntoView(); err != nil {
		return fmt.Errorf("bring control %q into view: %w", tag.Label, err)
	}
	if err := el.Click(); err != nil {
		return fmt.Errorf("click control %q: %w", tag.Label, err)
	}
	return nil
}

// settle waits for quiescence plus a randomized delay before declaring the
// category selected, then checks for an abuse-rate block.
func (n *Navigator) settle(ctx context.Context, tag types.CategoryTag) error {
	if err := n.surface.WaitQuiescent(ctx, n.cfg.ControlAttachTimeout); err != nil {
		n.logger.Debug("quiescence wait expired, continuing", "label", tag.Label, "error", err)
	}
	if err := n.sleep(ctx, randomDelay(n.rng, n.cfg.SettleDelayMin, n.cfg.SettleDelayMax)); err != nil {
		return err
	}

	html, err := n.surface.HTML(ctx)
	if err == nil && looksRateLimited(html) {
		return fmt.Errorf("%w: block page after selecting %q", types.ErrRateLimited, tag.Label)
	}
	return nil
}

// findControl locates the tag's control among the currently attached
// category controls, matching by stable id first, then by label.
func (n *Navigator) findControl(ctx context.Context, tag types.CategoryTag) (browser.Element, error) {
	els, err := n.surface.FindAll(ctx, categorySelector)
	if err != nil {
		return nil, err
	}
	var byLabel browser.Element
	for _, el := range els {
		if id, _ := el.Attribute("data-testid"); id != "" && id == tag.StableID {
			return el, nil
		}
		if href, _ := el.Attribute("href"); href != "" && href == tag.StableID {
			return el, nil
		}
		if byLabel == nil {
			if text, _ := el.Text(); strings.EqualFold(strings.TrimSpace(text), tag.Label) {
				byLabel = el
			}
		}
	}
	if byLabel != nil {
		return byLabel, nil
	}
	return nil, fmt.Errorf("%w: category control %q", types.ErrElementNotFound, tag.Label)
}

func (n *Navigator) resolve(target string) (string, error) {
	base, err := url.Parse(n.cfg.FeedURL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse navigation target %q: %w", target, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// randomDelay draws a duration uniformly from [min, max].
func randomDelay(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}

// ctxSleep sleeps for d or until the context is canceled.
func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
