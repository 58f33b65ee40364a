package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/types"
)

// RodSurface implements Surface using a headless Chromium driven by Rod,
// with stealth patches applied to the page.
type RodSurface struct {
	browser *rod.Browser
	page    *rod.Page
	cfg     config.BrowserConfig
	logger  *slog.Logger
}

// NewRodSurface launches a browser and prepares a single stealth page.
func NewRodSurface(cfg config.BrowserConfig, logger *slog.Logger) (*RodSurface, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.Locale != "" {
		l = l.Set("lang", cfg.Locale)
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(launchURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("stealth page: %w", err)
	}

	if cfg.UserAgent != "" {
		override := &proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}
		if cfg.Locale != "" {
			override.AcceptLanguage = cfg.Locale
		}
		if err := override.Call(page); err != nil {
			logger.Warn("failed to set user agent", "error", err)
		}
	}
	if cfg.Timezone != "" {
		tz := proto.EmulationSetTimezoneOverride{TimezoneID: cfg.Timezone}
		if err := tz.Call(page); err != nil {
			logger.Warn("failed to set timezone", "error", err)
		}
	}

	s := &RodSurface{
		browser: b,
		page:    page,
		cfg:     cfg,
		logger:  logger.With("component", "browser"),
	}
	s.logger.Info("browser surface ready", "headless", cfg.Headless, "locale", cfg.Locale)
	return s, nil
}

// Navigate loads the URL and waits for the document to be ready.
func (s *RodSurface) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.navTimeout())
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// Reload reloads the current page.
func (s *RodSurface) Reload(ctx context.Context) error {
	p := s.page.Context(ctx).Timeout(s.navTimeout())
	if err := p.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return p.WaitLoad()
}

// WaitQuiescent waits for the DOM to stop mutating.
func (s *RodSurface) WaitQuiescent(ctx context.Context, timeout time.Duration) error {
	p := s.page.Context(ctx).Timeout(timeout)
	if err := p.WaitStable(300 * time.Millisecond); err != nil {
		// Stability timeouts are common on pages with long-polling
		// widgets; report but let callers decide.
		return fmt.Errorf("wait quiescent: %w", err)
	}
	return nil
}

// Find waits up to timeout for the first matching element to attach.
func (s *RodSurface) Find(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	p := s.page.Context(ctx).Timeout(timeout)
	el, err := p.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrElementNotFound, selector, err)
	}
	return &rodElement{el: el}, nil
}

// FindAll returns the elements currently matching the selector.
func (s *RodSurface) FindAll(ctx context.Context, selector string) ([]Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find all %s: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

// ScrollBy scrolls the viewport by the given delta.
func (s *RodSurface) ScrollBy(ctx context.Context, x, y int) error {
	_, err := s.page.Context(ctx).Eval(fmt.Sprintf(`() => window.scrollBy(%d, %d)`, x, y))
	return err
}

// HTML returns the serialized document.
func (s *RodSurface) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// CurrentURL returns the page's current location.
func (s *RodSurface) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

// Close shuts down the browser.
func (s *RodSurface) Close() error {
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}

func (s *RodSurface) navTimeout() time.Duration {
	if s.cfg.NavTimeout > 0 {
		return s.cfg.NavTimeout
	}
	return 30 * time.Second
}

// rodElement adapts *rod.Element to the Element interface.
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElement) Attribute(name string) (string, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// BringIntoView centers the element in the viewport on both axes. Rod's
// ScrollIntoView only guarantees the vertical axis, which loses controls
// inside horizontal carousels.
func (e *rodElement) BringIntoView() error {
	_, err := e.el.Eval(`() => this.scrollIntoView({block: "center", inline: "center"})`)
	return err
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Input(text string) error {
	if err := e.el.SelectAllText(); err != nil {
		return err
	}
	return e.el.Input(text)
}

func (e *rodElement) Box() (Box, error) {
	shape, err := e.el.Shape()
	if err != nil {
		return Box{}, err
	}
	rect := shape.Box()
	if rect == nil {
		return Box{}, nil
	}
	return Box{Width: rect.Width, Height: rect.Height}, nil
}
