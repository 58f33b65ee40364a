package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yutingko/teascout/internal/browser"
	"github.com/yutingko/teascout/internal/types"
)

// fakeElement implements browser.Element for tests.
type fakeElement struct {
	text    string
	attrs   map[string]string
	box     browser.Box
	clicks  int
	clickEr error
	inputs  []string
}

func (e *fakeElement) Text() (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(name string) (string, error) {
	return e.attrs[name], nil
}

func (e *fakeElement) BringIntoView() error { return nil }

func (e *fakeElement) Click() error {
	e.clicks++
	return e.clickEr
}

func (e *fakeElement) Input(text string) error {
	e.inputs = append(e.inputs, text)
	return nil
}

func (e *fakeElement) Box() (browser.Box, error) { return e.box, nil }

// fakeSurface implements browser.Surface for tests. Element lookup delegates
// to the elements callback so tests can vary results by selector and state.
type fakeSurface struct {
	mu       sync.Mutex
	current  string
	navErr   map[string]error
	navs     []string
	reloads  int
	scrolls  int
	html     string
	htmlFn   func(current string) string
	onScroll func(scrolls int)
	elements func(selector string) []browser.Element
}

func (s *fakeSurface) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navs = append(s.navs, url)
	if err := s.navErr[url]; err != nil {
		return err
	}
	s.current = url
	return nil
}

func (s *fakeSurface) Reload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	return nil
}

func (s *fakeSurface) WaitQuiescent(context.Context, time.Duration) error { return nil }

func (s *fakeSurface) Find(ctx context.Context, selector string, _ time.Duration) (browser.Element, error) {
	els, err := s.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return els[0], nil
}

func (s *fakeSurface) FindAll(_ context.Context, selector string) ([]browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.elements == nil {
		return nil, nil
	}
	return s.elements(selector), nil
}

func (s *fakeSurface) ScrollBy(context.Context, int, int) error {
	s.mu.Lock()
	fn := s.onScroll
	s.scrolls++
	n := s.scrolls
	s.mu.Unlock()
	if fn != nil {
		fn(n)
	}
	return nil
}

func (s *fakeSurface) HTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.htmlFn != nil {
		return s.htmlFn(s.current), nil
	}
	return s.html, nil
}

func (s *fakeSurface) CurrentURL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *fakeSurface) Close() error { return nil }

// noSleep replaces the randomized delays in tests.
func noSleep(context.Context, time.Duration) error { return nil }

// categoryEl builds a category control element.
func categoryEl(label, testid, href string, box browser.Box) *fakeElement {
	return &fakeElement{
		text:  label,
		attrs: map[string]string{"data-testid": testid, "href": href},
		box:   box,
	}
}

// storeEl builds a store card element.
func storeEl(name, href string) *fakeElement {
	return &fakeElement{
		text:  name + "\n4.8 (500+)\n20 min",
		attrs: map[string]string{"href": href},
	}
}
