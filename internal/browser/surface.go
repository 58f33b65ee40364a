// Package browser defines the automation surface the crawler drives and its
// headless-browser implementation. Crawl logic depends only on the Surface
// and Element interfaces so tests can inject fakes.
package browser

import (
	"context"
	"time"
)

// Box is an element's rendered bounding box. Controls occasionally report a
// zero-size box (image assets not yet rasterized), in which case clicking is
// unreliable.
type Box struct {
	Width  float64
	Height float64
}

// Zero reports whether the box has no visible area.
func (b Box) Zero() bool { return b.Width <= 0 || b.Height <= 0 }

// Element is a handle to a rendered DOM element.
type Element interface {
	// Text returns the element's visible text.
	Text() (string, error)

	// Attribute returns the named attribute, or "" when absent.
	Attribute(name string) (string, error)

	// BringIntoView scrolls the element into the viewport along both axes.
	// Vertical-only scrolling is not enough for controls rendered inside
	// horizontally scrolling carousels.
	BringIntoView() error

	// Click simulates a pointer click on the element.
	Click() error

	// Input focuses the element, clears it, and types the given text.
	Input(text string) error

	// Box returns the element's current bounding box.
	Box() (Box, error)
}

// Surface is the abstract browser automation capability. A full page load
// does not imply that dynamic content has settled; callers combine Navigate
// with WaitQuiescent and bounded Find calls.
type Surface interface {
	// Navigate loads the URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Reload reloads the current page.
	Reload(ctx context.Context) error

	// WaitQuiescent blocks until no further network activity or DOM
	// mutation is expected imminently, bounded by timeout.
	WaitQuiescent(ctx context.Context, timeout time.Duration) error

	// Find returns the first element matching the selector, waiting up to
	// timeout for it to attach. Returns types.ErrElementNotFound (wrapped)
	// when nothing attaches in time.
	Find(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// FindAll returns all elements currently matching the selector,
	// without waiting.
	FindAll(ctx context.Context, selector string) ([]Element, error)

	// ScrollBy scrolls the viewport by the given number of pixels.
	ScrollBy(ctx context.Context, x, y int) error

	// HTML returns the current serialized document.
	HTML(ctx context.Context) (string, error)

	// CurrentURL returns the page's current location.
	CurrentURL(ctx context.Context) (string, error)

	// Close releases the underlying browser resources.
	Close() error
}
