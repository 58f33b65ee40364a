package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the crawl and classification failure modes.
var (
	// ErrNavigationTimeout: category controls never attached within the bound.
	ErrNavigationTimeout = errors.New("navigation timed out waiting for controls")

	// ErrInteractionUnavailable: control attached but cannot be interacted
	// with (zero-size box). Triggers the direct-link fallback.
	ErrInteractionUnavailable = errors.New("control is not interactable")

	// ErrEmptyListing: listing stabilized but yielded zero stores.
	ErrEmptyListing = errors.New("listing yielded no stores")

	// ErrRateLimited: the site signalled abuse-rate blocking. Aborts the
	// remaining crawl pass; partial results are preserved.
	ErrRateLimited = errors.New("rate limited by target site")

	// ErrElementNotFound: the automation surface could not locate an element.
	ErrElementNotFound = errors.New("element not found")
)

// NavError wraps a category-scoped navigation or collection failure.
type NavError struct {
	Category string
	Stage    string
	Err      error
}

func (e *NavError) Error() string {
	return fmt.Sprintf("category %q (%s): %v", e.Category, e.Stage, e.Err)
}

func (e *NavError) Unwrap() error { return e.Err }

// ClassifyError wraps a batch-scoped classification failure. A ClassifyError
// never invalidates sibling batches.
type ClassifyError struct {
	BatchKey string
	Err      error
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classification batch %q: %v", e.BatchKey, e.Err)
}

func (e *ClassifyError) Unwrap() error { return e.Err }

// StorageError wraps errors from a storage backend.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
