package types

import "fmt"

// CategoryState is the per-category crawl lifecycle state.
type CategoryState int

const (
	StatePending CategoryState = iota
	StateInProgress
	StateSucceeded
	StateEmpty
	StateFailed
)

func (s CategoryState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateEmpty:
		return "EMPTY"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// CategoryProgress tracks one category through the crawl state machine.
// Transitions are the only way to mutate it; a category gets at most one
// retry attempt after its first pass ends in EMPTY or FAILED.
type CategoryProgress struct {
	Tag      CategoryTag
	state    CategoryState
	count    int
	attempts int
	lastErr  error
}

// NewCategoryProgress returns a progress record in PENDING.
func NewCategoryProgress(tag CategoryTag) *CategoryProgress {
	return &CategoryProgress{Tag: tag, state: StatePending}
}

// State returns the current state.
func (p *CategoryProgress) State() CategoryState { return p.state }

// Count returns the number of stores collected, meaningful in SUCCEEDED.
func (p *CategoryProgress) Count() int { return p.count }

// Attempts returns how many passes have started for this category.
func (p *CategoryProgress) Attempts() int { return p.attempts }

// Err returns the failure recorded by the most recent Fail, if any.
func (p *CategoryProgress) Err() error { return p.lastErr }

// Retryable reports whether the category qualifies for the single retry
// pass: it finished its first pass in EMPTY or FAILED.
func (p *CategoryProgress) Retryable() bool {
	return p.attempts == 1 && (p.state == StateEmpty || p.state == StateFailed)
}

// Start transitions into IN_PROGRESS. Allowed from PENDING, or from
// EMPTY/FAILED exactly once more for the retry pass.
func (p *CategoryProgress) Start() error {
	switch {
	case p.state == StatePending:
	case p.Retryable():
	default:
		return fmt.Errorf("category %q: cannot start from %s (attempt %d)", p.Tag.Label, p.state, p.attempts)
	}
	p.state = StateInProgress
	p.attempts++
	return nil
}

// Finish records the collection outcome: SUCCEEDED with a count, or EMPTY
// when the listing stabilized but yielded nothing.
func (p *CategoryProgress) Finish(count int) error {
	if p.state != StateInProgress {
		return fmt.Errorf("category %q: finish from %s", p.Tag.Label, p.state)
	}
	if count > 0 {
		p.state = StateSucceeded
		p.count = count
	} else {
		p.state = StateEmpty
	}
	return nil
}

// Fail records a category-scoped failure.
func (p *CategoryProgress) Fail(err error) error {
	if p.state != StateInProgress {
		return fmt.Errorf("category %q: fail from %s", p.Tag.Label, p.state)
	}
	p.state = StateFailed
	p.lastErr = err
	return nil
}

// Outcome snapshots the progress for the per-run report.
func (p *CategoryProgress) Outcome() CategoryOutcome {
	o := CategoryOutcome{
		Label:      p.Tag.Label,
		State:      p.state.String(),
		StoreCount: p.count,
		Retried:    p.attempts > 1,
	}
	if p.lastErr != nil {
		o.Error = p.lastErr.Error()
	}
	return o
}

// CategoryOutcome is one line of the per-run category report.
type CategoryOutcome struct {
	Label      string `json:"label"`
	State      string `json:"state"`
	StoreCount int    `json:"store_count,omitempty"`
	Retried    bool   `json:"retried,omitempty"`
	Error      string `json:"error,omitempty"`
}
