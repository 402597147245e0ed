package prediction

import "errors"

// Error kinds shared across the store, engine, gate, and query layers.
// Wrapping preserves errors.Is across layer boundaries so callers can
// distinguish retryable store failures from terminal outcomes.
var (
	// ErrNotFound signals no live record exists for the requested match.
	// A normal outcome, not an exceptional condition.
	ErrNotFound = errors.New("prediction not found")

	// ErrDenied signals the record exists but the viewer tier lacks
	// access. Deliberately distinct from ErrNotFound so callers can
	// drive upgrade prompts without leaking record contents.
	ErrDenied = errors.New("prediction access denied")

	// ErrStoreUnavailable signals the underlying store failed or timed
	// out. Transient; safe for the caller to retry with backoff.
	ErrStoreUnavailable = errors.New("prediction store unavailable")
)
