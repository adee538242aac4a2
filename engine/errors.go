package engine

import (
	"errors"
	"fmt"
)

// ErrPastDateImmutable is returned when a mutation targets a locked date.
// It is surfaced synchronously, never retried, and never reaches the network.
var ErrPastDateImmutable = errors.New("date is in the past and read-only")

// ErrInvalidRating is returned when a mood rating falls outside [0,5]. The
// engine owns this validation; an invalid rating never reaches the network.
var ErrInvalidRating = errors.New("mood ratings must be between 0 and 5")

// ErrClockNotReady is returned when an operation requires the authoritative
// date and the upstream provider has not produced one yet. Callers retry
// once the clock resolves.
var ErrClockNotReady = errors.New("authoritative date not resolved yet")

// ErrInvalidHabitName is returned when a habit name is empty or longer than
// 50 characters.
var ErrInvalidHabitName = errors.New("habit name must be 1-50 characters")

// ErrTooManyFavorites is returned when marking a habit favorite would exceed
// the limit of three favorites.
var ErrTooManyFavorites = errors.New("at most 3 habits may be favorites")

// WriteFailure wraps a write that failed after the retry budget was
// exhausted. The optimistic local change has already been rolled back by the
// time the caller sees it.
type WriteFailure struct {
	Op       string
	Attempts int
	Err      error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *WriteFailure) Unwrap() error {
	return e.Err
}

// AggregationFailure wraps a failed month fetch. The previously aggregated
// entries are retained, so the caller can keep showing stale-but-available
// data next to a banner-level error.
type AggregationFailure struct {
	Month string
	Err   error
}

func (e *AggregationFailure) Error() string {
	return fmt.Sprintf("failed to load month %s: %v", e.Month, e.Err)
}

func (e *AggregationFailure) Unwrap() error {
	return e.Err
}
