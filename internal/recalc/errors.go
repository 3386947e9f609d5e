package recalc

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrLoad marks a failure to load the id lists a phase iterates. It aborts
	// the run.
	ErrLoad = errors.New("recalc load failed")
	// ErrUnknownUser marks a user id with scores but no users row.
	ErrUnknownUser = errors.New("unknown user")
	// ErrPanic marks a score or user whose recalculation panicked. It counts
	// as an item failure like any other.
	ErrPanic = errors.New("recalculation panicked")
)
