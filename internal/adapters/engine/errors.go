package engine

import (
	"errors"
	"fmt"
)

// Sentinel kinds wrapped by DifficultyEngineError.
var (
	ErrMalformedBeatmap = errors.New("malformed beatmap")
	ErrEngineFailed     = errors.New("difficulty engine failed")
	ErrBadResponse      = errors.New("malformed engine response")
)

// DifficultyEngineError reports a failure of the external engine for a single
// calculation. Callers treat it as an item-level failure.
type DifficultyEngineError struct {
	Op  string
	Err error
}

func (e *DifficultyEngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *DifficultyEngineError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	return &DifficultyEngineError{Op: op, Err: err}
}

// IsEngineError reports whether err came from the engine boundary.
func IsEngineError(err error) bool {
	var e *DifficultyEngineError
	return errors.As(err, &e)
}
