package rating

import "errors"

// ErrInvalidInput is returned for statistics the pipeline refuses to rate.
var ErrInvalidInput = errors.New("invalid rating input")
