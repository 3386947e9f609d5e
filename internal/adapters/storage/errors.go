package storage

import "errors"

// Sentinel error kinds for this package.
var (
	ErrStorage            = errors.New("storage failure")
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
)
