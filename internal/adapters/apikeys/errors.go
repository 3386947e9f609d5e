package apikeys

import "errors"

// Sentinel error kinds for this package. Each rejects the request with 401.
var (
	ErrInvalidKey  = errors.New("invalid api key")
	ErrRevoked     = errors.New("api key revoked")
	ErrExpired     = errors.New("api key expired")
	ErrUnknownUser = errors.New("api key user not found")
)

// ErrInvalidExpiry rejects a negative expires_in_days.
var ErrInvalidExpiry = errors.New("expires_in_days must not be negative")
