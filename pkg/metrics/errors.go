package metrics

import "errors"

// Sentinel kinds for metrics errors.
var (
	ErrNoPushgateway = errors.New("pushgateway url not configured")
	ErrPushFailed    = errors.New("metrics push failed")
)
