package recalc

import (
	"time"

	"github.com/tuyosu/pprating/pkg/logger"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithLeaderboardPrefix sets the prefix of leaderboard keys, e.g. "bancho:".
func WithLeaderboardPrefix(prefix string) Option {
	return func(o *Orchestrator) {
		o.lbPrefix = prefix
	}
}

// WithClock overrides the time source of run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithChunkSize sets the default chunk size for runs that do not set one.
func WithChunkSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}
