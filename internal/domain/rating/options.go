package rating

import (
	"github.com/tuyosu/pprating/internal/domain/nerf"
	"github.com/tuyosu/pprating/pkg/logger"
)

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithResolver replaces the default nerf resolver.
func WithResolver(r *nerf.Resolver) Option {
	return func(c *Calculator) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithPlayerMultipliers sets per-player final multipliers.
func WithPlayerMultipliers(m map[int64]float64) Option {
	return func(c *Calculator) {
		c.players = make(map[int64]float64, len(m))
		for id, v := range m {
			c.players[id] = v
		}
	}
}
