package engine

import (
	"time"

	"github.com/tuyosu/pprating/pkg/logger"
)

// Option configures a ProcessEngine.
type Option func(*ProcessEngine)

// WithArgs sets extra arguments passed to the engine executable.
func WithArgs(args ...string) Option {
	return func(e *ProcessEngine) { e.args = append([]string(nil), args...) }
}

// WithTimeout bounds a single engine invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *ProcessEngine) { e.timeout = d }
}

// WithEnv appends KEY=VALUE pairs to the child environment.
func WithEnv(env ...string) Option {
	return func(e *ProcessEngine) { e.env = append(e.env, env...) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *ProcessEngine) {
		if l != nil {
			e.log = l
		}
	}
}
