package worker

import (
	"github.com/tuyosu/pprating/pkg/logger"
)

// Option applies a configuration option to a Worker or Pool.
type Option func(*settings)

type settings struct {
	name   string
	logger logger.Logger
}

// WithName sets the worker name for identification, logging and metrics.
// Pool workers are suffixed with their index.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
