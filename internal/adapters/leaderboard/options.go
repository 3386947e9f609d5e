package leaderboard

import "github.com/tuyosu/pprating/pkg/logger"

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.log = l
		}
	}
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisLogger sets the logger of a RedisStore.
func WithRedisLogger(l logger.Logger) RedisOption {
	return func(s *RedisStore) {
		if l != nil {
			s.log = l
		}
	}
}
