package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

// RedisStore keeps boards as Redis sorted sets with the user id as member.
// Equal scores are ordered by Redis, i.e. by member in reverse lexical order.
type RedisStore struct {
	client redis.UniversalClient
	log    logger.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("leaderboard")
	return s
}

// Set implements Store.Set with ZADD, which overwrites the member's score.
func (s *RedisStore) Set(ctx context.Context, key string, userID int64, score float64) error {
	err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member(userID)}).Err()
	if err != nil {
		metrics.RecordErrorByComponent("leaderboard", "zadd")
		return fmt.Errorf("%w: zadd %s: %w", ErrStore, key, err)
	}
	return nil
}

// Rank implements Store.Rank with ZREVRANK and ZSCORE.
func (s *RedisStore) Rank(ctx context.Context, key string, userID int64) (Entry, bool, error) {
	m := member(userID)
	rank, err := s.client.ZRevRank(ctx, key, m).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		metrics.RecordErrorByComponent("leaderboard", "zrevrank")
		return Entry{}, false, fmt.Errorf("%w: zrevrank %s: %w", ErrStore, key, err)
	}
	score, err := s.client.ZScore(ctx, key, m).Result()
	if errors.Is(err, redis.Nil) {
		// removed between the two calls
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: zscore %s: %w", ErrStore, key, err)
	}
	return Entry{Rank: int(rank) + 1, UserID: userID, Score: score}, true, nil
}

// Top implements Store.Top with ZREVRANGE.
func (s *RedisStore) Top(ctx context.Context, key string, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: zrevrange %s: %w", ErrStore, key, err)
	}
	out := make([]Entry, 0, len(zs))
	for i, z := range zs {
		raw, _ := z.Member.(string)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.log.Warn(ctx, "skipping non-numeric member", logger.String("key", key), logger.String("member", raw))
			continue
		}
		out = append(out, Entry{Rank: i + 1, UserID: id, Score: z.Score})
	}
	return out, nil
}

// Count implements Store.Count with ZCARD.
func (s *RedisStore) Count(ctx context.Context, key string) (int, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: zcard %s: %w", ErrStore, key, err)
	}
	return int(n), nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStore, err)
	}
	return nil
}

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
