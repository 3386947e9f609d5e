package leaderboard

import (
	"context"
	"sync"

	"github.com/tuyosu/pprating/pkg/logger"
)

type board struct {
	root *node
	byID map[int64]float64
}

// MemoryStore is an in-process Store backed by one treap per key. It is used
// when no Redis address is configured and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	boards map[string]*board
	log    logger.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		boards: make(map[string]*board),
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("leaderboard")
	return s
}

// Set implements Store.Set. Writing the same score twice is a no-op.
func (s *MemoryStore) Set(ctx context.Context, key string, userID int64, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[key]
	if !ok {
		b = &board{byID: make(map[int64]float64)}
		s.boards[key] = b
		s.log.Debug(ctx, "board created", logger.String("key", key))
	}
	if old, ok := b.byID[userID]; ok {
		if old == score {
			return nil
		}
		b.root = remove(b.root, userID, old)
	}
	b.byID[userID] = score
	b.root = insert(b.root, userID, score)
	return nil
}

// Rank implements Store.Rank in O(log n).
func (s *MemoryStore) Rank(_ context.Context, key string, userID int64) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[key]
	if !ok {
		return Entry{}, false, nil
	}
	score, ok := b.byID[userID]
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{Rank: position(b.root, userID, score) + 1, UserID: userID, Score: score}, true, nil
}

// Top implements Store.Top.
func (s *MemoryStore) Top(_ context.Context, key string, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[key]
	if !ok {
		return []Entry{}, nil
	}
	out := make([]Entry, 0, min(n, len(b.byID)))
	collect(b.root, n, &out)
	return out, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.boards[key]; ok {
		return len(b.byID), nil
	}
	return 0, nil
}
