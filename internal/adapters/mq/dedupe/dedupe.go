// Package dedupe tracks keys that already have work in flight so producers
// can skip enqueueing duplicates.
package dedupe

import (
	"container/list"
	"sync"
)

// Set is a bounded set of keys. When full, the oldest key is evicted, which
// at worst lets one duplicate through.
type Set[K comparable] struct {
	mu      sync.Mutex
	items   map[K]*list.Element
	order   *list.List // front is oldest
	maxSize int
}

// New creates a Set. A non-positive max size makes it unbounded.
func New[K comparable](opts ...Option) *Set[K] {
	st := settings{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&st)
	}
	return &Set[K]{
		items:   make(map[K]*list.Element),
		order:   list.New(),
		maxSize: st.maxSize,
	}
}

// SeenAndRecord reports whether key is already present and records it if
// not, atomically.
func (s *Set[K]) SeenAndRecord(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; ok {
		return true
	}
	if s.maxSize > 0 && len(s.items) >= s.maxSize {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(K))
	}
	s.items[key] = s.order.PushBack(key)
	return false
}

// Unrecord forgets key so the next SeenAndRecord returns false.
func (s *Set[K]) Unrecord(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.order.Remove(el)
		delete(s.items, key)
	}
}

// Len returns the number of recorded keys.
func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
