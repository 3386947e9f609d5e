// Package queue is a bounded in-memory queue feeding background workers.
//
// Enqueue never blocks: a full or closed queue refuses the item and the caller
// decides whether that matters.
package queue

import (
	"context"
	"sync"

	"github.com/tuyosu/pprating/pkg/metrics"
)

const defaultCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds an item. It returns false if the queue is full or closed.
	Enqueue(ctx context.Context, item T) bool

	// Dequeue returns a channel that receives items as they become available.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan T

	// Len returns the number of waiting items.
	Len() int

	// Close stops accepting items. Waiting items are still delivered.
	Close() error

	// IsClosed reports whether Close has been called.
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue[T any] struct {
	items    chan T
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

var _ Queue[int] = (*InMemoryQueue[int])(nil)

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	s := settings{capacity: defaultCapacity, name: "queue"}
	for _, opt := range opts {
		opt(&s)
	}
	q := &InMemoryQueue[T]{
		items:    make(chan T, s.capacity),
		capacity: s.capacity,
		name:     s.name,
	}
	metrics.UpdateQueueDepth(q.name, 0)
	return q
}

// Enqueue adds an item to the queue without blocking.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, item T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejection(q.name, "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueRejection(q.name, "context_cancelled")
		return false
	}

	select {
	case q.items <- item:
		metrics.UpdateQueueDepth(q.name, len(q.items))
		return true
	default:
		metrics.RecordQueueRejection(q.name, "full")
		return false
	}
}

// Dequeue returns a channel that receives items until the queue is closed and
// drained or ctx is done.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for item := range q.items {
			select {
			case out <- item:
				metrics.UpdateQueueDepth(q.name, len(q.items))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of waiting items.
func (q *InMemoryQueue[T]) Len() int {
	return len(q.items)
}

// Close stops accepting items.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
