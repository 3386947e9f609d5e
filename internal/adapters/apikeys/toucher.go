package apikeys

import (
	"context"
	"time"

	"github.com/tuyosu/pprating/internal/adapters/mq/dedupe"
	"github.com/tuyosu/pprating/internal/adapters/mq/queue"
	"github.com/tuyosu/pprating/internal/adapters/mq/worker"
	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

const (
	touchQueueName = "apikey_touch"
	touchTimeout   = 5 * time.Second
)

// TouchStore persists last-used timestamps.
type TouchStore interface {
	TouchAPIKey(ctx context.Context, hash string, at time.Time) error
}

// AsyncToucher updates last-used through a bounded queue drained by a small
// worker pool. Touch never blocks; a full queue drops the update. A key
// already waiting in the queue is not enqueued again.
type AsyncToucher struct {
	store   TouchStore
	q       *queue.InMemoryQueue[string]
	pending *dedupe.Set[string]
	pool    *worker.Pool[string]
	now     func() time.Time
	log     logger.Logger
}

// NewAsyncToucher creates a toucher holding at most capacity pending updates.
func NewAsyncToucher(store TouchStore, capacity, workers int, log logger.Logger) *AsyncToucher {
	if log == nil {
		log = logger.Nop()
	}
	t := &AsyncToucher{
		store:   store,
		q:       queue.NewInMemoryQueue[string](queue.WithCapacity(capacity), queue.WithName(touchQueueName)),
		pending: dedupe.New[string](dedupe.WithMaxSize(capacity)),
		now:     time.Now,
		log:     log.Named("apikey-touch"),
	}
	t.pool = worker.NewPool(workers, t.q, t.handle, worker.WithName("apikey-touch"), worker.WithLogger(log))
	return t
}

// Start launches the workers. They stop when ctx ends or on Shutdown.
func (t *AsyncToucher) Start(ctx context.Context) {
	t.pool.Start(ctx)
}

// Touch schedules a last-used update for hash.
func (t *AsyncToucher) Touch(ctx context.Context, hash string) {
	if t.pending.SeenAndRecord(hash) {
		metrics.RecordAPIKeyTouch("coalesced")
		return
	}
	// The request context may end before the update runs; enqueueing only
	// needs it to be live now.
	if !t.q.Enqueue(context.WithoutCancel(ctx), hash) {
		t.pending.Unrecord(hash)
		metrics.RecordAPIKeyTouch("dropped")
		t.log.Debug(ctx, "api key touch dropped")
	}
}

// Shutdown drains pending updates.
func (t *AsyncToucher) Shutdown(ctx context.Context) error {
	return t.pool.Shutdown(ctx)
}

func (t *AsyncToucher) handle(ctx context.Context, hash string) error {
	// Uses after this point need their own update.
	t.pending.Unrecord(hash)
	ctx, cancel := context.WithTimeout(ctx, touchTimeout)
	defer cancel()
	if err := t.store.TouchAPIKey(ctx, hash, t.now()); err != nil {
		metrics.RecordAPIKeyTouch("failed")
		return err
	}
	metrics.RecordAPIKeyTouch("ok")
	return nil
}

// Pending returns the number of queued updates.
func (t *AsyncToucher) Pending() int {
	return t.q.Len()
}
