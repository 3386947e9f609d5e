// Package worker drains a queue with a fixed set of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Handler processes one item. A returned error is logged and counted; it never
// stops the worker.
type Handler[T any] func(ctx context.Context, item T) error

// Source is the receiving half of a queue.
type Source[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Worker processes items from a Source until it is drained, shut down, or its
// context ends.
type Worker[T any] struct {
	source  Source[T]
	handler Handler[T]
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker[T any](source Source[T], handler Handler[T], opts ...Option) *Worker[T] {
	s := settings{name: "worker", logger: logger.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Worker[T]{
		source:   source,
		handler:  handler,
		name:     s.name,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   s.logger.Named(s.name),
	}
}

// Run starts the worker loop. It returns when the source closes, Shutdown is
// called, or ctx is done.
func (w *Worker[T]) Run(ctx context.Context) {
	defer close(w.done)

	items := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case item, ok := <-items:
			if !ok {
				return
			}
			w.process(ctx, item)
		}
	}
}

// Shutdown stops the worker and waits for the item in flight.
func (w *Worker[T]) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *Worker[T]) Done() <-chan struct{} {
	return w.done
}

func (w *Worker[T]) process(ctx context.Context, item T) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerError(w.name)
			w.logger.Error(ctx, "handler panicked", logger.Any("panic", r))
		}
	}()

	if err := w.handler(ctx, item); err != nil {
		metrics.RecordWorkerError(w.name)
		w.logger.Error(ctx, "error processing item", logger.Error(err))
		return
	}
	metrics.RecordWorkerProcessed(w.name)
}

// Pool manages several workers sharing one source.
type Pool[T any] struct {
	workers []*Worker[T]
	source  Source[T]
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one selects
// runtime.NumCPU().
func NewPool[T any](workerCount int, source Source[T], handler Handler[T], opts ...Option) *Pool[T] {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	s := settings{name: "worker", logger: logger.Nop()}
	for _, opt := range opts {
		opt(&s)
	}

	p := &Pool[T]{
		workers: make([]*Worker[T], workerCount),
		source:  source,
		logger:  s.logger.Named(s.name + "-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(source, handler,
			WithName(s.name+"-"+strconv.Itoa(i)),
			WithLogger(s.logger),
		)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool[T]) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool[T]) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the source if it can be closed, lets the workers drain what
// is left, and waits for them up to ctx or an internal timeout.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
