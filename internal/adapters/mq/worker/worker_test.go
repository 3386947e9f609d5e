package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tuyosu/pprating/internal/adapters/mq/queue"
	"github.com/tuyosu/pprating/internal/adapters/mq/worker"
	"github.com/tuyosu/pprating/pkg/logger"
)

type recorder struct {
	mu    sync.Mutex
	items []string
}

func (r *recorder) handle(_ context.Context, item string) error {
	if item == "bad" {
		return errors.New("bad item")
	}
	if item == "panic" {
		panic("boom")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker draining a queue", t, func() {
		q := queue.NewInMemoryQueue[string](queue.WithCapacity(8))
		rec := &recorder{}
		w := worker.NewWorker[string](q, rec.handle, worker.WithName("test"), worker.WithLogger(logger.Nop()))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.Convey("Items are handled in order and failures do not stop it", func() {
			for _, item := range []string{"a", "bad", "panic", "b"} {
				convey.So(q.Enqueue(ctx, item), convey.ShouldBeTrue)
			}
			convey.So(q.Close(), convey.ShouldBeNil)

			w.Run(ctx)
			convey.So(rec.snapshot(), convey.ShouldResemble, []string{"a", "b"})
		})

		convey.Convey("Shutdown stops an idle worker", func() {
			go w.Run(ctx)
			shutdownCtx, stop := context.WithTimeout(ctx, time.Second)
			defer stop()
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})

		convey.Convey("Shutdown reports a handler that does not return", func() {
			block := make(chan struct{})
			defer close(block)
			stuck := worker.NewWorker[string](q, func(context.Context, string) error {
				<-block
				return nil
			}, worker.WithLogger(logger.Nop()))
			convey.So(q.Enqueue(ctx, "slow"), convey.ShouldBeTrue)
			go stuck.Run(ctx)
			time.Sleep(20 * time.Millisecond)

			shutdownCtx, stop := context.WithTimeout(ctx, 20*time.Millisecond)
			defer stop()
			convey.So(errors.Is(stuck.Shutdown(shutdownCtx), context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}

func TestDefaultLogger(t *testing.T) {
	convey.Convey("Workers and pools built without a logger option still run", t, func() {
		q := queue.NewInMemoryQueue[string](queue.WithCapacity(4))
		rec := &recorder{}
		convey.So(func() { worker.NewWorker[string](q, rec.handle) }, convey.ShouldNotPanic)

		p := worker.NewPool[string](2, q, rec.handle)
		ctx := context.Background()
		p.Start(ctx)
		convey.So(q.Enqueue(ctx, "a"), convey.ShouldBeTrue)
		convey.So(p.Shutdown(ctx), convey.ShouldBeNil)
		convey.So(rec.snapshot(), convey.ShouldResemble, []string{"a"})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue[int](queue.WithCapacity(256))
		var sum atomic.Int64
		p := worker.NewPool[int](4, q, func(_ context.Context, n int) error {
			sum.Add(int64(n))
			return nil
		}, worker.WithName("sum"), worker.WithLogger(logger.Nop()))
		convey.So(p.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)

		convey.Convey("Shutdown drains every accepted item", func() {
			for i := 1; i <= 100; i++ {
				convey.So(q.Enqueue(ctx, i), convey.ShouldBeTrue)
			}
			convey.So(p.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(sum.Load(), convey.ShouldEqual, 5050)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})

	convey.Convey("A non-positive worker count uses the CPU count", t, func() {
		q := queue.NewInMemoryQueue[int]()
		p := worker.NewPool[int](0, q, func(context.Context, int) error { return nil })
		convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
