package chunk

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSplit(t *testing.T) {
	Convey("Split keeps order and bounds chunk size", t, func() {
		items := make([]int, 250)
		for i := range items {
			items[i] = i
		}
		chunks := Split(items, 100)
		So(chunks, ShouldHaveLength, 3)
		So(chunks[0], ShouldHaveLength, 100)
		So(chunks[2], ShouldHaveLength, 50)
		So(chunks[1][0], ShouldEqual, 100)
		So(chunks[2][49], ShouldEqual, 249)

		Convey("Appending to a chunk never clobbers the next one", func() {
			_ = append(chunks[0], -1)
			So(chunks[1][0], ShouldEqual, 100)
		})
	})

	Convey("Edge sizes", t, func() {
		So(Split([]int{}, 10), ShouldBeEmpty)
		So(Split([]int{1, 2, 3}, 0), ShouldHaveLength, 1)
		So(Split([]int{1, 2, 3}, 1), ShouldHaveLength, 3)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a chunk of items", t, func() {
		items := []int{1, 2, 3, 4, 5}

		Convey("Every item runs before Run returns", func() {
			var sum atomic.Int64
			err := Run(context.Background(), items, func(_ context.Context, n int) error {
				time.Sleep(time.Duration(n) * time.Millisecond)
				sum.Add(int64(n))
				return nil
			})
			So(err, ShouldBeNil)
			So(sum.Load(), ShouldEqual, 15)
		})

		Convey("A failure does not stop its siblings", func() {
			boom := errors.New("boom")
			var done atomic.Int64
			err := Run(context.Background(), items, func(ctx context.Context, n int) error {
				if n == 1 {
					return boom
				}
				time.Sleep(5 * time.Millisecond)
				if ctx.Err() == nil {
					done.Add(1)
				}
				return nil
			})
			So(err, ShouldEqual, boom)
			So(done.Load(), ShouldEqual, 4)
		})

		Convey("A panicking item becomes an error and its siblings finish", func() {
			var done atomic.Int64
			err := Run(context.Background(), items, func(_ context.Context, n int) error {
				if n == 3 {
					var m map[int]int
					m[n] = n
				}
				done.Add(1)
				return nil
			})
			So(errors.Is(err, ErrPanic), ShouldBeTrue)
			So(done.Load(), ShouldEqual, 4)
		})

		Convey("Items run concurrently", func() {
			var inFlight, peak atomic.Int64
			release := make(chan struct{})
			go func() {
				time.Sleep(20 * time.Millisecond)
				close(release)
			}()
			_ = Run(context.Background(), items, func(context.Context, int) error {
				cur := inFlight.Add(1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				<-release
				inFlight.Add(-1)
				return nil
			})
			So(peak.Load(), ShouldEqual, 5)
		})
	})
}
