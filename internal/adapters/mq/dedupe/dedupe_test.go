package dedupe_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tuyosu/pprating/internal/adapters/mq/dedupe"
)

func TestSet(t *testing.T) {
	Convey("Given a new set", t, func() {
		s := dedupe.New[string]()

		Convey("Then it starts empty", func() {
			So(s.Len(), ShouldEqual, 0)
		})

		Convey("When a key is recorded", func() {
			seen := s.SeenAndRecord("a")

			Convey("Then it was not seen before", func() {
				So(seen, ShouldBeFalse)
				So(s.Len(), ShouldEqual, 1)
			})

			Convey("Then recording it again reports a duplicate", func() {
				So(s.SeenAndRecord("a"), ShouldBeTrue)
				So(s.Len(), ShouldEqual, 1)
			})

			Convey("Then unrecording allows it again", func() {
				s.Unrecord("a")
				So(s.Len(), ShouldEqual, 0)
				So(s.SeenAndRecord("a"), ShouldBeFalse)
			})
		})

		Convey("Unrecording an unknown key is a no-op", func() {
			s.Unrecord("missing")
			So(s.Len(), ShouldEqual, 0)
		})
	})
}

func TestSetBounds(t *testing.T) {
	Convey("Given a set bounded to three keys", t, func() {
		s := dedupe.New[int](dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			s.SeenAndRecord(i)
		}

		Convey("When a fourth key arrives the oldest is evicted", func() {
			So(s.SeenAndRecord(4), ShouldBeFalse)
			So(s.Len(), ShouldEqual, 3)
			So(s.SeenAndRecord(1), ShouldBeFalse)
			So(s.SeenAndRecord(4), ShouldBeTrue)
		})

		Convey("Unrecording frees a slot without evicting", func() {
			s.Unrecord(2)
			s.SeenAndRecord(5)
			So(s.SeenAndRecord(1), ShouldBeTrue)
			So(s.SeenAndRecord(3), ShouldBeTrue)
		})
	})

	Convey("Given an unbounded set", t, func() {
		s := dedupe.New[int](dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			s.SeenAndRecord(i)
		}
		So(s.Len(), ShouldEqual, 1000)
	})
}

func TestSetConcurrency(t *testing.T) {
	Convey("Given many goroutines racing on the same keys", t, func() {
		s := dedupe.New[string]()
		var fresh atomic.Int64
		var wg sync.WaitGroup
		for g := 0; g < 16; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !s.SeenAndRecord(fmt.Sprintf("key-%d", i)) {
						fresh.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key is recorded exactly once", func() {
			So(fresh.Load(), ShouldEqual, 100)
			So(s.Len(), ShouldEqual, 100)
		})
	})
}
