package nerf

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tuyosu/pprating/internal/domain/mods"
)

func TestResolve(t *testing.T) {
	Convey("Given the default policy", t, func() {
		r := NewResolver(DefaultPolicy())

		Convey("Speed-up patterns match title or artist case-insensitively", func() {
			So(r.Resolve("Some Song (Sped Up Ver.)", "Band", "nobody", 1, 0), ShouldEqual, 0.85)
			So(r.Resolve("Song", "SPEED-UP Collective", "nobody", 1, 0), ShouldEqual, 0.85)
			So(r.Resolve("over speed-up pack #3", "x", "nobody", 1, 0), ShouldEqual, 0.85)
		})

		Convey("Patterns win over a mapper entry", func() {
			So(r.Resolve("speed up map pack", "x", "Learner_", 1, mods.Relax), ShouldEqual, 0.85)
		})

		Convey("Mapper base multiplier applies without relax", func() {
			So(r.Resolve("Song", "Band", "hool", 1, mods.Hidden), ShouldEqual, 0.75)
			So(r.Resolve("Song", "Band", "Learner_", 1, 0), ShouldEqual, 0.40)
		})

		Convey("Mapper multiplier compounds under relax", func() {
			So(r.Resolve("Song", "Band", "hool", 1, mods.Relax), ShouldEqual, 0.6375)
			So(r.Resolve("Song", "Band", "hool", 1, mods.Relax|mods.DoubleTime), ShouldEqual, 0.75*0.85)
		})

		Convey("Mapper match is exact and case-sensitive", func() {
			So(r.Resolve("Song", "Band", "HOOL", 1, 0), ShouldEqual, 1.0)
			So(r.Resolve("Song", "Band", "hool2", 1, 0), ShouldEqual, 1.0)
		})

		Convey("Relax alone does not nerf an unlisted map", func() {
			So(r.Resolve("Song", "Band", "someone", 1, mods.Relax), ShouldEqual, 1.0)
		})

		Convey("Results are deterministic across resolvers", func() {
			other := NewResolver(DefaultPolicy())
			So(other.Resolve("Song", "Band", "kselon", 5, mods.Relax), ShouldEqual, r.Resolve("Song", "Band", "kselon", 5, mods.Relax))
		})
	})

	Convey("Given a policy with mapset ids and overrides", t, func() {
		p := DefaultPolicy().WithMapsetIDs(1234).WithMappers(map[string]float64{"hool": 0.5, "fresh": 0.9})
		r := NewResolver(p)

		Convey("Mapset ids match before mappers", func() {
			So(r.Resolve("Song", "Band", "hool", 1234, mods.Relax), ShouldEqual, 0.85)
		})

		Convey("Overrides replace and extend the mapper table", func() {
			So(r.Resolve("Song", "Band", "hool", 1, 0), ShouldEqual, 0.5)
			So(r.Resolve("Song", "Band", "fresh", 1, 0), ShouldEqual, 0.9)
			So(r.Resolve("Song", "Band", "juliet", 1, 0), ShouldEqual, 0.95)
		})

		Convey("The default policy is left untouched", func() {
			So(DefaultPolicy().Mappers["hool"], ShouldEqual, 0.75)
			So(len(DefaultPolicy().MapsetIDs), ShouldEqual, 0)
		})
	})

	Convey("Given a zero policy", t, func() {
		r := NewResolver(Policy{Mappers: map[string]float64{"m": 0.5}})
		So(r.Resolve("Song", "Band", "m", 1, mods.Relax), ShouldEqual, 0.5*RelaxCompounding)
		So(r.Resolve("Song", "Band", "x", 1, 0), ShouldEqual, 1.0)
	})
}
