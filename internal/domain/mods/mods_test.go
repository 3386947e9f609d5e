package mods

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMods(t *testing.T) {
	Convey("Given mod flags", t, func() {
		Convey("Nightcore normalizes to include double time", func() {
			m := (Nightcore | Hidden).Normalize()
			So(m.Has(DoubleTime), ShouldBeTrue)
			So(m.Has(Nightcore), ShouldBeTrue)
			So(Hidden.Normalize(), ShouldEqual, Hidden)
		})

		Convey("Relax is detected from bit 128", func() {
			So(Mods(128).IsRelax(), ShouldBeTrue)
			So(Mods(64).IsRelax(), ShouldBeFalse)
		})

		Convey("String renders acronyms", func() {
			So(Mods(0).String(), ShouldEqual, "NM")
			So((Hidden | DoubleTime | Relax).String(), ShouldEqual, "HDDTRX")
			So((Nightcore | DoubleTime).String(), ShouldEqual, "NC")
			So((Perfect | SuddenDeath).String(), ShouldEqual, "PF")
		})
	})
}

func TestModes(t *testing.T) {
	Convey("Given game modes", t, func() {
		So(len(AllModes), ShouldEqual, 8)
		So(Mode(7).Valid(), ShouldBeFalse)
		So(AutopilotOsu.Valid(), ShouldBeTrue)
		So(RelaxOsu.Ruleset(), ShouldEqual, 0)
		So(RelaxCatch.Ruleset(), ShouldEqual, 2)
		So(VanillaMania.Ruleset(), ShouldEqual, 3)
		So(AutopilotOsu.String(), ShouldEqual, "ap!std")
	})
}
