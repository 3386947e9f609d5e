package model

import (
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tuyosu/pprating/internal/domain/mods"
)

func TestPlayStatisticsValidate(t *testing.T) {
	Convey("Given play statistics", t, func() {
		acc := 98.5

		Convey("Accuracy alone is valid", func() {
			p := PlayStatistics{Accuracy: &acc}
			So(p.Validate(), ShouldBeNil)
		})

		Convey("Hit counts alone are valid", func() {
			p := PlayStatistics{Hits: &HitCounts{N300: 10}}
			So(p.Validate(), ShouldBeNil)
		})

		Convey("Both together are rejected for every hit field", func() {
			for _, h := range []HitCounts{{N300: 1}, {N100: 1}, {N50: 1}, {NGeki: 1}, {NKatu: 1}} {
				hits := h
				p := PlayStatistics{Accuracy: &acc, Hits: &hits}
				So(p.Validate(), ShouldEqual, ErrAccuracyAndHits)
			}
		})

		Convey("All-zero hit counts do not conflict with accuracy", func() {
			p := PlayStatistics{Accuracy: &acc, Hits: &HitCounts{}}
			So(p.Validate(), ShouldBeNil)
		})
	})
}

func TestAccuracy(t *testing.T) {
	Convey("Given hit counts", t, func() {
		Convey("A full combo of 300s is 100% in osu", func() {
			So(Accuracy(0, HitCounts{N300: 500}, 0), ShouldEqual, 100)
		})

		Convey("Mixed judgements in osu", func() {
			// (300*98 + 100*1 + 50*0) / (300*100) with one miss
			got := Accuracy(0, HitCounts{N300: 98, N100: 1}, 1)
			So(math.Abs(got-98.3333333), ShouldBeLessThan, 1e-6)
		})

		Convey("Taiko counts 100s as half", func() {
			So(Accuracy(1, HitCounts{N300: 1, N100: 1}, 0), ShouldEqual, 75)
		})

		Convey("No objects yields zero", func() {
			So(Accuracy(0, HitCounts{}, 0), ShouldEqual, 0)
		})
	})
}

func TestScoreConversions(t *testing.T) {
	Convey("Given a stored score with its map", t, func() {
		s := ScoreWithMap{
			Score: Score{ID: 1, Mode: mods.RelaxOsu, Mods: mods.Relax, MaxCombo: 700, N300: 400, N100: 3, NMiss: 2},
			Map:   Beatmap{Title: "Song", Artist: "Band", Creator: "hool", SetID: 9},
		}

		Convey("Statistics carries hits and combo but no accuracy", func() {
			st := s.Statistics()
			So(st.Accuracy, ShouldBeNil)
			So(*st.Combo, ShouldEqual, 700)
			So(st.Hits.N300, ShouldEqual, 400)
			So(st.NMiss, ShouldEqual, 2)
			So(st.Validate(), ShouldBeNil)
		})

		Convey("MapLabel renders artist, title and creator", func() {
			So(s.MapLabel(), ShouldEqual, "Band - Song [hool]")
			So((&ScoreWithMap{}).MapLabel(), ShouldEqual, "Unknown - Unknown [Unknown]")
		})

		Convey("Meta is complete", func() {
			meta := s.Map.Meta()
			So(meta.Complete(), ShouldBeTrue)
			var none *MapMeta
			So(none.Complete(), ShouldBeFalse)
		})
	})
}

func TestUserVisible(t *testing.T) {
	Convey("Only unrestricted users are visible", t, func() {
		So((&User{Priv: 1 | 8}).Visible(), ShouldBeTrue)
		So((&User{Priv: 8}).Visible(), ShouldBeFalse)
	})
}

func TestAPIKeyExpired(t *testing.T) {
	Convey("Given API keys with and without an expiry", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		past, future := now.Add(-time.Hour), now.Add(time.Hour)

		So((&APIKey{}).Expired(now), ShouldBeFalse)
		So((&APIKey{ExpiresAt: &future}).Expired(now), ShouldBeFalse)
		So((&APIKey{ExpiresAt: &past}).Expired(now), ShouldBeTrue)
	})
}
