// Package model contains the typed records passed between storage, the rating
// pipeline and transport. Rows are converted into these types once, at the
// storage boundary.
package model

import (
	"fmt"
	"time"

	"github.com/tuyosu/pprating/internal/domain/mods"
)

// ScoreStatus mirrors scores.status.
type ScoreStatus int

// Score statuses.
const (
	ScoreFailed    ScoreStatus = 0
	ScoreSubmitted ScoreStatus = 1
	ScoreBest      ScoreStatus = 2
)

// Score is a persisted play. Only PP changes during recalculation.
type Score struct {
	ID       int64
	UserID   int64
	MapMD5   string
	Mode     mods.Mode
	Mods     mods.Mods
	PP       float64
	Acc      float64
	MaxCombo int
	N300     int
	N100     int
	N50      int
	NGeki    int
	NKatu    int
	NMiss    int
	Status   ScoreStatus
	PlayTime time.Time
}

// Statistics returns the play statistics carried by the score. Stored scores
// always carry hit counts, so accuracy is left unset.
func (s *Score) Statistics() PlayStatistics {
	combo := s.MaxCombo
	return PlayStatistics{
		Mode:  s.Mode,
		Mods:  s.Mods,
		Combo: &combo,
		Hits: &HitCounts{
			N300:  s.N300,
			N100:  s.N100,
			N50:   s.N50,
			NGeki: s.NGeki,
			NKatu: s.NKatu,
		},
		NMiss: s.NMiss,
	}
}

// ScoreWithMap is a score joined with the metadata of its beatmap.
type ScoreWithMap struct {
	Score
	Map Beatmap
}

// MapLabel renders "artist - title [creator]" for logs.
func (s *ScoreWithMap) MapLabel() string {
	return fmt.Sprintf("%s - %s [%s]", orUnknown(s.Map.Artist), orUnknown(s.Map.Title), orUnknown(s.Map.Creator))
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
