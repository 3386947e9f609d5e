// Package engine is the boundary to the native difficulty/performance engine.
// The engine is treated as a pure function: beatmap bytes plus play
// statistics in, raw component ratings and difficulty attributes out.
package engine

import (
	"context"

	"github.com/tuyosu/pprating/internal/domain/mods"
)

// Engine computes raw performance attributes.
type Engine interface {
	// Parse validates beatmap bytes and returns a reusable handle.
	Parse(ctx context.Context, data []byte) (*Beatmap, error)
	// Calculate returns the raw decomposition for one play on bm.
	Calculate(ctx context.Context, bm *Beatmap, p Params) (Attributes, error)
}

// Beatmap is a parsed beatmap. It is immutable once returned by Parse and may
// be shared across goroutines.
type Beatmap struct {
	Data []byte

	FormatVersion     int
	Mode              int
	CircleSize        float64
	ApproachRate      float64
	OverallDifficulty float64
	HPDrainRate       float64
}

// Params are the play statistics handed to the engine. Nil fields are
// absent and are encoded as -1 on the wire.
type Params struct {
	Mode     int
	Mods     mods.Mods
	Combo    *int
	Accuracy *float64
	N300     *int
	N100     *int
	N50      *int
	NGeki    *int
	NKatu    *int
	NMiss    *int
}

// Difficulty is the difficulty snapshot reported with every calculation.
type Difficulty struct {
	Stars          float64 `json:"stars"`
	Aim            float64 `json:"aim"`
	Speed          float64 `json:"speed"`
	Flashlight     float64 `json:"flashlight"`
	SliderFactor   float64 `json:"slider_factor"`
	SpeedNoteCount float64 `json:"speed_note_count"`
	Stamina        float64 `json:"stamina"`
	Rhythm         float64 `json:"rhythm"`
	Color          float64 `json:"color"`
	Peak           float64 `json:"peak"`
}

// Attributes is the raw engine output before any server policy.
type Attributes struct {
	Total              float64    `json:"pp"`
	Aim                float64    `json:"pp_aim"`
	Speed              float64    `json:"pp_speed"`
	Flashlight         float64    `json:"pp_flashlight"`
	EffectiveMissCount float64    `json:"effective_miss_count"`
	Difficulty         Difficulty `json:"difficulty"`
}
