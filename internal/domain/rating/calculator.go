// Package rating turns a raw engine decomposition into the server's
// performance rating for a single play.
package rating

import (
	"context"
	"fmt"
	"math"

	"github.com/tuyosu/pprating/internal/adapters/engine"
	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/internal/domain/mods"
	"github.com/tuyosu/pprating/internal/domain/nerf"
	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

const (
	relaxMissScale = 1.05
	globalScale    = 1.25

	relaxCSThreshold = 6.0
	relaxCSNerf      = 0.75

	// CapStandard applies to vanilla and relax osu!standard.
	CapStandard = 55000.0
	// CapAutopilot applies to autopilot osu!standard.
	CapAutopilot = 20000.0
)

type componentScale struct {
	aim, speed, flashlight float64
}

var (
	relaxScale  = componentScale{aim: 1.35, speed: 1.10, flashlight: 0.75}
	normalScale = componentScale{aim: 1.10, speed: 1.20, flashlight: 0.70}
)

// Request is everything besides the beatmap that a rating depends on.
type Request struct {
	Stats model.PlayStatistics
	// Map enables the nerf policy when all of title, artist and creator are set.
	Map *model.MapMeta
	// Length is the drain length in seconds.
	Length *int
	// PlayerID selects a per-player multiplier.
	PlayerID *int64
	// ApplyCap clamps the result to the mode cap.
	ApplyCap bool
	// RecordedAccuracy is the stored accuracy of a play rated from hit counts.
	// It only selects the accuracy tier.
	RecordedAccuracy *float64
}

// Breakdown is a finished rating and the components that produced it.
type Breakdown struct {
	Total              float64           `json:"pp"`
	Aim                float64           `json:"pp_aim"`
	Speed              float64           `json:"pp_speed"`
	Accuracy           float64           `json:"pp_acc"`
	Flashlight         float64           `json:"pp_flashlight"`
	EffectiveMissCount float64           `json:"effective_miss_count"`
	Difficulty         engine.Difficulty `json:"difficulty"`
}

// Calculator applies the server rating pipeline on top of an Engine.
type Calculator struct {
	engine   engine.Engine
	resolver *nerf.Resolver
	players  map[int64]float64
	log      logger.Logger
}

// NewCalculator returns a Calculator backed by eng.
func NewCalculator(eng engine.Engine, opts ...Option) *Calculator {
	c := &Calculator{
		engine:   eng,
		resolver: nerf.NewResolver(nerf.DefaultPolicy()),
		players:  map[int64]float64{},
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("rating")
	return c
}

// Calculate rates one play on bm.
func (c *Calculator) Calculate(ctx context.Context, bm *engine.Beatmap, req Request) (Breakdown, error) {
	st := req.Stats
	if err := st.Validate(); err != nil {
		metrics.RecordRatingCalculation("invalid")
		return Breakdown{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	m := st.Mods.Normalize()
	relax := m.IsRelax()

	nmiss := st.NMiss
	if relax {
		nmiss = int(float64(nmiss) * relaxMissScale)
	}

	attrs, err := c.engine.Calculate(ctx, bm, params(st, m, nmiss))
	if err != nil {
		metrics.RecordRatingCalculation("engine_error")
		return Breakdown{}, err
	}

	scale := normalScale
	if relax {
		scale = relaxScale
	}
	aim := attrs.Aim * scale.aim
	speed := attrs.Speed * scale.speed
	fl := attrs.Flashlight * scale.flashlight

	// The accuracy component is whatever the engine total leaves after the
	// unscaled skill components.
	acc := attrs.Total - attrs.Aim - attrs.Speed - attrs.Flashlight
	if math.IsNaN(acc) || acc < 0 {
		acc = 0
	}
	acc *= accuracyTier(tierAccuracy(st, req.RecordedAccuracy))

	total := (aim + speed + acc + fl) * globalScale

	if req.Map.Complete() {
		total *= c.resolver.Resolve(req.Map.Title, req.Map.Artist, req.Map.Creator, req.Map.SetID, m)
	}

	if relax && bm != nil && bm.CircleSize > relaxCSThreshold {
		total *= relaxCSNerf
	}

	if req.Length != nil {
		total *= lengthMultiplier(*req.Length)
	}

	if req.ApplyCap {
		total = applyCap(st.Mode, total)
	}

	if req.PlayerID != nil {
		if pm, ok := c.players[*req.PlayerID]; ok {
			total *= pm
		}
	}

	metrics.RecordRatingCalculation("ok")
	return Breakdown{
		Total:              finalize(total),
		Aim:                aim,
		Speed:              speed,
		Accuracy:           acc,
		Flashlight:         fl,
		EffectiveMissCount: attrs.EffectiveMissCount,
		Difficulty:         attrs.Difficulty,
	}, nil
}

func params(st model.PlayStatistics, m mods.Mods, nmiss int) engine.Params {
	p := engine.Params{
		Mode:  st.Mode.Ruleset(),
		Mods:  m,
		Combo: st.Combo,
		NMiss: &nmiss,
	}
	if st.Accuracy != nil && *st.Accuracy != 0 {
		p.Accuracy = st.Accuracy
	}
	if h := st.Hits; h != nil {
		p.N300, p.N100, p.N50 = &h.N300, &h.N100, &h.N50
		p.NGeki, p.NKatu = &h.NGeki, &h.NKatu
	}
	return p
}

func tierAccuracy(st model.PlayStatistics, recorded *float64) float64 {
	switch {
	case st.Accuracy != nil && *st.Accuracy != 0:
		return *st.Accuracy
	case recorded != nil && *recorded != 0:
		return *recorded
	default:
		return 100
	}
}

func accuracyTier(acc float64) float64 {
	switch {
	case acc >= 100:
		return 1.33
	case acc >= 99:
		return 1.31
	case acc >= 98:
		return 1.27
	case acc >= 97:
		return 1.24
	case acc >= 95:
		return 1.19
	default:
		return 1.16
	}
}

func lengthMultiplier(seconds int) float64 {
	switch {
	case seconds < 60:
		return 0.90
	case seconds >= 300:
		return 1.15
	case seconds >= 240:
		return 1.10
	case seconds >= 180:
		return 1.05
	default:
		return 1.0
	}
}

func applyCap(mode mods.Mode, v float64) float64 {
	switch mode {
	case mods.VanillaOsu, mods.RelaxOsu:
		return math.Min(v, CapStandard)
	case mods.AutopilotOsu:
		return math.Min(v, CapAutopilot)
	default:
		return v
	}
}

func finalize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Round(v*1000) / 1000
}
