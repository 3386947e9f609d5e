package nerf

import (
	"strings"

	"github.com/tuyosu/pprating/internal/domain/mods"
)

// Resolver answers policy lookups. It is safe for concurrent use since it
// never mutates after construction.
type Resolver struct {
	patterns         []string
	mapsetIDs        map[int64]struct{}
	mappers          map[string]float64
	mapsetMultiplier float64
	relaxCompounding float64
}

// NewResolver snapshots p into a Resolver.
func NewResolver(p Policy) *Resolver {
	r := &Resolver{
		patterns:         p.lowered(),
		mapsetIDs:        make(map[int64]struct{}, len(p.MapsetIDs)),
		mappers:          make(map[string]float64, len(p.Mappers)),
		mapsetMultiplier: p.MapsetMultiplier,
		relaxCompounding: p.RelaxCompounding,
	}
	for id := range p.MapsetIDs {
		r.mapsetIDs[id] = struct{}{}
	}
	for k, v := range p.Mappers {
		r.mappers[k] = v
	}
	if r.mapsetMultiplier <= 0 {
		r.mapsetMultiplier = MapsetMultiplier
	}
	if r.relaxCompounding <= 0 {
		r.relaxCompounding = RelaxCompounding
	}
	return r
}

// Resolve returns the multiplier in (0, 1] for a map. The first matching
// category wins: title/artist pattern, then mapset id, then mapper. A mapper
// multiplier compounds with RelaxCompounding when the relax flag is set.
func (r *Resolver) Resolve(title, artist, creator string, setID int64, m mods.Mods) float64 {
	t := strings.ToLower(title)
	a := strings.ToLower(artist)
	for _, p := range r.patterns {
		if strings.Contains(t, p) || strings.Contains(a, p) {
			return r.mapsetMultiplier
		}
	}

	if _, ok := r.mapsetIDs[setID]; ok {
		return r.mapsetMultiplier
	}

	if base, ok := r.mappers[creator]; ok {
		if m.IsRelax() {
			return base * r.relaxCompounding
		}
		return base
	}

	return 1.0
}
