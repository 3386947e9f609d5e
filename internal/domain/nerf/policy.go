// Package nerf decides the map policy multiplier applied to a play's rating:
// speed-up map packs, explicitly listed mapsets and specific mappers.
package nerf

import "strings"

// Default multipliers.
const (
	// MapsetMultiplier applies to pattern and mapset-id matches.
	MapsetMultiplier = 0.85
	// RelaxCompounding further scales a mapper multiplier under relax.
	RelaxCompounding = 0.85
)

// Policy is the static nerf configuration. It is built once at startup and
// treated as read-only afterwards.
type Policy struct {
	// Patterns are matched case-insensitively against title and artist, in order.
	Patterns []string
	// MapsetIDs are nerfed regardless of title.
	MapsetIDs map[int64]struct{}
	// Mappers maps an exact creator name to its base multiplier.
	Mappers map[string]float64
	// MapsetMultiplier applies to pattern and mapset-id matches.
	MapsetMultiplier float64
	// RelaxCompounding multiplies a mapper multiplier under relax.
	RelaxCompounding float64
}

// DefaultPolicy returns the production tables.
func DefaultPolicy() Policy {
	return Policy{
		Patterns: []string{
			"speed-up",
			"speed up",
			"sped up",
			"speed-up map",
			"speed up map pack",
			"sped up pack",
			"over speed-up pack",
		},
		MapsetIDs: map[int64]struct{}{},
		Mappers: map[string]float64{
			"None1637":      0.70,
			"[-Omni-]":      0.95,
			"juliet":        0.95,
			"xAsuna":        0.95,
			"quantumvortex": 0.95,
			"Toffery2002":   0.65,
			"helloisuck":    0.95,
			"hool":          0.75,
			"Learner_":      0.40,
			"tazuwik":       0.75,
			"kselon":        0.75,
			"DTtheCarry":    0.65,
		},
		MapsetMultiplier: MapsetMultiplier,
		RelaxCompounding: RelaxCompounding,
	}
}

// WithMappers returns a copy of p whose mapper table is extended (or
// overridden) by extra.
func (p Policy) WithMappers(extra map[string]float64) Policy {
	merged := make(map[string]float64, len(p.Mappers)+len(extra))
	for k, v := range p.Mappers {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	p.Mappers = merged
	return p
}

// WithMapsetIDs returns a copy of p with ids added to the mapset set.
func (p Policy) WithMapsetIDs(ids ...int64) Policy {
	merged := make(map[int64]struct{}, len(p.MapsetIDs)+len(ids))
	for k := range p.MapsetIDs {
		merged[k] = struct{}{}
	}
	for _, id := range ids {
		merged[id] = struct{}{}
	}
	p.MapsetIDs = merged
	return p
}

func (p Policy) lowered() []string {
	out := make([]string, 0, len(p.Patterns))
	for _, pat := range p.Patterns {
		if pat = strings.ToLower(strings.TrimSpace(pat)); pat != "" {
			out = append(out, pat)
		}
	}
	return out
}
