// Package aggregate folds a player's best plays into a profile rating.
package aggregate

import "math"

const (
	weightDecay = 0.95
	bonusBase   = 416.6667
	bonusDecay  = 0.9994
)

// Entry is one best play. Callers pass entries sorted by PP descending.
type Entry struct {
	PP  float64
	Acc float64
}

// Result is the profile rating of a player in one mode.
type Result struct {
	PP    int
	Acc   float64
	Plays int
}

// Compute returns the weighted profile rating. ok is false for an empty
// slice, in which case nothing should be written.
func Compute(entries []Entry) (res Result, ok bool) {
	n := len(entries)
	if n == 0 {
		return Result{}, false
	}

	var weightedPP, weightedAcc float64
	w := 1.0
	for _, e := range entries {
		weightedPP += e.PP * w
		weightedAcc += e.Acc * w
		w *= weightDecay
	}

	bonusAcc := 100 / (20 * (1 - math.Pow(weightDecay, float64(n))))
	bonusPP := bonusBase * (1 - math.Pow(bonusDecay, float64(n)))

	return Result{
		PP:    int(math.Round(weightedPP + bonusPP)),
		Acc:   weightedAcc * bonusAcc / 100,
		Plays: n,
	}, true
}
