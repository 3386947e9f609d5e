package model

import (
	"errors"

	"github.com/tuyosu/pprating/internal/domain/mods"
)

// ErrAccuracyAndHits is returned when statistics carry both an accuracy
// percentage and discrete hit counts.
var ErrAccuracyAndHits = errors.New("accuracy and hit counts are mutually exclusive")

// HitCounts are the discrete judgement counts of a play.
type HitCounts struct {
	N300  int
	N100  int
	N50   int
	NGeki int
	NKatu int
}

// Any reports whether any count is non-zero.
func (h *HitCounts) Any() bool {
	return h != nil && (h.N300 != 0 || h.N100 != 0 || h.N50 != 0 || h.NGeki != 0 || h.NKatu != 0)
}

// PlayStatistics describes one play. Either Accuracy or Hits may be set, not
// both. Nil pointers mean "not supplied".
type PlayStatistics struct {
	Mode     mods.Mode
	Mods     mods.Mods
	Combo    *int
	Accuracy *float64
	Hits     *HitCounts
	NMiss    int
}

// Validate enforces the accuracy / hit count exclusivity. A zero accuracy is
// treated as absent.
func (p *PlayStatistics) Validate() error {
	if p.Accuracy != nil && *p.Accuracy != 0 && p.Hits.Any() {
		return ErrAccuracyAndHits
	}
	return nil
}

// Accuracy computes the accuracy percentage of a play from its hit counts for
// the given ruleset (0 osu, 1 taiko, 2 catch, 3 mania).
func Accuracy(ruleset int, h HitCounts, nmiss int) float64 {
	var points, total float64
	switch ruleset {
	case 1:
		points = float64(h.N100*50 + h.N300*100)
		total = float64((nmiss + h.N100 + h.N300) * 100)
	case 2:
		fruits := h.N300 + h.N100 + h.N50
		points = float64(fruits)
		total = float64(fruits + nmiss + h.NKatu)
	case 3:
		points = float64(h.N50*50 + h.N100*100 + h.NKatu*200 + (h.N300+h.NGeki)*300)
		total = float64((nmiss + h.N50 + h.N100 + h.N300 + h.NGeki + h.NKatu) * 300)
	default:
		points = float64(h.N50*50 + h.N100*100 + h.N300*300)
		total = float64((nmiss + h.N50 + h.N100 + h.N300) * 300)
	}
	if total == 0 {
		return 0
	}
	return points / total * 100
}

// Privileges is the users.priv bit set.
type Privileges int64

// Unrestricted marks players that appear on public leaderboards.
const Unrestricted Privileges = 1 << 0

// User is the subset of the users table the recalculation needs.
type User struct {
	ID      int64
	Country string
	Priv    Privileges
}

// Visible reports whether the user belongs on public leaderboards.
func (u *User) Visible() bool { return u.Priv&Unrestricted != 0 }

// AggregateStats is one stats row (player x mode). It is always derived from
// the player's best scores and written with an upsert.
type AggregateStats struct {
	UserID int64
	Mode   mods.Mode
	PP     int
	Acc    float64
	Plays  int
}

// BestScore is a (pp, acc) pair used for aggregation.
type BestScore struct {
	PP  float64
	Acc float64
}
