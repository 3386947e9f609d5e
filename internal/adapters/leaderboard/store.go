// Package leaderboard holds the sorted per-mode player rankings that the
// recalculation writes and the rank endpoint reads.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/tuyosu/pprating/internal/domain/mods"
)

// Entry is a ranked leaderboard member.
type Entry struct {
	Rank   int     `json:"rank"`
	UserID int64   `json:"user_id"`
	Score  float64 `json:"pp"`
}

// Store is a set of named sorted sets ordered by score descending.
type Store interface {
	// Set writes member's score in board key, replacing any previous score.
	Set(ctx context.Context, key string, userID int64, score float64) error
	// Rank returns the 1-based position of userID in key. ok is false when the
	// member is absent.
	Rank(ctx context.Context, key string, userID int64) (e Entry, ok bool, err error)
	// Top returns up to n members of key, best first.
	Top(ctx context.Context, key string, n int) ([]Entry, error)
	// Count returns the number of members of key.
	Count(ctx context.Context, key string) (int, error)
}

// GlobalKey names the mode-wide board, e.g. "leaderboard:0".
func GlobalKey(prefix string, mode mods.Mode) string {
	return fmt.Sprintf("%sleaderboard:%d", prefix, int(mode))
}

// CountryKey names the per-country board, e.g. "leaderboard:0:de".
func CountryKey(prefix string, mode mods.Mode, country string) string {
	return fmt.Sprintf("%sleaderboard:%d:%s", prefix, int(mode), country)
}
