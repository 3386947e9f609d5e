package model

import "time"

// APIKey is a row of api_keys. Only the SHA-256 hash of the key is stored.
type APIKey struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Hash        string     `json:"-"`
	Description string     `json:"description,omitempty"`
	Scopes      string     `json:"scopes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Revoked     bool       `json:"revoked"`
}

// Expired reports whether the key has an expiry before now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// LeaderboardRow is one stats row joined with its player, as served by the
// leaderboard API.
type LeaderboardRow struct {
	Rank       int     `json:"rank"`
	UserID     int64   `json:"user_id"`
	PlayerName string  `json:"player_name"`
	Country    string  `json:"country"`
	PP         int     `json:"pp"`
	Acc        float64 `json:"acc"`
	Plays      int     `json:"plays"`
	Playtime   int64   `json:"playtime"`
	MaxCombo   int     `json:"max_combo"`
	TotalHits  int64   `json:"total_hits"`
	XHCount    int     `json:"xh_count"`
	XCount     int     `json:"x_count"`
	SHCount    int     `json:"sh_count"`
	SCount     int     `json:"s_count"`
	ACount     int     `json:"a_count"`
}
