package beatmaps

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNoCredentials = errors.New("osu! api credentials not configured")
	ErrToken         = errors.New("osu! api token request failed")
	ErrBeatmapFile   = errors.New("beatmap file error")
)
