// Package config defines process configuration for the rating service and the
// recalculation tool, and the layered loader that fills it.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Supported storage backends.
const (
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBBackend selects the SQL driver: mysql, postgres or sqlite.
	DBBackend string `koanf:"db_backend"`
	// DBDSN is the driver-specific connection string.
	DBDSN string `koanf:"db_dsn"`
	// DBMigrate runs embedded migrations on startup.
	DBMigrate bool `koanf:"db_migrate"`

	// RedisAddr points at the sorted-set leaderboard. Empty selects the
	// in-memory store.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	// LeaderboardPrefix is prepended to leaderboard keys, e.g. "bancho:".
	LeaderboardPrefix string `koanf:"leaderboard_prefix"`

	// BeatmapsDir holds <map_id>.osu files.
	BeatmapsDir string `koanf:"beatmaps_dir"`
	// BeatmapMirrorURL is a printf pattern taking the map id.
	BeatmapMirrorURL string `koanf:"beatmap_mirror_url"`

	// osu! API v2 client credentials. Optional.
	OsuClientID     string `koanf:"osu_client_id"`
	OsuClientSecret string `koanf:"osu_client_secret"`
	OsuTokenURL     string `koanf:"osu_token_url"`

	// EngineCommand is the difficulty engine executable.
	EngineCommand   string   `koanf:"engine_command"`
	EngineArgs      []string `koanf:"engine_args"`
	EngineTimeoutMS int      `koanf:"engine_timeout_ms"`

	// ChunkSize bounds concurrent recalculation tasks.
	ChunkSize int `koanf:"chunk_size"`
	// RecalcLogDir receives recalc_YYYYMMDD_HHMMSS.log files.
	RecalcLogDir string `koanf:"recalc_log_dir"`
	// RecalcExportParquet writes the score change log as parquet next to the text log.
	RecalcExportParquet bool `koanf:"recalc_export_parquet"`
	// PushgatewayURL receives batch metrics at the end of a run. Optional.
	PushgatewayURL string `koanf:"pushgateway_url"`

	// MaxLeaderboardPageSize caps GET /leaderboard page_size.
	MaxLeaderboardPageSize int `koanf:"max_leaderboard_page_size"`
	// CORSOrigins lists allowed browser origins for the API.
	CORSOrigins []string `koanf:"cors_origins"`
	// APIKeyTouchQueue bounds pending last-used updates.
	APIKeyTouchQueue int `koanf:"apikey_touch_queue"`

	// NerfMapperOverrides replaces or extends the mapper multiplier table.
	NerfMapperOverrides map[string]float64 `koanf:"nerf_mapper_overrides"`
	// NerfMapsetIDs adds explicit mapset ids to nerf.
	NerfMapsetIDs []int `koanf:"nerf_mapset_ids"`
	// PlayerMultipliers maps a player id (as string) to a final multiplier.
	PlayerMultipliers map[string]float64 `koanf:"player_multipliers"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		DBBackend:              BackendMySQL,
		DBDSN:                  "bancho:bancho@tcp(127.0.0.1:3306)/bancho?parseTime=true",
		LeaderboardPrefix:      "",
		BeatmapsDir:            ".data/osu",
		BeatmapMirrorURL:       "https://old.ppy.sh/osu/%d",
		OsuTokenURL:            "https://osu.ppy.sh/oauth/token",
		EngineCommand:          "osu-pp-engine",
		EngineTimeoutMS:        10_000,
		ChunkSize:              100,
		RecalcLogDir:           "logs/recalc",
		MaxLeaderboardPageSize: 100,
		APIKeyTouchQueue:       1024,
	}
}

// EngineTimeout returns the per-call engine timeout.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.EngineTimeoutMS) * time.Millisecond
}

// Validate checks invariants the rest of the process relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DBDSN) == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardPageSize < 1:
		return fmt.Errorf("%w: max_leaderboard_page_size must be positive", ErrInvalidConfig)
	case c.EngineTimeoutMS < 0:
		return fmt.Errorf("%w: engine_timeout_ms must not be negative", ErrInvalidConfig)
	}

	switch c.DBBackend {
	case BackendMySQL, BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("%w: unsupported db_backend %q", ErrInvalidConfig, c.DBBackend)
	}

	if c.BeatmapMirrorURL != "" {
		if _, err := url.Parse(fmt.Sprintf(c.BeatmapMirrorURL, 1)); err != nil {
			return fmt.Errorf("%w: beatmap_mirror_url: %w", ErrInvalidConfig, err)
		}
	}
	for mapper, m := range c.NerfMapperOverrides {
		if m <= 0 || m > 1 {
			return fmt.Errorf("%w: nerf multiplier for %q must be in (0, 1]", ErrInvalidConfig, mapper)
		}
	}
	for player, m := range c.PlayerMultipliers {
		if m <= 0 {
			return fmt.Errorf("%w: player multiplier for %q must be positive", ErrInvalidConfig, player)
		}
	}
	return nil
}
