// Package service assembles storage, the leaderboard, the difficulty engine
// and the rating pipeline from configuration, for both the HTTP API and the
// recalculation tool.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tuyosu/pprating/internal/adapters/apikeys"
	"github.com/tuyosu/pprating/internal/adapters/beatmaps"
	"github.com/tuyosu/pprating/internal/adapters/engine"
	"github.com/tuyosu/pprating/internal/adapters/http/api"
	"github.com/tuyosu/pprating/internal/adapters/http/swagger"
	"github.com/tuyosu/pprating/internal/adapters/leaderboard"
	"github.com/tuyosu/pprating/internal/adapters/storage"
	"github.com/tuyosu/pprating/internal/config"
	"github.com/tuyosu/pprating/internal/domain/nerf"
	"github.com/tuyosu/pprating/internal/domain/rating"
	"github.com/tuyosu/pprating/internal/recalc"
	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

// Sentinel errors.
var (
	ErrNotStarted = errors.New("service not started")
	ErrSetup      = errors.New("service setup failed")
)

// Service owns the long-lived components of a process.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store    *storage.Store
	board    leaderboard.Store
	redis    redis.UniversalClient
	engine   engine.Engine
	calc     *rating.Calculator
	fetcher  *beatmaps.Fetcher
	verifier *apikeys.Verifier
	toucher  *apikeys.AsyncToucher
	keys     *apikeys.Manager

	// Injected components are not closed on Stop.
	ownsStore bool

	touchWorkers int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore uses an already opened store instead of dialing the configured DSN.
func WithStore(st *storage.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithLeaderboard uses board instead of the configured Redis or memory store.
func WithLeaderboard(board leaderboard.Store) Option {
	return func(s *Service) {
		s.board = board
	}
}

// WithEngine replaces the external engine process.
func WithEngine(e engine.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithTouchWorkers sets how many goroutines drain API key last-used updates.
func WithTouchWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.touchWorkers = n
		}
	}
}

// New creates a Service for cfg. Nothing is dialed until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:          cfg,
		touchWorkers: max(1, runtime.NumCPU()/2),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s
}

// Start opens storage, builds the rating stack and launches the API key
// toucher. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting rating service...")

	if err := s.openStore(ctx); err != nil {
		return err
	}
	if err := s.openLeaderboard(ctx); err != nil {
		s.closeStore()
		return err
	}

	calc, err := s.buildCalculator()
	if err != nil {
		s.closeStore()
		s.closeRedis()
		return err
	}
	s.calc = calc
	s.fetcher = s.buildFetcher()

	s.toucher = apikeys.NewAsyncToucher(s.store, s.cfg.APIKeyTouchQueue, s.touchWorkers, s.logger)
	s.verifier = apikeys.NewVerifier(s.store,
		apikeys.WithToucher(s.toucher),
		apikeys.WithVerifierLogger(s.logger),
	)
	s.keys = apikeys.NewManager(s.store)
	s.toucher.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.String("db_backend", s.cfg.DBBackend),
		logger.String("leaderboard", s.boardKind()),
		logger.Int("touch_workers", s.touchWorkers),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.store == nil {
		st, err := storage.Open(ctx, s.cfg.DBBackend, s.cfg.DBDSN, storage.WithLogger(s.logger))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSetup, err)
		}
		s.store = st
		s.ownsStore = true
	}
	if s.cfg.DBMigrate {
		if err := s.store.Migrate(ctx); err != nil {
			s.closeStore()
			return fmt.Errorf("%w: %w", ErrSetup, err)
		}
	}
	return nil
}

func (s *Service) openLeaderboard(ctx context.Context) error {
	if s.board != nil {
		return nil
	}
	if s.cfg.RedisAddr == "" {
		s.board = leaderboard.NewMemoryStore(leaderboard.WithLogger(s.logger))
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPassword,
		DB:       s.cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("%w: redis %s: %w", ErrSetup, s.cfg.RedisAddr, err)
	}
	s.redis = client
	s.board = leaderboard.NewRedisStore(client, leaderboard.WithRedisLogger(s.logger))
	return nil
}

func (s *Service) buildCalculator() (*rating.Calculator, error) {
	policy := nerf.DefaultPolicy().WithMappers(s.cfg.NerfMapperOverrides)
	ids := make([]int64, 0, len(s.cfg.NerfMapsetIDs))
	for _, id := range s.cfg.NerfMapsetIDs {
		ids = append(ids, int64(id))
	}
	policy = policy.WithMapsetIDs(ids...)

	players, err := playerMultipliers(s.cfg.PlayerMultipliers)
	if err != nil {
		return nil, err
	}

	if s.engine == nil {
		s.engine = engine.NewProcessEngine(s.cfg.EngineCommand,
			engine.WithArgs(s.cfg.EngineArgs...),
			engine.WithTimeout(s.cfg.EngineTimeout()),
			engine.WithLogger(s.logger),
		)
	}
	return rating.NewCalculator(s.engine,
		rating.WithResolver(nerf.NewResolver(policy)),
		rating.WithPlayerMultipliers(players),
		rating.WithLogger(s.logger),
	), nil
}

func (s *Service) buildFetcher() *beatmaps.Fetcher {
	opts := []beatmaps.Option{beatmaps.WithLogger(s.logger)}
	if s.cfg.OsuClientID != "" && s.cfg.OsuClientSecret != "" {
		opts = append(opts, beatmaps.WithTokenProvider(
			beatmaps.NewTokenCache(s.cfg.OsuClientID, s.cfg.OsuClientSecret, s.cfg.OsuTokenURL),
		))
	}
	return beatmaps.NewFetcher(s.cfg.BeatmapsDir, s.cfg.BeatmapMirrorURL, opts...)
}

// playerMultipliers converts config keys to player ids.
func playerMultipliers(in map[string]float64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(in))
	for k, v := range in {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: player multiplier key %q: %w", ErrSetup, k, err)
		}
		out[id] = v
	}
	return out, nil
}

// Handler returns the HTTP routes: the v2 API, health, metrics and docs.
func (s *Service) Handler(ctx context.Context) (http.Handler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}

	r := api.NewServer(api.Dependencies{
		DB:                s.store,
		Stats:             s.store,
		Ranks:             s.board,
		Beatmaps:          s.store,
		Files:             s.fetcher,
		Engine:            s.engine,
		Calculator:        s.calc,
		Verifier:          s.verifier,
		Keys:              s.keys,
		LeaderboardPrefix: s.cfg.LeaderboardPrefix,
		MaxPageSize:       s.cfg.MaxLeaderboardPageSize,
		CORSOrigins:       s.cfg.CORSOrigins,
		Logger:            s.logger,
	}).Router()

	swagger.Register(ctx, r)
	return r, nil
}

// Recalculator returns a batch orchestrator over the started components.
func (s *Service) Recalculator(opts ...recalc.Option) (*recalc.Orchestrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}

	base := []recalc.Option{
		recalc.WithLogger(s.logger),
		recalc.WithLeaderboardPrefix(s.cfg.LeaderboardPrefix),
		recalc.WithChunkSize(s.cfg.ChunkSize),
	}
	return recalc.New(s.store, s.fetcher, s.engine, s.calc, s.board, append(base, opts...)...), nil
}

// Stop drains the toucher and releases connections the service opened.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping rating service...")

	var errs []error
	if s.toucher != nil {
		if err := s.toucher.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closeRedis()
	s.closeStore()

	s.started = false
	s.logger.Info(ctx, "rating service stopped")
	return errors.Join(errs...)
}

func (s *Service) closeStore() {
	if s.store != nil && s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing store failed", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}
}

func (s *Service) closeRedis() {
	if s.redis != nil {
		_ = s.redis.Close()
		s.redis = nil
		s.board = nil
	}
}

func (s *Service) boardKind() string {
	switch s.board.(type) {
	case *leaderboard.RedisStore:
		return "redis"
	case *leaderboard.MemoryStore:
		return "memory"
	default:
		return "custom"
	}
}

// GetStats returns service statistics for monitoring and refreshes the
// matching gauges.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started": s.started,
	}
	if !s.started {
		return stats
	}

	pending := s.toucher.Pending()
	stats["leaderboard"] = s.boardKind()
	stats["dbBackend"] = s.cfg.DBBackend
	stats["touchQueueLength"] = pending
	stats["touchWorkers"] = s.touchWorkers
	stats["nerfMappers"] = len(s.cfg.NerfMapperOverrides)

	players := make([]string, 0, len(s.cfg.PlayerMultipliers))
	for k := range s.cfg.PlayerMultipliers {
		players = append(players, k)
	}
	sort.Strings(players)
	stats["playerMultipliers"] = players

	metrics.UpdateQueueDepth("apikey_touch", pending)
	return stats
}
