// Package api serves the rating read API, the calculate endpoint and API key
// management over chi.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tuyosu/pprating/internal/adapters/apikeys"
	"github.com/tuyosu/pprating/internal/adapters/engine"
	"github.com/tuyosu/pprating/internal/adapters/leaderboard"
	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/internal/domain/mods"
	"github.com/tuyosu/pprating/internal/domain/rating"
	"github.com/tuyosu/pprating/pkg/logger"
)

const requestTimeout = 30 * time.Second

// StatsReader pages the stats table.
type StatsReader interface {
	LeaderboardPage(ctx context.Context, mode mods.Mode, country string, limit, offset int) ([]model.LeaderboardRow, error)
	LeaderboardCount(ctx context.Context, mode mods.Mode, country string) (int, error)
}

// RankReader reads the sorted leaderboard.
type RankReader interface {
	Rank(ctx context.Context, key string, userID int64) (leaderboard.Entry, bool, error)
}

// BeatmapLookup resolves a beatmap row by id.
type BeatmapLookup interface {
	BeatmapByID(ctx context.Context, id int64) (model.Beatmap, bool, error)
}

// BeatmapFiles makes .osu files available locally.
type BeatmapFiles interface {
	Ensure(ctx context.Context, mapID int64, md5 string) (bool, error)
	Read(mapID int64) ([]byte, error)
}

// Calculator rates a single play.
type Calculator interface {
	Calculate(ctx context.Context, bm *engine.Beatmap, req rating.Request) (rating.Breakdown, error)
}

// Verifier authenticates bancho_v2 keys.
type Verifier interface {
	Verify(ctx context.Context, plain string) (apikeys.Principal, error)
}

// KeyManager creates, lists and revokes keys.
type KeyManager interface {
	Create(ctx context.Context, req apikeys.CreateRequest) (model.APIKey, string, error)
	List(ctx context.Context, userID int64, includeRevoked bool) ([]model.APIKey, error)
	Revoke(ctx context.Context, id, userID int64) (bool, error)
}

// Dependencies bundles what the handlers need. Nil members disable the
// routes that use them.
type Dependencies struct {
	DB                Pinger
	Stats             StatsReader
	Ranks             RankReader
	Beatmaps          BeatmapLookup
	Files             BeatmapFiles
	Engine            engine.Engine
	Calculator        Calculator
	Verifier          Verifier
	Keys              KeyManager
	LeaderboardPrefix string
	MaxPageSize       int
	CORSOrigins       []string
	Logger            logger.Logger
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	calculateHandler   *CalculateHandler
	keysHandler        *KeysHandler
	verifier           Verifier
	corsOrigins        []string
	log                logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("api")
	s := &Server{
		healthHandler: NewHealthHandler(deps.DB),
		verifier:      deps.Verifier,
		corsOrigins:   deps.CORSOrigins,
		log:           log,
	}
	if deps.Stats != nil {
		s.leaderboardHandler = NewLeaderboardHandler(deps.Stats, deps.MaxPageSize)
	}
	if deps.Ranks != nil {
		s.rankHandler = NewRankHandler(deps.Ranks, deps.LeaderboardPrefix)
	}
	if deps.Calculator != nil && deps.Beatmaps != nil && deps.Files != nil && deps.Engine != nil {
		s.calculateHandler = NewCalculateHandler(deps.Beatmaps, deps.Files, deps.Engine, deps.Calculator, log)
	}
	if deps.Keys != nil {
		s.keysHandler = NewKeysHandler(deps.Keys)
	}
	return s
}

// Router builds the chi router with every enabled route.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Length"},
			MaxAge:         300,
		}))
	}
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)

	r.Route("/api/v2", func(r chi.Router) {
		r.Use(APIKeyMiddleware(s.verifier, s.log))

		if s.leaderboardHandler != nil {
			r.Get("/leaderboard/{mode}", s.leaderboardHandler.HandleGetLeaderboard)
		}
		if s.rankHandler != nil {
			r.Get("/leaderboard/{mode}/rank/{userID}", s.rankHandler.HandleGetRank)
		}
		if s.calculateHandler != nil {
			r.Post("/calculate", s.calculateHandler.HandleCalculate)
		}
		if s.keysHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(RequireAPIKey)
				r.Post("/api_keys", s.keysHandler.HandleCreate)
				r.Get("/api_keys", s.keysHandler.HandleList)
				r.Delete("/api_keys/{id}", s.keysHandler.HandleRevoke)
			})
		}
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
