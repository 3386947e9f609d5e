package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/internal/domain/mods"
)

const defaultPageSize = 50

// LeaderboardHandler serves paged profile leaderboards from the stats table.
type LeaderboardHandler struct {
	stats       StatsReader
	maxPageSize int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(stats StatsReader, maxPageSize int) *LeaderboardHandler {
	if maxPageSize < 1 {
		maxPageSize = 100
	}
	return &LeaderboardHandler{stats: stats, maxPageSize: maxPageSize}
}

type pageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

type leaderboardResponse struct {
	Data []model.LeaderboardRow `json:"data"`
	Meta pageMeta               `json:"meta"`
}

// HandleGetLeaderboard handles GET /api/v2/leaderboard/{mode}?country=&page=&page_size=.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	mode, err := modeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	q := r.URL.Query()
	page, err := intQuery(q.Get("page"), 1)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("page must be a positive integer")))
		return
	}
	size, err := intQuery(q.Get("page_size"), defaultPageSize)
	if err != nil || size < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("page_size must be a positive integer")))
		return
	}
	if size > h.maxPageSize {
		writeError(w, http.StatusBadRequest, "limit_exceeded", WrapKind(op, ErrBadRequest, errors.New("page_size exceeds maximum of "+strconv.Itoa(h.maxPageSize))))
		return
	}
	country := strings.ToLower(strings.TrimSpace(q.Get("country")))

	total, err := h.stats.LeaderboardCount(r.Context(), mode, country)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	rows, err := h.stats.LeaderboardPage(r.Context(), mode, country, size, (page-1)*size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Data: rows,
		Meta: pageMeta{Total: total, Page: page, PageSize: size},
	})
}

func modeParam(r *http.Request) (mods.Mode, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "mode"))
	if err != nil {
		return 0, errors.New("mode must be an integer")
	}
	mode := mods.Mode(n)
	if !mode.Valid() {
		return 0, errors.New("unsupported mode " + strconv.Itoa(n))
	}
	return mode, nil
}

func intQuery(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
