package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tuyosu/pprating/internal/adapters/leaderboard"
)

// RankHandler handles rank requests against the sorted leaderboard.
type RankHandler struct {
	ranks  RankReader
	prefix string
}

// NewRankHandler creates a new rank handler. prefix is the leaderboard key
// prefix the recalculation writes under.
func NewRankHandler(ranks RankReader, prefix string) *RankHandler {
	return &RankHandler{ranks: ranks, prefix: prefix}
}

type rankResponse struct {
	Mode int `json:"mode"`
	leaderboard.Entry
}

// HandleGetRank handles GET /api/v2/leaderboard/{mode}/rank/{userID}?country=.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	mode, err := modeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("userID must be a positive integer")))
		return
	}

	key := leaderboard.GlobalKey(h.prefix, mode)
	if country := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("country"))); country != "" {
		key = leaderboard.CountryKey(h.prefix, mode, country)
	}
	entry, ok, err := h.ranks.Rank(r.Context(), key, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{Mode: int(mode), Entry: entry})
}
