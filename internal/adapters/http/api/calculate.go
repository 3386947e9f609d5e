package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tuyosu/pprating/internal/adapters/engine"
	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/internal/domain/mods"
	"github.com/tuyosu/pprating/internal/domain/rating"
	"github.com/tuyosu/pprating/pkg/logger"
)

const maxCalculateBody = 64 << 10

// CalculateHandler rates an ad-hoc play on a stored beatmap.
type CalculateHandler struct {
	beatmaps BeatmapLookup
	files    BeatmapFiles
	engine   engine.Engine
	calc     Calculator
	log      logger.Logger
}

// NewCalculateHandler creates a new calculate handler.
func NewCalculateHandler(beatmaps BeatmapLookup, files BeatmapFiles, eng engine.Engine, calc Calculator, log logger.Logger) *CalculateHandler {
	return &CalculateHandler{beatmaps: beatmaps, files: files, engine: eng, calc: calc, log: log}
}

// calculateRequest mirrors the OpenAPI schema for POST /api/v2/calculate.
// Accuracy and hit counts are mutually exclusive.
type calculateRequest struct {
	BeatmapID int64    `json:"beatmap_id"`
	Mode      int      `json:"mode"`
	Mods      uint32   `json:"mods"`
	Combo     *int     `json:"combo"`
	Accuracy  *float64 `json:"acc"`
	N300      *int     `json:"n300"`
	N100      *int     `json:"n100"`
	N50       *int     `json:"n50"`
	NGeki     *int     `json:"ngeki"`
	NKatu     *int     `json:"nkatu"`
	NMiss     int      `json:"nmiss"`
	PlayerID  *int64   `json:"player_id"`
	ApplyCap  bool     `json:"apply_cap"`
}

func (c *calculateRequest) validate() error {
	switch {
	case c.BeatmapID < 1:
		return errors.New("missing beatmap_id")
	case !mods.Mode(c.Mode).Valid():
		return errors.New("unsupported mode")
	case c.NMiss < 0:
		return errors.New("nmiss must not be negative")
	case c.Accuracy != nil && (*c.Accuracy < 0 || *c.Accuracy > 100):
		return errors.New("acc must be within [0, 100]")
	}
	for _, n := range []*int{c.Combo, c.N300, c.N100, c.N50, c.NGeki, c.NKatu} {
		if n != nil && *n < 0 {
			return errors.New("counts must not be negative")
		}
	}
	return nil
}

func (c *calculateRequest) statistics() model.PlayStatistics {
	st := model.PlayStatistics{
		Mode:     mods.Mode(c.Mode),
		Mods:     mods.Mods(c.Mods),
		Combo:    c.Combo,
		Accuracy: c.Accuracy,
		NMiss:    c.NMiss,
	}
	if c.N300 != nil || c.N100 != nil || c.N50 != nil || c.NGeki != nil || c.NKatu != nil {
		st.Hits = &model.HitCounts{N300: deref(c.N300), N100: deref(c.N100), N50: deref(c.N50), NGeki: deref(c.NGeki), NKatu: deref(c.NKatu)}
	}
	return st
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// HandleCalculate handles POST /api/v2/calculate.
func (h *CalculateHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	const op = "api.calculate"
	var req calculateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCalculateBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ctx := r.Context()
	bmRow, ok, err := h.beatmaps.BeatmapByID(ctx, req.BeatmapID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	available, err := h.files.Ensure(ctx, bmRow.ID, bmRow.MD5)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if !available {
		writeError(w, http.StatusServiceUnavailable, "beatmap_unavailable", NewKind(op, ErrUnavailable))
		return
	}
	data, err := h.files.Read(bmRow.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	bm, err := h.engine.Parse(ctx, data)
	if err != nil {
		h.log.Warn(ctx, "stored beatmap failed to parse", logger.Int64("map_id", bmRow.ID), logger.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "malformed_beatmap", Wrap(op, err))
		return
	}

	meta := bmRow.Meta()
	length := bmRow.TotalLength
	breakdown, err := h.calc.Calculate(ctx, bm, rating.Request{
		Stats:    req.statistics(),
		Map:      &meta,
		Length:   &length,
		PlayerID: req.PlayerID,
		ApplyCap: req.ApplyCap,
	})
	switch {
	case errors.Is(err, rating.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	case err != nil:
		h.log.Error(ctx, "rating failed", logger.Int64("map_id", bmRow.ID), logger.Error(err))
		writeError(w, http.StatusBadGateway, "engine_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}
