package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tuyosu/pprating/internal/adapters/apikeys"
	"github.com/tuyosu/pprating/internal/domain/model"
)

// KeysHandler manages the caller's own API keys.
type KeysHandler struct {
	keys KeyManager
}

// NewKeysHandler creates a new key management handler.
func NewKeysHandler(keys KeyManager) *KeysHandler {
	return &KeysHandler{keys: keys}
}

type createKeyRequest struct {
	Description   string `json:"description"`
	Scopes        string `json:"scopes"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type createKeyResponse struct {
	APIKey    string     `json:"api_key"`
	ID        int64      `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type keysResponse struct {
	Data []model.APIKey `json:"data"`
}

// HandleCreate handles POST /api/v2/api_keys. The plain key is only ever
// returned here.
func (h *KeysHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_api_key"
	p, _ := PrincipalFrom(r.Context())

	var req createKeyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	k, plain, err := h.keys.Create(r.Context(), apikeys.CreateRequest{
		UserID:        p.User.ID,
		Description:   req.Description,
		Scopes:        req.Scopes,
		ExpiresInDays: req.ExpiresInDays,
	})
	switch {
	case errors.Is(err, apikeys.ErrInvalidExpiry):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, createKeyResponse{APIKey: plain, ID: k.ID, CreatedAt: k.CreatedAt, ExpiresAt: k.ExpiresAt})
}

// HandleList handles GET /api/v2/api_keys?include_revoked=.
func (h *KeysHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_api_keys"
	p, _ := PrincipalFrom(r.Context())

	includeRevoked := false
	if raw := r.URL.Query().Get("include_revoked"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		includeRevoked = v
	}
	keys, err := h.keys.List(r.Context(), p.User.ID, includeRevoked)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if keys == nil {
		keys = []model.APIKey{}
	}
	writeJSON(w, http.StatusOK, keysResponse{Data: keys})
}

// HandleRevoke handles DELETE /api/v2/api_keys/{id}. Revoking an already
// revoked key succeeds.
func (h *KeysHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	const op = "api.revoke_api_key"
	p, _ := PrincipalFrom(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("id must be a positive integer")))
		return
	}
	found, err := h.keys.Revoke(r.Context(), id, p.User.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
