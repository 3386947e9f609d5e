package apikeys

import (
	"context"
	"time"

	"github.com/tuyosu/pprating/internal/domain/model"
)

// Store is the storage the manager writes.
type Store interface {
	CreateAPIKey(ctx context.Context, k model.APIKey) (model.APIKey, error)
	APIKeysByUser(ctx context.Context, userID int64, includeRevoked bool) ([]model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id, userID int64) (bool, error)
}

// Manager creates, lists and revokes a user's keys.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a manager over store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// CreateRequest describes a new key.
type CreateRequest struct {
	UserID        int64
	Description   string
	Scopes        string
	ExpiresInDays int
}

// Create stores a new key and returns it with its plain form. The plain key
// is not recoverable afterwards.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (model.APIKey, string, error) {
	if req.ExpiresInDays < 0 {
		return model.APIKey{}, "", ErrInvalidExpiry
	}
	plain, hash, err := Generate()
	if err != nil {
		return model.APIKey{}, "", err
	}
	now := m.now().UTC()
	k := model.APIKey{
		UserID:      req.UserID,
		Hash:        hash,
		Description: req.Description,
		Scopes:      req.Scopes,
		CreatedAt:   now,
	}
	if req.ExpiresInDays > 0 {
		exp := now.AddDate(0, 0, req.ExpiresInDays)
		k.ExpiresAt = &exp
	}
	k, err = m.store.CreateAPIKey(ctx, k)
	if err != nil {
		return model.APIKey{}, "", err
	}
	return k, plain, nil
}

// List returns the user's keys, newest first as the store orders them.
func (m *Manager) List(ctx context.Context, userID int64, includeRevoked bool) ([]model.APIKey, error) {
	return m.store.APIKeysByUser(ctx, userID, includeRevoked)
}

// Revoke marks a key revoked. found is false when the key does not exist or
// belongs to another user.
func (m *Manager) Revoke(ctx context.Context, id, userID int64) (found bool, err error) {
	return m.store.RevokeAPIKey(ctx, id, userID)
}
