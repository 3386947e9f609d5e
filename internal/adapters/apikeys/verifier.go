package apikeys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/pkg/logger"
)

// Repository is the storage the verifier reads.
type Repository interface {
	APIKeyByHash(ctx context.Context, hash string) (model.APIKey, bool, error)
	User(ctx context.Context, id int64) (model.User, bool, error)
}

// Principal is the authenticated caller.
type Principal struct {
	Key  model.APIKey
	User model.User
}

// Toucher records key usage out of band.
type Toucher interface {
	Touch(ctx context.Context, hash string)
}

// Verifier resolves a plain key to its owner.
type Verifier struct {
	repo    Repository
	toucher Toucher
	now     func() time.Time
	log     logger.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithToucher records last-used after a successful verification.
func WithToucher(t Toucher) VerifierOption {
	return func(v *Verifier) {
		if t != nil {
			v.toucher = t
		}
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(l logger.Logger) VerifierOption {
	return func(v *Verifier) {
		if l != nil {
			v.log = l
		}
	}
}

// NewVerifier creates a verifier over repo.
func NewVerifier(repo Repository, opts ...VerifierOption) *Verifier {
	v := &Verifier{repo: repo, now: time.Now, log: logger.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.Named("apikeys")
	return v
}

// Verify checks a plain key. Storage failures are returned unwrapped by kind
// so that callers can tell them apart from rejections.
func (v *Verifier) Verify(ctx context.Context, plain string) (Principal, error) {
	hash := Hash(plain)
	key, ok, err := v.repo.APIKeyByHash(ctx, hash)
	if err != nil {
		return Principal{}, fmt.Errorf("lookup api key: %w", err)
	}
	switch {
	case !ok:
		return Principal{}, ErrInvalidKey
	case key.Revoked:
		return Principal{}, ErrRevoked
	case key.Expired(v.now()):
		return Principal{}, ErrExpired
	}

	user, ok, err := v.repo.User(ctx, key.UserID)
	if err != nil {
		return Principal{}, fmt.Errorf("lookup api key user: %w", err)
	}
	if !ok {
		v.log.Warn(ctx, "api key owner missing", logger.Int64("key_id", key.ID), logger.Int64("user_id", key.UserID))
		return Principal{}, ErrUnknownUser
	}

	if v.toucher != nil {
		v.toucher.Touch(ctx, hash)
	}
	return Principal{Key: key, User: user}, nil
}

// Rejected reports whether err is one of the 401 kinds.
func Rejected(err error) bool {
	return errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrRevoked) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrUnknownUser)
}
