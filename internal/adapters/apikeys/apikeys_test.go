package apikeys

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/pkg/logger"
)

type fakeRepo struct {
	mu      sync.Mutex
	keys    map[string]model.APIKey
	users   map[int64]model.User
	nextID  int64
	touched map[string]time.Time
	block   chan struct{}
	failErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		keys:    map[string]model.APIKey{},
		users:   map[int64]model.User{},
		touched: map[string]time.Time{},
	}
}

func (r *fakeRepo) APIKeyByHash(_ context.Context, hash string) (model.APIKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return model.APIKey{}, false, r.failErr
	}
	k, ok := r.keys[hash]
	return k, ok, nil
}

func (r *fakeRepo) User(_ context.Context, id int64) (model.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	return u, ok, nil
}

func (r *fakeRepo) TouchAPIKey(ctx context.Context, hash string, at time.Time) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.touched[hash] = at
	return nil
}

func (r *fakeRepo) touchedAt(hash string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.touched[hash]
	return at, ok
}

func (r *fakeRepo) CreateAPIKey(_ context.Context, k model.APIKey) (model.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	k.ID = r.nextID
	r.keys[k.Hash] = k
	return k, nil
}

func (r *fakeRepo) APIKeysByUser(_ context.Context, userID int64, includeRevoked bool) ([]model.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.APIKey
	for _, k := range r.keys {
		if k.UserID == userID && (includeRevoked || !k.Revoked) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (r *fakeRepo) RevokeAPIKey(_ context.Context, id, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, k := range r.keys {
		if k.ID == id && k.UserID == userID {
			k.Revoked = true
			r.keys[h] = k
			return true, nil
		}
	}
	return false, nil
}

func TestKeys(t *testing.T) {
	Convey("Generated keys", t, func() {
		plain, hash, err := Generate()
		So(err, ShouldBeNil)
		So(plain, ShouldStartWith, KeyPrefix)
		So(len(plain), ShouldEqual, len(KeyPrefix)+48)
		So(hash, ShouldEqual, Hash(plain))
		So(hash, ShouldHaveLength, 64)

		other, _, err := Generate()
		So(err, ShouldBeNil)
		So(other, ShouldNotEqual, plain)
	})

	Convey("Hashing is deterministic SHA-256 hex", t, func() {
		So(Hash("abc"), ShouldEqual, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	})

	Convey("Authorization headers", t, func() {
		cases := []struct {
			header string
			key    string
			ok     bool
		}{
			{"", "", false},
			{"Bearer bancho_v2_abc", "bancho_v2_abc", true},
			{"bearer   bancho_v2_abc ", "bancho_v2_abc", true},
			{"Bearer bancho_v2_", "", false},
			{"Bearer sometoken", "", false},
			{"Basic bancho_v2_abc", "", false},
			{"bancho_v2_abc", "", false},
		}
		for _, c := range cases {
			key, ok := FromAuthorization(c.header)
			So(ok, ShouldEqual, c.ok)
			So(key, ShouldEqual, c.key)
		}
	})
}

func TestVerifier(t *testing.T) {
	Convey("Given stored keys", t, func() {
		now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		past := now.Add(-time.Minute)
		repo := newFakeRepo()
		repo.users[7] = model.User{ID: 7, Country: "de", Priv: 1}
		add := func(plain string, k model.APIKey) {
			k.Hash = Hash(plain)
			repo.keys[k.Hash] = k
		}
		add("bancho_v2_good", model.APIKey{ID: 1, UserID: 7})
		add("bancho_v2_revoked", model.APIKey{ID: 2, UserID: 7, Revoked: true})
		add("bancho_v2_expired", model.APIKey{ID: 3, UserID: 7, ExpiresAt: &past})
		add("bancho_v2_orphan", model.APIKey{ID: 4, UserID: 99})

		toucher := &recordingToucher{}
		v := NewVerifier(repo, WithClock(func() time.Time { return now }), WithToucher(toucher), WithVerifierLogger(logger.Nop()))
		ctx := context.Background()

		Convey("A valid key resolves its owner and is touched", func() {
			p, err := v.Verify(ctx, "bancho_v2_good")
			So(err, ShouldBeNil)
			So(p.User.ID, ShouldEqual, 7)
			So(p.Key.ID, ShouldEqual, 1)
			So(toucher.hashes, ShouldResemble, []string{Hash("bancho_v2_good")})
		})

		Convey("Each rejection has its own kind and nothing is touched", func() {
			cases := map[string]error{
				"bancho_v2_unknown": ErrInvalidKey,
				"bancho_v2_revoked": ErrRevoked,
				"bancho_v2_expired": ErrExpired,
				"bancho_v2_orphan":  ErrUnknownUser,
			}
			for plain, want := range cases {
				_, err := v.Verify(ctx, plain)
				So(err, ShouldEqual, want)
				So(Rejected(err), ShouldBeTrue)
			}
			So(toucher.hashes, ShouldBeEmpty)
		})

		Convey("Storage failures are not rejections", func() {
			repo.failErr = errors.New("db down")
			_, err := v.Verify(ctx, "bancho_v2_good")
			So(errors.Is(err, repo.failErr), ShouldBeTrue)
			So(Rejected(err), ShouldBeFalse)
		})
	})
}

type recordingToucher struct{ hashes []string }

func (r *recordingToucher) Touch(_ context.Context, hash string) { r.hashes = append(r.hashes, hash) }

func TestAsyncToucher(t *testing.T) {
	Convey("Given an async toucher", t, func() {
		repo := newFakeRepo()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		Convey("Touches reach the store even after the request context ends", func() {
			at := NewAsyncToucher(repo, 8, 1, logger.Nop())
			at.Start(ctx)

			reqCtx, reqCancel := context.WithCancel(ctx)
			at.Touch(reqCtx, "h1")
			reqCancel()

			So(at.Shutdown(ctx), ShouldBeNil)
			_, ok := repo.touchedAt("h1")
			So(ok, ShouldBeTrue)
		})

		Convey("A stuck store never blocks Touch", func() {
			repo.block = make(chan struct{})
			at := NewAsyncToucher(repo, 2, 1, logger.Nop())
			at.Start(ctx)

			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 100; i++ {
					at.Touch(ctx, strings.Repeat("x", i+1))
				}
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Touch blocked on a full queue")
			}
			close(repo.block)
			So(at.Shutdown(ctx), ShouldBeNil)
		})

		Convey("Repeated uses of a queued key are coalesced", func() {
			at := NewAsyncToucher(repo, 8, 1, logger.Nop())
			for i := 0; i < 5; i++ {
				at.Touch(ctx, "h1")
			}
			at.Touch(ctx, "h2")
			So(at.Pending(), ShouldEqual, 2)

			at.Start(ctx)
			So(at.Shutdown(ctx), ShouldBeNil)
			_, ok := repo.touchedAt("h1")
			So(ok, ShouldBeTrue)
			_, ok = repo.touchedAt("h2")
			So(ok, ShouldBeTrue)
		})

		Convey("Store failures are swallowed", func() {
			repo.failErr = errors.New("db down")
			at := NewAsyncToucher(repo, 8, 1, logger.Nop())
			at.Start(ctx)
			at.Touch(ctx, "h1")
			So(at.Shutdown(ctx), ShouldBeNil)
			_, ok := repo.touchedAt("h1")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestManager(t *testing.T) {
	Convey("Given a key manager", t, func() {
		repo := newFakeRepo()
		m := NewManager(repo)
		m.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
		ctx := context.Background()

		Convey("Create returns the plain key once and stores only its hash", func() {
			k, plain, err := m.Create(ctx, CreateRequest{UserID: 3, Description: "bot", ExpiresInDays: 30})
			So(err, ShouldBeNil)
			So(plain, ShouldStartWith, KeyPrefix)
			So(k.Hash, ShouldEqual, Hash(plain))
			So(k.ExpiresAt, ShouldNotBeNil)
			So(k.ExpiresAt.Format(time.DateOnly), ShouldEqual, "2026-01-31")

			keys, err := m.List(ctx, 3, false)
			So(err, ShouldBeNil)
			So(keys, ShouldHaveLength, 1)

			Convey("Revoking hides it from the default listing", func() {
				found, err := m.Revoke(ctx, k.ID, 3)
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)

				keys, _ := m.List(ctx, 3, false)
				So(keys, ShouldBeEmpty)
				keys, _ = m.List(ctx, 3, true)
				So(keys, ShouldHaveLength, 1)

				found, _ = m.Revoke(ctx, k.ID, 4)
				So(found, ShouldBeFalse)
			})
		})

		Convey("A key without expiry never expires", func() {
			k, _, err := m.Create(ctx, CreateRequest{UserID: 3})
			So(err, ShouldBeNil)
			So(k.ExpiresAt, ShouldBeNil)
		})

		Convey("Negative expiry is refused", func() {
			_, _, err := m.Create(ctx, CreateRequest{UserID: 3, ExpiresInDays: -1})
			So(err, ShouldEqual, ErrInvalidExpiry)
		})
	})
}
