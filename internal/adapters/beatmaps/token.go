package beatmaps

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// TokenExpiryBuffer is how long before its expiry a token is refreshed.
	TokenExpiryBuffer = 5 * time.Minute
	defaultTokenTTL   = 24 * time.Hour
)

// TokenProvider hands out bearer tokens for the osu! API.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenCache holds one osu! API v2 client-credentials token and refreshes it
// once it is within TokenExpiryBuffer of expiring. It is safe for concurrent
// use; concurrent callers during a refresh wait for the single request.
type TokenCache struct {
	cfg    *clientcredentials.Config
	client *http.Client
	now    func() time.Time
	buffer time.Duration

	mu  sync.Mutex
	tok *oauth2.Token
}

// TokenOption configures a TokenCache.
type TokenOption func(*TokenCache)

// WithTokenHTTPClient sets the client used for token requests.
func WithTokenHTTPClient(c *http.Client) TokenOption {
	return func(t *TokenCache) {
		if c != nil {
			t.client = c
		}
	}
}

// WithTokenClock overrides time.Now.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *TokenCache) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenCache returns a cache for the given client credentials.
func NewTokenCache(clientID, clientSecret, tokenURL string, opts ...TokenOption) *TokenCache {
	t := &TokenCache{
		cfg: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{"public"},
		},
		client: &http.Client{Timeout: 15 * time.Second},
		now:    time.Now,
		buffer: TokenExpiryBuffer,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Token returns a valid access token, requesting a new one when needed.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	if t.cfg.ClientID == "" || t.cfg.ClientSecret == "" {
		return "", ErrNoCredentials
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tok != nil && t.now().Before(t.tok.Expiry.Add(-t.buffer)) {
		return t.tok.AccessToken, nil
	}

	tok, err := t.cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, t.client))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToken, err)
	}
	if tok.Expiry.IsZero() {
		tok.Expiry = t.now().Add(defaultTokenTTL)
	}
	t.tok = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached token, e.g. after a 401 from the API.
func (t *TokenCache) Invalidate() {
	t.mu.Lock()
	t.tok = nil
	t.mu.Unlock()
}
