// Package apikeys issues, verifies and touches bancho_v2 API keys.
package apikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefix marks keys this service issued.
const KeyPrefix = "bancho_v2_"

// keyEntropy is the number of random bytes behind a key.
const keyEntropy = 36

// Generate returns a new plain key and the hash to store for it.
func Generate() (plain, hash string, err error) {
	buf := make([]byte, keyEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	plain = KeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return plain, Hash(plain), nil
}

// Hash returns the lowercase hex SHA-256 of the plain key.
func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// FromAuthorization extracts a bancho_v2 key from an Authorization header
// value. ok is false when the header is absent, not a bearer token, or a
// bearer token of some other kind.
func FromAuthorization(header string) (key string, ok bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, KeyPrefix) || len(token) == len(KeyPrefix) {
		return "", false
	}
	return token, true
}
