package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	apiKeyScheme       = "vin_"
	apiKeyRandomBytes  = 32
	apiKeyPrefixLength = 8
)

// ErrAPIKeyMismatch indicates the presented key does not match the stored hash.
var ErrAPIKeyMismatch = errors.New("auth: api key mismatch")

// APIKey bundles the freshly minted raw key with the parts safe to persist.
// The raw key is shown to the user exactly once; only the prefix and the
// bcrypt hash are stored.
type APIKey struct {
	Raw    string
	Prefix string
	Hash   string
}

// GenerateAPIKey mints a new API key: 32 random bytes, base64url encoded,
// prefixed with the key scheme.
func GenerateAPIKey() (APIKey, error) {
	buf := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return APIKey{}, fmt.Errorf("auth: generate api key: %w", err)
	}

	raw := apiKeyScheme + base64.RawURLEncoding.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return APIKey{}, fmt.Errorf("auth: hash api key: %w", err)
	}

	return APIKey{
		Raw:    raw,
		Prefix: raw[:len(apiKeyScheme)+apiKeyPrefixLength],
		Hash:   string(hash),
	}, nil
}

// APIKeyPrefix returns the lookup prefix for a presented raw key, or an
// empty string when the key is too short to carry one.
func APIKeyPrefix(rawKey string) string {
	if len(rawKey) < len(apiKeyScheme)+apiKeyPrefixLength {
		return ""
	}
	return rawKey[:len(apiKeyScheme)+apiKeyPrefixLength]
}

// MatchAPIKey compares a presented raw key against a stored bcrypt hash.
func MatchAPIKey(storedHash, rawKey string) error {
	if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(rawKey)) != nil {
		return ErrAPIKeyMismatch
	}
	return nil
}
