package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateAPIKeyRoundTrip(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("unexpected generation error: %v", err)
	}
	if !strings.HasPrefix(key.Raw, "vin_") {
		t.Fatalf("expected vin_ scheme, got %q", key.Raw)
	}
	if key.Prefix != APIKeyPrefix(key.Raw) {
		t.Fatalf("prefix mismatch: %q vs %q", key.Prefix, APIKeyPrefix(key.Raw))
	}
	if key.Hash == key.Raw {
		t.Fatalf("hash must not equal the raw key")
	}

	if err := MatchAPIKey(key.Hash, key.Raw); err != nil {
		t.Fatalf("expected stored hash to match raw key: %v", err)
	}
	if err := MatchAPIKey(key.Hash, key.Raw+"x"); !errors.Is(err, ErrAPIKeyMismatch) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}

func TestGenerateAPIKeyProducesDistinctKeys(t *testing.T) {
	first, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("unexpected generation error: %v", err)
	}
	second, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("unexpected generation error: %v", err)
	}
	if first.Raw == second.Raw {
		t.Fatalf("expected distinct raw keys")
	}
}

func TestAPIKeyPrefixRejectsShortKeys(t *testing.T) {
	if prefix := APIKeyPrefix("vin_abc"); prefix != "" {
		t.Fatalf("expected empty prefix for short key, got %q", prefix)
	}
}
