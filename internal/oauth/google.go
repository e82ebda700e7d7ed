package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleIssuer       = "https://accounts.google.com"
	googleScopeEmail   = "email"
	googleScopeProfile = "profile"
	stateLength        = 32
)

var (
	// ErrAuthFailed wraps any failure while exchanging or verifying the code.
	ErrAuthFailed = errors.New("oauth: auth failed")
	// ErrUnverifiedEmail indicates the provider did not verify the account email.
	ErrUnverifiedEmail = errors.New("oauth: email not verified")
)

// Identity is the provider-neutral assertion consumed by the user store.
type Identity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
	Picture  string
}

// GoogleConfig holds the configuration for the Google OAuth provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Google performs the authorization-code exchange and ID-token verification
// for Google sign-in. Protocol correctness is delegated to the oauth2 and
// oidc libraries.
type Google struct {
	cfg      *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

type googleClaims struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Verified bool   `json:"email_verified"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

// NewGoogle discovers the Google OIDC endpoints and returns a provider.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("oauth: discover google provider: %w", err)
	}

	return &Google{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, googleScopeProfile, googleScopeEmail},
			Endpoint:     endpoints.Google,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// LoginURL returns the provider consent URL bound to the given CSRF state.
func (g *Google) LoginURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

// Exchange swaps the authorization code for a verified identity assertion.
func (g *Google) Exchange(ctx context.Context, code string) (Identity, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: exchange code: %v", ErrAuthFailed, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return Identity{}, fmt.Errorf("%w: token response missing id_token", ErrAuthFailed)
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: verify id token: %v", ErrAuthFailed, err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: read claims: %v", ErrAuthFailed, err)
	}
	if !claims.Verified {
		return Identity{}, ErrUnverifiedEmail
	}

	return Identity{
		Provider: "google",
		Subject:  claims.Subject,
		Email:    strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:     strings.TrimSpace(claims.Name),
		Picture:  strings.TrimSpace(claims.Picture),
	}, nil
}

// NewState returns a random, URL-safe CSRF state value.
func NewState() string {
	buf := make([]byte, stateLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("oauth: rand.Read: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
