package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultSessionTTL = 30 * 24 * time.Hour
	sessionIssuer     = "vintry-auth"
	sessionAudience   = "vintry-api"
	bearerPrefix      = "Bearer "
)

var (
	ErrMissingSigningSecret = errors.New("auth: signing secret required")
	ErrMissingCookieName    = errors.New("auth: cookie name required")
	ErrMissingUserID        = errors.New("auth: user id required")
	ErrMissingCredential    = errors.New("auth: credential required")
	ErrInvalidCredential    = errors.New("auth: invalid credential")
	ErrExpiredCredential    = errors.New("auth: credential expired")
)

// SessionClaims carries the identity embedded in a session credential.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// SessionIssuerConfig configures the session credential issuer.
type SessionIssuerConfig struct {
	SigningSecret []byte
	CookieName    string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// SessionIssuer mints and verifies HS256 session credentials. The credential
// travels either as an HTTP cookie or as a bearer header; the cookie wins
// when both are present.
type SessionIssuer struct {
	signingSecret []byte
	cookieName    string
	tokenTTL      time.Duration
	clock         func() time.Time
}

// NewSessionIssuer constructs a SessionIssuer with validated configuration.
func NewSessionIssuer(cfg SessionIssuerConfig) (*SessionIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingCookieName
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		cookieName:    cookieName,
		tokenTTL:      ttl,
		clock:         clock,
	}, nil
}

// CookieName returns the cookie name used for session transport.
func (i *SessionIssuer) CookieName() string {
	return i.cookieName
}

// TokenTTL returns the configured credential lifetime.
func (i *SessionIssuer) TokenTTL() time.Duration {
	return i.tokenTTL
}

// Issue produces a signed credential embedding the user id and email.
func (i *SessionIssuer) Issue(userID, email string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrMissingUserID
	}

	now := i.clock().UTC()
	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    sessionIssuer,
			Audience:  []string{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.signingSecret)
}

// Verify validates the credential string and returns the embedded claims.
// It fails when the signature does not validate, the token is malformed,
// or the expiry has elapsed.
func (i *SessionIssuer) Verify(tokenString string) (SessionClaims, error) {
	trimmed := strings.TrimSpace(tokenString)
	if trimmed == "" {
		return SessionClaims{}, ErrMissingCredential
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		trimmed,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidCredential, token.Method.Alg())
			}
			return i.signingSecret, nil
		},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrExpiredCredential
		}
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if parsed == nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidCredential
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return SessionClaims{}, ErrInvalidCredential
	}
	return *claims, nil
}

// CredentialFromRequest extracts the raw credential from the request,
// preferring the session cookie over the Authorization header.
func (i *SessionIssuer) CredentialFromRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrMissingCredential
	}
	if cookie, err := r.Cookie(i.cookieName); err == nil && cookie != nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if token != "" {
			return token, nil
		}
	}
	return "", ErrMissingCredential
}

// VerifyRequest extracts and verifies the request credential in one step.
func (i *SessionIssuer) VerifyRequest(r *http.Request) (SessionClaims, error) {
	token, err := i.CredentialFromRequest(r)
	if err != nil {
		return SessionClaims{}, err
	}
	return i.Verify(token)
}
