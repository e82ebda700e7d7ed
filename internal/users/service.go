package users

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vintrylabs/vintry-api/internal/auth"
	"github.com/vintrylabs/vintry-api/internal/oauth"
)

const shareTokenBytes = 32

var (
	// ErrNotFound indicates no user matched the lookup. Share-token lookups
	// return it for revoked and never-issued tokens alike.
	ErrNotFound = errors.New("users: not found")
	// ErrInvalidIdentity indicates the provider assertion lacked an email.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	errMissingDatabase = errors.New("users: database handle required")
)

// ServiceConfig describes the dependencies required by the user service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages user records, provider identity merging, API keys, and
// the share-token lifecycle.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// UpsertByEmail resolves a provider identity to a user record. First sight
// of an email creates the user; on conflict the provider linkage and any
// non-empty profile fields are merged in, never overwriting stored values
// with empty ones.
func (s *Service) UpsertByEmail(ctx context.Context, identity oauth.Identity) (User, error) {
	email := normalizeEmail(identity.Email)
	if email == "" {
		return User{}, ErrInvalidIdentity
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{
			ID:         uuid.NewString(),
			Email:      email,
			Name:       normalize(identity.Name),
			Picture:    normalize(identity.Picture),
			Provider:   normalize(identity.Provider),
			ProviderID: normalize(identity.Subject),
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return User{}, fmt.Errorf("users: create: %w", err)
		}
		s.logger.Info("user created", zap.String("user_id", user.ID))
		return user, nil
	}
	if err != nil {
		return User{}, fmt.Errorf("users: lookup by email: %w", err)
	}

	updates := map[string]interface{}{}
	if provider := normalize(identity.Provider); provider != "" && provider != user.Provider {
		updates["provider"] = provider
		user.Provider = provider
	}
	if subject := normalize(identity.Subject); subject != "" && subject != user.ProviderID {
		updates["provider_id"] = subject
		user.ProviderID = subject
	}
	if name := normalize(identity.Name); name != "" && name != user.Name {
		updates["name"] = name
		user.Name = name
	}
	if picture := normalize(identity.Picture); picture != "" && picture != user.Picture {
		updates["picture"] = picture
		user.Picture = picture
	}
	if len(updates) > 0 {
		updates["updated_at"] = s.clock().UTC()
		if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return User{}, fmt.Errorf("users: merge identity: %w", err)
		}
	}

	return user, nil
}

// GetByID loads a user by its canonical identifier.
func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: lookup by id: %w", err)
	}
	return user, nil
}

// GetByShareToken resolves a public share token to its owner. Revoked and
// never-issued tokens are indistinguishable: both report ErrNotFound.
func (s *Service) GetByShareToken(ctx context.Context, token string) (User, error) {
	if normalize(token) == "" {
		return User{}, ErrNotFound
	}
	var user User
	err := s.db.WithContext(ctx).Where("share_token = ?", token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: lookup by share token: %w", err)
	}
	return user, nil
}

// GenerateShareToken assigns a freshly random token to the user, replacing
// any previous token so at most one is live at a time.
func (s *Service) GenerateShareToken(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("users: generate share token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Update("share_token", token)
	if result.Error != nil {
		return "", fmt.Errorf("users: store share token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrNotFound
	}
	s.logger.Info("share token generated", zap.String("user_id", userID))
	return token, nil
}

// RevokeShareToken clears the user's share token. Revoking an unshared user
// is a silent no-op.
func (s *Service) RevokeShareToken(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Update("share_token", nil).Error
	if err != nil {
		return fmt.Errorf("users: revoke share token: %w", err)
	}
	s.logger.Info("share token revoked", zap.String("user_id", userID))
	return nil
}

// SetShareValues toggles whether monetary fields appear on the share view.
// The flag persists across generate/revoke transitions.
func (s *Service) SetShareValues(ctx context.Context, userID string, showValues bool) error {
	err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Update("share_show_values", showValues).Error
	if err != nil {
		return fmt.Errorf("users: update share settings: %w", err)
	}
	return nil
}

// GetShareStatus reports the user's current share state. An unshared user
// yields an empty token.
func (s *Service) GetShareStatus(ctx context.Context, userID string) (ShareStatus, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return ShareStatus{}, err
	}
	status := ShareStatus{ShowValues: user.ShareShowValues}
	if user.ShareToken != nil {
		status.Token = *user.ShareToken
	}
	return status, nil
}

// IssueAPIKey mints a fresh API key for the user, replacing any previous
// one, and returns the raw key exactly once.
func (s *Service) IssueAPIKey(ctx context.Context, userID string) (string, error) {
	key, err := auth.GenerateAPIKey()
	if err != nil {
		return "", err
	}
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"api_key_prefix": key.Prefix,
		"api_key_hash":   key.Hash,
	})
	if result.Error != nil {
		return "", fmt.Errorf("users: store api key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return key.Raw, nil
}

// AuthenticateAPIKey resolves a presented raw key to its owner by prefix
// lookup followed by a bcrypt comparison per candidate.
func (s *Service) AuthenticateAPIKey(ctx context.Context, rawKey string) (User, error) {
	prefix := auth.APIKeyPrefix(rawKey)
	if prefix == "" {
		return User{}, ErrNotFound
	}

	var candidates []User
	if err := s.db.WithContext(ctx).Where("api_key_prefix = ?", prefix).Find(&candidates).Error; err != nil {
		return User{}, fmt.Errorf("users: lookup by api key prefix: %w", err)
	}
	for _, candidate := range candidates {
		if auth.MatchAPIKey(candidate.APIKeyHash, rawKey) == nil {
			return candidate, nil
		}
	}
	return User{}, ErrNotFound
}
