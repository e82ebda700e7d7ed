package users

import (
	"strings"
	"time"
)

// User captures an authenticated account together with its share-link state.
// A user is uniquely identified by email across providers and holds at most
// one live share token at a time.
type User struct {
	ID              string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email           string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	Name            string    `gorm:"column:name;size:320"`
	Picture         string    `gorm:"column:picture;size:512"`
	Provider        string    `gorm:"column:provider;size:32"`
	ProviderID      string    `gorm:"column:provider_id;size:190"`
	APIKeyPrefix    string    `gorm:"column:api_key_prefix;size:32;index"`
	APIKeyHash      string    `gorm:"column:api_key_hash;size:128"`
	ShareToken      *string   `gorm:"column:share_token;size:64;uniqueIndex"`
	ShareShowValues bool      `gorm:"column:share_show_values;not null;default:false"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// ShareStatus reports the user's current share-link state.
type ShareStatus struct {
	Token      string
	ShowValues bool
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
