package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "VINTRY"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabasePath   = "vintry.db"
	defaultLogLevel       = "info"
	defaultCookieName     = "vintry_session"
	defaultSessionTTL     = 30 * 24 * time.Hour
	defaultPublicBaseURL  = "http://localhost:8080"
	defaultSuccessPath    = "/"
	defaultFailurePath    = "/login?error=auth_failed"
	defaultImageSearchURL = "https://api.openverse.org/v1/images/"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	SigningSecret      string
	SessionCookieName  string
	SessionTTL         time.Duration
	PublicBaseURL      string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	AuthSuccessPath    string
	AuthFailurePath    string
	ImageSearchURL     string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.public_base_url", defaultPublicBaseURL)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl", defaultSessionTTL)
	configViper.SetDefault("google.redirect_url", "")
	configViper.SetDefault("auth.success_path", defaultSuccessPath)
	configViper.SetDefault("auth.failure_path", defaultFailurePath)
	configViper.SetDefault("images.search_url", defaultImageSearchURL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		SigningSecret:      configViper.GetString("session.signing_secret"),
		SessionCookieName:  configViper.GetString("session.cookie_name"),
		SessionTTL:         configViper.GetDuration("session.ttl"),
		PublicBaseURL:      strings.TrimRight(configViper.GetString("http.public_base_url"), "/"),
		GoogleClientID:     configViper.GetString("google.client_id"),
		GoogleClientSecret: configViper.GetString("google.client_secret"),
		GoogleRedirectURL:  configViper.GetString("google.redirect_url"),
		AuthSuccessPath:    configViper.GetString("auth.success_path"),
		AuthFailurePath:    configViper.GetString("auth.failure_path"),
		ImageSearchURL:     configViper.GetString("images.search_url"),
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if strings.TrimSpace(cfg.GoogleRedirectURL) == "" {
		cfg.GoogleRedirectURL = cfg.PublicBaseURL + "/auth/google/callback"
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.GoogleClientID) == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if strings.TrimSpace(c.GoogleClientSecret) == "" {
		return fmt.Errorf("google.client_secret is required")
	}
	return nil
}
