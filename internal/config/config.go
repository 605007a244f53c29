package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "CREDTRACK"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabasePath       = "credtrack.db"
	defaultLogLevel           = "info"
	defaultTokenTTLMinutes    = 30
	defaultFeedTimeoutSeconds = 4
	defaultIdentityIssuer     = "credtrack-identity"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress           string
	DatabasePath          string
	LogLevel              string
	SigningSecret         string
	IdentitySigningSecret string
	IdentityIssuer        string
	TokenTTL              time.Duration
	FeedURL               string
	FeedTimeout           time.Duration
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("identity.issuer", defaultIdentityIssuer)
	configViper.SetDefault("feed.url", "")
	configViper.SetDefault("feed.timeout_seconds", defaultFeedTimeoutSeconds)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:           configViper.GetString("http.address"),
		DatabasePath:          configViper.GetString("database.path"),
		LogLevel:              configViper.GetString("log.level"),
		SigningSecret:         configViper.GetString("auth.signing_secret"),
		IdentitySigningSecret: configViper.GetString("identity.signing_secret"),
		IdentityIssuer:        configViper.GetString("identity.issuer"),
		TokenTTL:              time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		FeedURL:               configViper.GetString("feed.url"),
		FeedTimeout:           time.Duration(configViper.GetInt("feed.timeout_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.IdentitySigningSecret) == "" {
		return fmt.Errorf("identity.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.FeedTimeout <= 0 {
		return fmt.Errorf("feed.timeout_seconds must be positive")
	}
	return nil
}
