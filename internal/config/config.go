// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the settings shared by the Lambda entry point and the local server.
type Config struct {
	DevMode bool

	NotesTable     string
	NotesUserIndex string
	TaxonomyTable  string
	UsersTable     string

	KMSKeyID    string
	FrontendURL string

	GoogleClientID          string
	GoogleRedirectURL       string
	GoogleClientSecretParam string
	JWTSecretParam          string
	APIGatewaySecretParam   string

	StoreTimeout time.Duration
	LogLevel     zerolog.Level
	Port         string
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv, applying defaults for unset values.
func LoadFrom(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		NotesTable:              get("NOTES_TABLE", "Notes"),
		NotesUserIndex:          get("NOTES_USER_INDEX", "user_id-index"),
		TaxonomyTable:           get("TAXONOMY_TABLE", "Taxonomies"),
		UsersTable:              get("USERS_TABLE", "Users"),
		KMSKeyID:                get("KMS_KEY_ID", "alias/notesync-token-key"),
		FrontendURL:             get("FRONTEND_URL", "http://localhost:3000"),
		GoogleClientID:          getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecretParam: get("GOOGLE_CLIENT_SECRET_PARAM", "/notesync/google-client-secret"),
		JWTSecretParam:          get("JWT_SECRET_PARAM", "/notesync/jwt-secret"),
		APIGatewaySecretParam:   get("API_GATEWAY_SECRET_PARAM", "/notesync/api-gateway-secret"),
		Port:                    get("PORT", "8080"),
	}

	if v := getenv("DEV_MODE"); v != "" {
		devMode, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEV_MODE %q: %w", v, err)
		}
		cfg.DevMode = devMode
	}

	cfg.StoreTimeout = 10 * time.Second
	if v := getenv("STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STORE_TIMEOUT %q: %w", v, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("invalid STORE_TIMEOUT %q: must be positive", v)
		}
		cfg.StoreTimeout = d
	}

	cfg.LogLevel = zerolog.InfoLevel
	if cfg.DevMode {
		cfg.LogLevel = zerolog.DebugLevel
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		level, err := zerolog.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
		cfg.LogLevel = level
	}

	cfg.GoogleRedirectURL = getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		if cfg.DevMode {
			cfg.GoogleRedirectURL = "http://localhost:" + cfg.Port + "/auth/callback"
		} else {
			cfg.GoogleRedirectURL = cfg.FrontendURL + "/api/auth/callback"
		}
	}

	return cfg, nil
}
