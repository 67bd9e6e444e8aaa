package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/vss/sso-portal/config"
)

// InitLogger initializes the structured logger. Dev mode logs at debug level.
func InitLogger(isDev bool) *slog.Logger {
	level := slog.LevelInfo
	if isDev {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateConfig rejects configurations the portal cannot start with.
func ValidateConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if !cfg.IsDev {
			return errors.New("AUTH_MODE=mock requires DEV=true")
		}
	case config.AuthModeOAuth:
		oauth := cfg.Auth.OAuth
		if oauth.IssuerURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
			return fmt.Errorf("oauth mode requires OAUTH_ISSUER_URL, OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET (issuer_set=%t client_id_set=%t secret_set=%t)",
				oauth.IssuerURL != "", oauth.ClientID != "", oauth.ClientSecret != "")
		}
	default:
		return fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
	if cfg.Session.AuthCookieSameSite == "none" && !cfg.SecureCookies() {
		return errors.New("AUTH_COOKIE_SAMESITE=none requires secure cookies")
	}
	return nil
}
