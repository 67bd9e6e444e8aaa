package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Identity provider and dev-auth configuration
//   - session.go: Session lifetime, refresh policy and cookies
//   - redis.go: Session store backend
//   - http.go: HTTP server, CORS and rate limits
//   - catalog.go: Downstream application catalog
//   - monitor.go: Client token monitor
type AppConfig struct {
	// IsDev controls development mode behavior (insecure cookies, relaxed token checks).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Session lifecycle configuration
	Session SessionConfig

	// Session store configuration
	Redis RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Application catalog configuration
	Catalog CatalogConfig

	// Client token monitor configuration
	Monitor MonitorConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Session.Sanitize()
	c.HTTP.Sanitize()
	c.Catalog.Sanitize()
	c.Monitor.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c *AppConfig) SecureCookies() bool {
	return c.Session.CookieSecure.Resolve(c.IsDev)
}

// PostLogoutRedirectURL returns the absolute URL the identity provider
// sends the browser to after logout.
func (c *AppConfig) PostLogoutRedirectURL() string {
	if c.Auth.PostLogoutRedirectURL != "" {
		return c.Auth.PostLogoutRedirectURL
	}
	return strings.TrimRight(c.HTTP.BaseURL, "/") + "/login"
}
