package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the portal (e.g., "https://portal.example.com").
	// Used for the OIDC redirect and post-logout redirect.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for session and auxiliary cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// AllowedOrigins lists CORS origins, exact ("https://a.example.com") or
	// wildcard subdomain ("*.example.com").
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:3001,http://localhost:3004,http://localhost:3005" envSeparator:","`

	// LoginRatePerMinute limits /auth/login and /cookie/set per client IP.
	LoginRatePerMinute int `env:"HTTP_LOGIN_RATE_PER_MINUTE" envDefault:"30"`

	// LoginRateBurst is the burst size for the login limiter.
	LoginRateBurst int `env:"HTTP_LOGIN_RATE_BURST" envDefault:"10"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.BaseURL = strings.TrimRight(strings.TrimSpace(h.BaseURL), "/")
	origins := h.AllowedOrigins[:0]
	for _, o := range h.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	h.AllowedOrigins = origins
	if h.LoginRatePerMinute <= 0 {
		h.LoginRatePerMinute = 30
	}
	if h.LoginRateBurst <= 0 {
		h.LoginRateBurst = 10
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}
