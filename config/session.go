package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CookieSecurity selects when cookies carry the Secure attribute.
type CookieSecurity string

const (
	// CookieSecureAuto sets Secure everywhere except dev mode.
	CookieSecureAuto   CookieSecurity = "auto"
	CookieSecureAlways CookieSecurity = "always"
	CookieSecureNever  CookieSecurity = "never"
)

// UnmarshalText implements encoding.TextUnmarshaler for CookieSecurity.
func (c *CookieSecurity) UnmarshalText(text []byte) error {
	switch v := CookieSecurity(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case CookieSecureAuto, CookieSecureAlways, CookieSecureNever:
		*c = v
		return nil
	default:
		return fmt.Errorf("invalid cookie security: %q (valid options: auto, always, never)", v)
	}
}

// Resolve returns the effective Secure flag.
func (c CookieSecurity) Resolve(isDev bool) bool {
	switch c {
	case CookieSecureAlways:
		return true
	case CookieSecureNever:
		return false
	default:
		return !isDev
	}
}

// SessionConfig controls session lifetime, the refresh policy and cookie names.
type SessionConfig struct {
	// Store selects the session backend: "redis" or "memory".
	Store string `env:"SESSION_STORE" envDefault:"redis"`

	// RefreshThreshold is how long before access token expiry a proactive refresh starts.
	RefreshThreshold time.Duration `env:"SESSION_REFRESH_THRESHOLD" envDefault:"300s"`

	// TTL is the store retention used when the provider reports no refresh token lifetime.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"10h"`

	// MinTTL is the floor applied to every stored record.
	MinTTL time.Duration `env:"SESSION_MIN_TTL" envDefault:"10m"`

	// RefreshFlightTimeout bounds a shared refresh including store round trips.
	RefreshFlightTimeout time.Duration `env:"SESSION_REFRESH_FLIGHT_TIMEOUT" envDefault:"15s"`

	// CookieName names the httpOnly cookie that carries the session ID.
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"portal_session"`

	// CookieSecure is one of auto, always, never.
	CookieSecure CookieSecurity `env:"SESSION_COOKIE_SECURE" envDefault:"auto"`

	// AuthCookieName names the auxiliary cross-application bearer cookie.
	AuthCookieName string `env:"AUTH_COOKIE_NAME" envDefault:"auth_token"`

	// AuthCookieMaxAge is the lifetime of the auxiliary cookie.
	AuthCookieMaxAge time.Duration `env:"AUTH_COOKIE_MAX_AGE" envDefault:"168h"`

	// AuthCookieSameSite is lax or none. none forces Secure.
	AuthCookieSameSite string `env:"AUTH_COOKIE_SAMESITE" envDefault:"lax"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	s.Store = strings.ToLower(strings.TrimSpace(s.Store))
	if s.Store != "memory" {
		s.Store = "redis"
	}
	if s.RefreshThreshold <= 0 {
		s.RefreshThreshold = 300 * time.Second
	}
	if s.TTL <= 0 {
		s.TTL = 10 * time.Hour
	}
	if s.MinTTL <= 0 {
		s.MinTTL = 10 * time.Minute
	}
	if s.RefreshFlightTimeout <= 0 {
		s.RefreshFlightTimeout = 15 * time.Second
	}
	if s.CookieName == "" {
		s.CookieName = "portal_session"
	}
	if s.AuthCookieName == "" {
		s.AuthCookieName = "auth_token"
	}
	if s.AuthCookieMaxAge <= 0 {
		s.AuthCookieMaxAge = 7 * 24 * time.Hour
	}
	switch s.CookieSecure {
	case CookieSecureAlways, CookieSecureNever:
	default:
		s.CookieSecure = CookieSecureAuto
	}
	s.AuthCookieSameSite = strings.ToLower(strings.TrimSpace(s.AuthCookieSameSite))
	if s.AuthCookieSameSite != "none" {
		s.AuthCookieSameSite = "lax"
	}
}

// SameSite returns the http.SameSite mode for the auxiliary cookie.
func (s *SessionConfig) SameSite() http.SameSite {
	if s.AuthCookieSameSite == "none" {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
