package config

import (
	"net/http"
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeOAuth {
		t.Errorf("Auth.Mode = %q, want oauth", cfg.Auth.Mode)
	}
	if cfg.Session.RefreshThreshold != 300*time.Second {
		t.Errorf("RefreshThreshold = %v, want 300s", cfg.Session.RefreshThreshold)
	}
	if cfg.Session.AuthCookieName != "auth_token" {
		t.Errorf("AuthCookieName = %q", cfg.Session.AuthCookieName)
	}
	if cfg.Session.AuthCookieMaxAge != 7*24*time.Hour {
		t.Errorf("AuthCookieMaxAge = %v, want 7 days", cfg.Session.AuthCookieMaxAge)
	}
	if cfg.Session.Store != "redis" {
		t.Errorf("Session.Store = %q, want redis", cfg.Session.Store)
	}
	if cfg.Monitor.Interval != 25*time.Second {
		t.Errorf("Monitor.Interval = %v, want 25s", cfg.Monitor.Interval)
	}
	if cfg.Auth.OAuth.RolesClaim != "realm_access.roles" {
		t.Errorf("RolesClaim = %q", cfg.Auth.OAuth.RolesClaim)
	}
	if len(cfg.HTTP.AllowedOrigins) != 4 {
		t.Errorf("AllowedOrigins = %v, want the four local apps", cfg.HTTP.AllowedOrigins)
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "oauth")
	t.Setenv("OAUTH_CLIENT_ID", "vss-frontend")
	t.Setenv("OAUTH_CLIENT_SECRET", "super-secret")
	t.Setenv("OAUTH_REDIRECT_URL", "https://portal.example.com/auth/callback")
	t.Setenv("OAUTH_ISSUER_URL", "https://sso.example.com/realms/vss/")
	t.Setenv("OAUTH_REFRESH_TOKEN_URL", "https://sso.example.com/realms/vss/protocol/openid-connect/token")
	t.Setenv("OAUTH_END_SESSION_URL", "https://sso.example.com/realms/vss/protocol/openid-connect/logout")
	t.Setenv("OAUTH_REFRESH_TIMEOUT", "3s")
	t.Setenv("DEV_AUTH_ROLES", "default-roles-vss-dev;portal-admin")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.OAuth.ClientID != "vss-frontend" {
		t.Errorf("ClientID = %q", cfg.Auth.OAuth.ClientID)
	}
	if cfg.Auth.OAuth.IssuerURL != "https://sso.example.com/realms/vss" {
		t.Errorf("IssuerURL should be trimmed, got %q", cfg.Auth.OAuth.IssuerURL)
	}
	if cfg.Auth.OAuth.RefreshTimeout != 3*time.Second {
		t.Errorf("RefreshTimeout = %v", cfg.Auth.OAuth.RefreshTimeout)
	}
	wantRoles := []string{"default-roles-vss-dev", "portal-admin"}
	if !reflect.DeepEqual(cfg.Auth.DevAuth.Roles, wantRoles) {
		t.Errorf("DevAuth.Roles = %v, want %v", cfg.Auth.DevAuth.Roles, wantRoles)
	}
	if got := cfg.Auth.OAuth.JWKSLocation(); got != "https://sso.example.com/realms/vss/protocol/openid-connect/certs" {
		t.Errorf("JWKSLocation() = %q", got)
	}
}

func TestAuthMode_UnmarshalText(t *testing.T) {
	var m AuthMode
	if err := m.UnmarshalText([]byte("MOCK")); err != nil || m != AuthModeMock {
		t.Fatalf("UnmarshalText(MOCK) = %q, %v", m, err)
	}
	if err := m.UnmarshalText([]byte("saml")); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestCookieSecurity(t *testing.T) {
	var c CookieSecurity
	if err := c.UnmarshalText([]byte("bogus")); err == nil {
		t.Fatal("expected error for unknown value")
	}

	tests := []struct {
		mode  CookieSecurity
		isDev bool
		want  bool
	}{
		{CookieSecureAuto, false, true},
		{CookieSecureAuto, true, false},
		{CookieSecureAlways, true, true},
		{CookieSecureNever, false, false},
	}
	for _, tt := range tests {
		if got := tt.mode.Resolve(tt.isDev); got != tt.want {
			t.Errorf("%s.Resolve(%v) = %v, want %v", tt.mode, tt.isDev, got, tt.want)
		}
	}
}

func TestSessionConfig_Sanitize(t *testing.T) {
	cfg := SessionConfig{Store: " MEMORY ", AuthCookieSameSite: "Strict"}
	cfg.Sanitize()

	if cfg.Store != "memory" {
		t.Errorf("Store = %q, want memory", cfg.Store)
	}
	if cfg.RefreshThreshold != 300*time.Second {
		t.Errorf("RefreshThreshold = %v", cfg.RefreshThreshold)
	}
	if cfg.AuthCookieSameSite != "lax" || cfg.SameSite() != http.SameSiteLaxMode {
		t.Errorf("unsupported SameSite should fall back to lax, got %q", cfg.AuthCookieSameSite)
	}
	if cfg.CookieSecure != CookieSecureAuto {
		t.Errorf("CookieSecure = %q, want auto", cfg.CookieSecure)
	}

	cfg = SessionConfig{AuthCookieSameSite: "none"}
	cfg.Sanitize()
	if cfg.SameSite() != http.SameSiteNoneMode {
		t.Error("expected SameSite=None")
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	cfg := HTTPConfig{
		BaseURL:        "https://portal.example.com/ ",
		AllowedOrigins: []string{" https://a.example.com/ ", "", "*.example.com"},
	}
	cfg.Sanitize()

	if cfg.BaseURL != "https://portal.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	want := []string{"https://a.example.com", "*.example.com"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	if cfg.LoginRatePerMinute != 30 || cfg.LoginRateBurst != 10 {
		t.Errorf("rate defaults not applied: %d/%d", cfg.LoginRatePerMinute, cfg.LoginRateBurst)
	}
}

func TestMonitorConfig_Sanitize(t *testing.T) {
	cfg := MonitorConfig{PortalURL: "http://portal/", Interval: time.Second}
	cfg.Sanitize()

	if cfg.Interval != minMonitorInterval {
		t.Errorf("Interval = %v, want clamp to %v", cfg.Interval, minMonitorInterval)
	}
	if cfg.PortalURL != "http://portal" {
		t.Errorf("PortalURL = %q", cfg.PortalURL)
	}
}

func TestAppConfig_PostLogoutRedirectURL(t *testing.T) {
	cfg := AppConfig{HTTP: HTTPConfig{BaseURL: "https://portal.example.com"}}
	if got := cfg.PostLogoutRedirectURL(); got != "https://portal.example.com/login" {
		t.Errorf("PostLogoutRedirectURL() = %q", got)
	}

	cfg.Auth.PostLogoutRedirectURL = "https://other.example.com/"
	if got := cfg.PostLogoutRedirectURL(); got != "https://other.example.com/" {
		t.Errorf("PostLogoutRedirectURL() override = %q", got)
	}
}

func TestAppConfig_DetectDevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	cfg := AppConfig{}
	cfg.Sanitize()

	if !cfg.IsDev {
		t.Fatal("expected IsDev from NODE_ENV")
	}
	if cfg.SecureCookies() {
		t.Fatal("expected insecure cookies in dev with auto security")
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}
