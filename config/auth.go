package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration for the Keycloak realm.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"vss-portal"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	// IssuerURL is the realm issuer, e.g. https://sso.example.com/realms/vss.
	IssuerURL string `env:"ISSUER_URL"`
	// TokenURL overrides the discovered token endpoint for refresh grants.
	TokenURL string `env:"REFRESH_TOKEN_URL"`
	// EndSessionURL overrides the discovered end_session_endpoint.
	EndSessionURL string `env:"END_SESSION_URL"`
	// RefreshTimeout bounds each refresh round trip.
	RefreshTimeout time.Duration `env:"REFRESH_TIMEOUT" envDefault:"8s"`
	// RolesClaim is the JMESPath expression selecting roles from the access token.
	RolesClaim string `env:"ROLES_CLAIM" envDefault:"realm_access.roles"`
	// VerifySignature checks access token signatures against the realm JWKS.
	VerifySignature bool `env:"VERIFY_SIGNATURE" envDefault:"false"`
	// JWKSURL overrides the JWKS location used when VerifySignature is set.
	JWKSURL string `env:"JWKS_URL"`
}

// JWKSLocation returns the JWKS URL to verify signatures against.
func (o OAuthConfig) JWKSLocation() string {
	if o.JWKSURL != "" {
		return o.JWKSURL
	}
	if o.IssuerURL == "" {
		return ""
	}
	return strings.TrimRight(o.IssuerURL, "/") + "/protocol/openid-connect/certs"
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID     string        `env:"USER_ID"     envDefault:"dev-user"`
	Name       string        `env:"NAME"        envDefault:"Dev User"`
	Email      string        `env:"EMAIL"       envDefault:"dev@example.com"`
	Roles      []string      `env:"ROLES"       envDefault:"default-roles-vss-dev" envSeparator:";"`
	AccessTTL  time.Duration `env:"ACCESS_TTL"  envDefault:"5m"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"30m"`
	SigningKey string        `env:"SIGNING_KEY"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// PostLogoutRedirectURL is sent to the provider on logout. Defaults to APP_BASE_URL + /login.
	PostLogoutRedirectURL string `env:"POST_LOGOUT_REDIRECT_URL"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	a.OAuth.IssuerURL = strings.TrimRight(strings.TrimSpace(a.OAuth.IssuerURL), "/")
	a.OAuth.TokenURL = strings.TrimSpace(a.OAuth.TokenURL)
	a.OAuth.EndSessionURL = strings.TrimSpace(a.OAuth.EndSessionURL)
	if a.OAuth.RefreshTimeout <= 0 {
		a.OAuth.RefreshTimeout = 8 * time.Second
	}
	if strings.TrimSpace(a.OAuth.RolesClaim) == "" {
		a.OAuth.RolesClaim = "realm_access.roles"
	}
	if a.DevAuth.AccessTTL <= 0 {
		a.DevAuth.AccessTTL = 5 * time.Minute
	}
	if a.DevAuth.RefreshTTL < a.DevAuth.AccessTTL {
		a.DevAuth.RefreshTTL = a.DevAuth.AccessTTL
	}
}
