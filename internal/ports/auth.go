package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/domain/catalog"
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying the nonce, and returns the issued tokens.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.TokenGrant, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// TokenClient talks to the provider's token and end-session endpoints.
type TokenClient interface {
	// Refresh redeems a refresh token. Failures are *auth.RefreshTransportError
	// or *auth.RefreshRejectedError.
	Refresh(ctx context.Context, refreshToken string) (domainauth.TokenGrant, error)

	// EndSession terminates the provider-side session. Callers treat it as best effort.
	EndSession(ctx context.Context, in EndSessionInput) error

	// EndSessionURL builds the browser-facing provider logout URL.
	EndSessionURL(in EndSessionInput) (string, error)
}

// EndSessionInput groups parameters for provider logout.
type EndSessionInput struct {
	IDToken               string
	PostLogoutRedirectURL string
}

// TokenDecoder turns an access token into claims.
type TokenDecoder interface {
	Decode(ctx context.Context, token string) (domainauth.Claims, error)
}

// SessionStore persists and retrieves user sessions.
// Get returns an error wrapping auth.ErrSessionNotFound when the ID is unknown.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// AppCatalog lists the downstream applications.
type AppCatalog interface {
	List(ctx context.Context) ([]catalog.App, error)
	Get(ctx context.Context, id string) (catalog.App, error)
}

// RefreshEvent describes one refresh attempt for metrics.
type RefreshEvent struct {
	Proactive bool
	// Kind is empty on success.
	Kind     domainauth.ErrorKind
	Duration time.Duration
	Err      error
}

// SessionMetrics records state machine activity.
type SessionMetrics interface {
	RecordRefresh(ev RefreshEvent)
	RecordLogin()
	RecordLogout(status string)
}
