package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/ports"
	"golang.org/x/sync/singleflight"
)

// DefaultFlightTimeout bounds a shared refresh, including the store round trips.
const DefaultFlightTimeout = 15 * time.Second

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AuthProvider
	Tokens   ports.TokenClient
	Decoder  ports.TokenDecoder
	Sessions ports.SessionStore
	Metrics  ports.SessionMetrics // optional

	Policy domainauth.Policy
	// PostLogoutRedirectURL is where the provider sends the browser after logout.
	PostLogoutRedirectURL string
	// FlightTimeout bounds a shared refresh detached from any single request.
	FlightTimeout time.Duration
	// AllowExpiredBearer skips the exp check in ValidateBearer (development only).
	AllowExpiredBearer bool

	Now    func() time.Time
	Logger *slog.Logger
}

// AuthService drives the session state machine: login, per-request access with
// proactive and expiry refresh, read-only validation, and logout.
type AuthService struct {
	provider ports.AuthProvider
	tokens   ports.TokenClient
	decoder  ports.TokenDecoder
	sessions ports.SessionStore
	metrics  ports.SessionMetrics

	policy                domainauth.Policy
	postLogoutRedirectURL string
	flightTimeout         time.Duration
	allowExpiredBearer    bool

	now    func() time.Time
	logger *slog.Logger

	// One refresh per session ID at a time; concurrent requests share the result.
	flight singleflight.Group
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	s := &AuthService{
		provider:              opts.Provider,
		tokens:                opts.Tokens,
		decoder:               opts.Decoder,
		sessions:              opts.Sessions,
		metrics:               opts.Metrics,
		policy:                opts.Policy,
		postLogoutRedirectURL: opts.PostLogoutRedirectURL,
		flightTimeout:         opts.FlightTimeout,
		allowExpiredBearer:    opts.AllowExpiredBearer,
		now:                   opts.Now,
		logger:                opts.Logger,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.flightTimeout <= 0 {
		s.flightTimeout = DefaultFlightTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "auth_service")
	return s
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an authentication flow and returns the provider auth URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL: authURL,
		State:   state,
		Nonce:   nonce,
	}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
	// PreviousSessionID is the session the browser carried before login, if any.
	PreviousSessionID string
}

// CompleteLoginResult contains the result of completing a login flow.
type CompleteLoginResult struct {
	Session domainauth.Session
}

// CompleteLogin exchanges the code, decodes the access token and persists a
// FRESH session. Any previous session is discarded regardless of its state.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*CompleteLoginResult, error) {
	if input.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if input.State == "" {
		return nil, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, errors.New("nonce parameter is required")
	}

	grant, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	claims, err := s.decoder.Decode(ctx, grant.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	session := domainauth.Login(generateSessionID(), grant, claims, s.now())
	if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
		return nil, fmt.Errorf("save session: %w", saveErr)
	}

	if input.PreviousSessionID != "" && input.PreviousSessionID != session.ID {
		if delErr := s.sessions.Delete(ctx, input.PreviousSessionID); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete previous session", "error", delErr)
		}
	}

	s.metrics.RecordLogin()
	s.logger.InfoContext(ctx, "login completed", "subject", claims.Subject)
	return &CompleteLoginResult{Session: session}, nil
}

// AccessSession loads a session for an authenticated request and runs the
// state machine on it. FRESH sessions are returned without any provider call.
// The returned session may carry an Error tag; callers decide how to deny.
func (s *AuthService) AccessSession(ctx context.Context, sessionID string) (domainauth.Session, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domainauth.Session{}, err
	}

	next, decision := domainauth.Evaluate(sess, s.now(), s.policy)
	if decision.Effect == domainauth.EffectNone {
		if next.Error != sess.Error {
			if saveErr := s.sessions.Save(ctx, next); saveErr != nil {
				return domainauth.Session{}, fmt.Errorf("save session: %w", saveErr)
			}
		}
		return next, nil
	}

	// The refresh outlives a cancelled request so a shared flight is not
	// poisoned by the first caller hanging up.
	flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flightTimeout)
	defer cancel()
	v, err, _ := s.flight.Do(sessionID, func() (any, error) {
		return s.refreshSession(flightCtx, sessionID)
	})
	if err != nil {
		return domainauth.Session{}, err
	}
	return v.(domainauth.Session), nil
}

// refreshSession re-reads the record inside the flight so a refresh that
// completed between the caller's read and now is not repeated.
func (s *AuthService) refreshSession(ctx context.Context, sessionID string) (domainauth.Session, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domainauth.Session{}, err
	}

	now := s.now()
	next, decision := domainauth.Evaluate(sess, now, s.policy)
	if decision.Effect != domainauth.EffectRefresh {
		if next.Error != sess.Error {
			if saveErr := s.sessions.Save(ctx, next); saveErr != nil {
				return domainauth.Session{}, fmt.Errorf("save session: %w", saveErr)
			}
		}
		return next, nil
	}

	start := time.Now()
	out := s.performRefresh(ctx, sess.RefreshToken)
	elapsed := time.Since(start)

	updated := domainauth.ApplyRefresh(sess, decision, out, s.now())
	s.metrics.RecordRefresh(ports.RefreshEvent{
		Proactive: decision.Proactive(),
		Kind:      domainauth.ClassifyRefreshError(out.Err),
		Duration:  elapsed,
		Err:       out.Err,
	})

	switch kind := domainauth.ClassifyRefreshError(out.Err); {
	case out.Err != nil && decision.Proactive():
		s.logger.WarnContext(ctx, "proactive token refresh failed; keeping current token",
			"session_state", decision.State.String(), "kind", string(kind), "error", out.Err)
		if updated.RefreshToken == sess.RefreshToken && updated.IDToken == sess.IDToken {
			return sess, nil
		}
		// The grant went through, so the rotated refresh token must be kept.
	case out.Err != nil:
		s.logger.WarnContext(ctx, "token refresh failed; session requires login",
			"kind", string(kind), "error", out.Err)
	default:
		s.logger.InfoContext(ctx, "token refreshed",
			"session_state", decision.State.String(), "expires_at", updated.ExpiresAt)
	}

	if saveErr := s.sessions.Save(ctx, updated); saveErr != nil {
		s.logger.ErrorContext(ctx, "failed to persist refreshed session", "error", saveErr)
		return domainauth.Session{}, fmt.Errorf("save session: %w", saveErr)
	}
	return updated, nil
}

func (s *AuthService) performRefresh(ctx context.Context, refreshToken string) domainauth.RefreshOutcome {
	grant, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return domainauth.RefreshOutcome{Err: err}
	}
	claims, err := s.decoder.Decode(ctx, grant.AccessToken)
	if err != nil {
		return domainauth.RefreshOutcome{Grant: grant, Err: fmt.Errorf("decode refreshed access token: %w", err)}
	}
	return domainauth.RefreshOutcome{Grant: grant, Claims: claims}
}

// ValidationResult is the outcome of a read-only session check.
type ValidationResult struct {
	Valid   bool
	Kind    domainauth.ErrorKind
	Session *domainauth.Session
}

// ValidateSession reports whether the session can still serve requests. It
// never refreshes and never writes. A session whose refresh token lifetime has
// elapsed is reported invalid with RefreshTokenExpired.
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (ValidationResult, error) {
	sess, err := s.getSession(ctx, sessionID)
	if errors.Is(err, domainauth.ErrSessionNotFound) {
		return ValidationResult{}, nil
	}
	if err != nil {
		return ValidationResult{}, err
	}

	if sess.Error.Terminal() {
		return ValidationResult{Kind: sess.Error, Session: &sess}, nil
	}
	now := s.now()
	if domainauth.StateAt(sess, now, s.policy) == domainauth.StateExpired {
		if sess.RefreshToken == "" {
			return ValidationResult{Kind: domainauth.ErrRefreshAccessToken, Session: &sess}, nil
		}
		if sess.RefreshExpired(now) {
			return ValidationResult{Kind: domainauth.ErrRefreshTokenExpired, Session: &sess}, nil
		}
	}
	return ValidationResult{Valid: true, Session: &sess}, nil
}

// Logout statuses.
const (
	LogoutSuccess = "success"
	LogoutPartial = "partial"
	LogoutError   = "error"
)

// LogoutResult is the body of the logout endpoint.
type LogoutResult struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// Logout deletes the local session and ends the provider session when an ID
// token is available. Provider failures are reported, never returned.
func (s *AuthService) Logout(ctx context.Context, sessionID string) LogoutResult {
	res := s.logout(ctx, sessionID)
	s.metrics.RecordLogout(res.Status)
	return res
}

func (s *AuthService) logout(ctx context.Context, sessionID string) LogoutResult {
	if sessionID == "" {
		return LogoutResult{Status: LogoutSuccess, Message: "No active session"}
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, domainauth.ErrSessionNotFound) {
		return LogoutResult{Status: LogoutSuccess, Message: "No active session"}
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "logout: load session failed", "error", err)
		// Still try to remove whatever is stored under this ID.
		if delErr := s.sessions.Delete(ctx, sessionID); delErr != nil {
			s.logger.ErrorContext(ctx, "logout: delete session failed", "error", delErr)
		}
		return LogoutResult{Status: LogoutError, Message: "Failed to load session", RedirectURL: s.postLogoutRedirectURL}
	}

	if delErr := s.sessions.Delete(ctx, sessionID); delErr != nil {
		s.logger.ErrorContext(ctx, "logout: delete session failed", "error", delErr)
		return LogoutResult{Status: LogoutError, Message: "Failed to delete local session", RedirectURL: s.postLogoutRedirectURL}
	}

	if sess.IDToken == "" {
		return LogoutResult{
			Status:      LogoutPartial,
			Message:     "Signed out locally; provider session was not ended (no id_token)",
			RedirectURL: s.postLogoutRedirectURL,
		}
	}

	in := ports.EndSessionInput{IDToken: sess.IDToken, PostLogoutRedirectURL: s.postLogoutRedirectURL}
	if endErr := s.tokens.EndSession(ctx, in); endErr != nil {
		s.logger.WarnContext(ctx, "provider logout failed", "error", endErr)
		// Let the browser finish provider logout interactively.
		target, urlErr := s.tokens.EndSessionURL(in)
		if urlErr != nil {
			target = s.postLogoutRedirectURL
		}
		return LogoutResult{
			Status:      LogoutPartial,
			Message:     "Signed out locally; provider logout failed: " + endErr.Error(),
			RedirectURL: target,
		}
	}

	return LogoutResult{Status: LogoutSuccess, Message: "Signed out", RedirectURL: s.postLogoutRedirectURL}
}

// CookieToken returns the access token the auxiliary cookie must carry for
// sessionID. requested is the token the client asked to store; it must be
// present, but the value written always comes from the current session.
func (s *AuthService) CookieToken(ctx context.Context, sessionID, requested string) (string, error) {
	if requested == "" {
		return "", &domainauth.MissingTokenError{Field: "token"}
	}
	sess, err := s.AccessSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.Error.Terminal() {
		return "", fmt.Errorf("%w: %s", domainauth.ErrSessionInvalid, sess.Error)
	}
	if requested != sess.AccessToken {
		s.logger.DebugContext(ctx, "cookie token differs from session; using session token")
	}
	return sess.AccessToken, nil
}

// ValidateBearer decodes a token presented by a downstream application
// (the auxiliary cookie) and checks its expiry.
func (s *AuthService) ValidateBearer(ctx context.Context, token string) (domainauth.Claims, error) {
	if token == "" {
		return domainauth.Claims{}, &domainauth.MissingTokenError{Field: "auth_token"}
	}
	claims, err := s.decoder.Decode(ctx, token)
	if err != nil {
		return domainauth.Claims{}, err
	}
	if !s.allowExpiredBearer && claims.ExpiresAt > 0 && s.now().Unix() >= claims.ExpiresAt {
		return domainauth.Claims{}, fmt.Errorf("%w: token expired", domainauth.ErrSessionInvalid)
	}
	return claims, nil
}

func (s *AuthService) getSession(ctx context.Context, sessionID string) (domainauth.Session, error) {
	if sessionID == "" {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionNotFound) {
			return domainauth.Session{}, domainauth.ErrSessionNotFound
		}
		return domainauth.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// generateSessionID creates a cryptographically secure random session ID.
func generateSessionID() string {
	return uuid.New().String()
}

type noopMetrics struct{}

func (noopMetrics) RecordRefresh(ports.RefreshEvent) {}
func (noopMetrics) RecordLogin()                     {}
func (noopMetrics) RecordLogout(string)              {}
