package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/service"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	SessionAccessor
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	ValidateSession(ctx context.Context, sessionID string) (service.ValidationResult, error)
	Logout(ctx context.Context, sessionID string) service.LogoutResult
	CookieToken(ctx context.Context, sessionID, requested string) (string, error)
	ValidateBearer(ctx context.Context, token string) (domainauth.Claims, error)
}

var _ AuthServiceInterface = (*service.AuthService)(nil)

// AuthHandlers provides HTTP handlers for the authorization code flow.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Cookies CookieConfig
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login handles the login initiation endpoint.
// GET /auth/login?callbackUrl=<optional_redirect>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("callbackUrl"))

	result, err := h.Svc.BeginLogin(r.Context(), redirectURI)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		http.Redirect(w, r, errorPageURL("Configuration", ""), http.StatusSeeOther)
		return
	}

	h.Cookies.setOAuth(w, r, oauthCookieParams{State: result.State, Nonce: result.Nonce, RedirectURI: redirectURI})
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback handles the OAuth callback endpoint.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		h.logger().WarnContext(r.Context(), "provider returned an error", "error", providerErr)
		h.Cookies.clearOAuth(w, r)
		http.Redirect(w, r, errorPageURL(providerErr, q.Get("error_description")), http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		http.Redirect(w, r, errorPageURL("OAuthCallback", "authorization code and state are required"), http.StatusSeeOther)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		h.logger().WarnContext(r.Context(), "callback state mismatch")
		http.Redirect(w, r, errorPageURL("OAuthCallback", "invalid or missing state parameter"), http.StatusSeeOther)
		return
	}
	nonceCookie, err := r.Cookie(oauthNonceCookie)
	if err != nil {
		http.Redirect(w, r, errorPageURL("OAuthCallback", "missing nonce"), http.StatusSeeOther)
		return
	}

	result, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:              code,
		State:             state,
		Nonce:             nonceCookie.Value,
		PreviousSessionID: h.Cookies.SessionID(r),
	})
	if err != nil {
		h.logger().ErrorContext(r.Context(), "complete login failed", "error", err)
		http.Redirect(w, r, errorPageURL("Callback", ""), http.StatusSeeOther)
		return
	}

	redirectURI := h.postLoginRedirect(r)
	h.Cookies.SetSession(w, r, result.Session.ID)
	// The auxiliary cookie belongs to the previous session; it is re-issued on app launch.
	h.Cookies.ClearAuthToken(w, r)
	h.Cookies.clearOAuth(w, r)

	http.Redirect(w, r, redirectURI, http.StatusFound)
}

// postLoginRedirect returns the validated post-login path stored by Login.
func (h *AuthHandlers) postLoginRedirect(r *http.Request) string {
	if c, err := r.Cookie(postLoginRedirectCookie); err == nil {
		return safeRedirectPath(c.Value)
	}
	return "/"
}

// errorPageURL builds /error?error=<code>&error_description=<text>.
func errorPageURL(code, description string) string {
	q := url.Values{}
	q.Set("error", code)
	if description != "" {
		q.Set("error_description", description)
	}
	u := url.URL{Path: "/error", RawQuery: q.Encode()}
	return u.String()
}
