package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/domain/catalog"
	"github.com/vss/sso-portal/internal/service"
)

// CatalogServiceInterface defines the catalog operations the pages need.
type CatalogServiceInterface interface {
	VisibleApps(ctx context.Context, roles []string) ([]catalog.App, error)
	LaunchTarget(ctx context.Context, id string, roles []string) (catalog.App, error)
}

var _ CatalogServiceInterface = (*service.CatalogService)(nil)

// PageHandlers renders the login, error and dashboard pages and launches apps.
type PageHandlers struct {
	Auth     AuthServiceInterface
	Catalog  CatalogServiceInterface
	Renderer *TemplateRenderer
	Cookies  CookieConfig
	// MonitorInterval is how often the dashboard polls /validate-session.
	MonitorInterval time.Duration
	Logger          *slog.Logger
}

func (h *PageHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var loginMessages = map[domainauth.ErrorKind]string{
	domainauth.ErrRefreshTokenInactive: "Your session was ended by the identity provider. Please sign in again.",
	domainauth.ErrRefreshTokenExpired:  "Your session has expired. Please sign in again.",
	domainauth.ErrInvalidRefreshToken:  "Your session is no longer valid. Please sign in again.",
	domainauth.ErrRefreshTokenNetwork:  "The sign-in service could not be reached. Please sign in again.",
	domainauth.ErrRefreshAccessToken:   "Your session could not be renewed. Please sign in again.",
	domainauth.ErrTokenErrorException:  "A sign-in error occurred. Please sign in again.",
}

// LoginMessage returns the notice shown on the login page for kind.
func LoginMessage(kind domainauth.ErrorKind) string {
	return loginMessages[kind]
}

type loginPage struct {
	ErrorKind   string
	Message     string
	SignInURL   string
	CallbackURL string
}

// Login renders the login page. Without an error kind it redirects straight
// into the code flow (or to callbackUrl when the session is still valid).
// With one it retries sign-in automatically once per loginRetryMaxAge window
// and otherwise shows the notice, so a failed session can bounce between the
// guard and the provider at most once.
// GET /login?error=<kind>&callbackUrl=<path>.
func (h *PageHandlers) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callback := safeRedirectPath(q.Get("callbackUrl"))
	signIn := signInURL(callback)

	kind := domainauth.ParseErrorKind(q.Get("error"))
	if kind == domainauth.ErrorNone {
		res, err := h.Auth.ValidateSession(r.Context(), h.Cookies.SessionID(r))
		if err == nil && res.Valid {
			http.Redirect(w, r, callback, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, signIn, http.StatusSeeOther)
		return
	}

	if !h.Cookies.LoginRetried(r) {
		h.Cookies.MarkLoginRetry(w, r)
		h.logger().InfoContext(r.Context(), "retrying sign-in after session error", "kind", string(kind))
		http.Redirect(w, r, signIn, http.StatusSeeOther)
		return
	}

	h.render(w, http.StatusOK, "login", loginPage{
		ErrorKind:   string(kind),
		Message:     LoginMessage(kind),
		SignInURL:   signIn,
		CallbackURL: callback,
	})
}

func signInURL(callback string) string {
	q := url.Values{}
	if callback != "/" {
		q.Set("callbackUrl", callback)
	}
	u := url.URL{Path: "/auth/login", RawQuery: q.Encode()}
	return u.String()
}

type errorPage struct {
	Code        string
	Description string
}

var errorDescriptions = map[string]string{
	"Configuration":      "The portal is not configured to reach the identity provider.",
	"Callback":           "Signing in could not be completed.",
	"OAuthCallback":      "The sign-in response was not valid.",
	"AccessDenied":       "You do not have permission to sign in.",
	"access_denied":      "Sign-in was cancelled or denied.",
	"SessionUnavailable": "Your session could not be loaded. Please try again shortly.",
}

// Error renders the authentication error page.
// GET /error?error=<code>&error_description=<text>.
func (h *PageHandlers) Error(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("error")
	if code == "" {
		code = "Unknown"
	}
	desc := r.URL.Query().Get("error_description")
	if desc == "" {
		desc = errorDescriptions[code]
	}
	if desc == "" {
		desc = "An unexpected error occurred while signing in."
	}
	h.render(w, http.StatusOK, "error", errorPage{Code: code, Description: desc})
}

type dashboardPage struct {
	User            domainauth.Claims
	DisplayName     string
	Apps            []catalog.App
	MonitorInterval time.Duration
}

// Dashboard renders the applications visible to the current user.
// GET / and GET /dashboard.
func (h *PageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	if sess == nil {
		redirectToLogin(w, r, domainauth.ErrorNone)
		return
	}

	apps, err := h.Catalog.VisibleApps(r.Context(), sess.Claims.Roles)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "list visible apps failed", "error", err)
		h.renderError(w, http.StatusInternalServerError, errorPage{Code: "CatalogUnavailable", Description: "Applications could not be loaded."})
		return
	}

	h.render(w, http.StatusOK, "dashboard", dashboardPage{
		User:            sess.Claims,
		DisplayName:     sess.Claims.DisplayName(),
		Apps:            apps,
		MonitorInterval: h.MonitorInterval,
	})
}

type meResponse struct {
	User      tokenUser     `json:"user"`
	Apps      []catalog.App `json:"apps"`
	ExpiresAt int64         `json:"expiresAt"`
}

// Me returns the current user and their visible applications.
// GET /api/me.
func (h *PageHandlers) Me(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	if sess == nil {
		WriteAppError(w, domainauth.ErrSessionNotFound)
		return
	}

	apps, err := h.Catalog.VisibleApps(r.Context(), sess.Claims.Roles)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "list visible apps failed", "error", err)
		WriteAppError(w, err)
		return
	}

	roles := sess.Claims.Roles
	if roles == nil {
		roles = []string{}
	}
	WriteJSON(w, http.StatusOK, meResponse{
		User: tokenUser{
			Sub:   sess.Claims.Subject,
			Name:  sess.Claims.DisplayName(),
			Email: sess.Claims.Email,
			Roles: roles,
		},
		Apps:      apps,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Launch re-synchronises the auxiliary cookie from the current session and
// sends the browser to the application.
// GET /apps/{id}/launch.
func (h *PageHandlers) Launch(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	if sess == nil {
		redirectToLogin(w, r, domainauth.ErrorNone)
		return
	}

	app, err := h.Catalog.LaunchTarget(r.Context(), r.PathValue("id"), sess.Claims.Roles)
	switch {
	case errors.Is(err, catalog.ErrAppNotFound):
		h.renderError(w, http.StatusNotFound, errorPage{Code: "AppNotFound", Description: "This application does not exist."})
		return
	case errors.Is(err, catalog.ErrAppForbidden):
		h.renderError(w, http.StatusForbidden, errorPage{Code: "AccessDenied", Description: "You do not have access to this application."})
		return
	case err != nil:
		h.logger().ErrorContext(r.Context(), "resolve app failed", "error", err)
		h.renderError(w, http.StatusInternalServerError, errorPage{Code: "CatalogUnavailable", Description: "The application could not be opened."})
		return
	}

	h.Cookies.SetAuthToken(w, r, sess.AccessToken)
	h.logger().InfoContext(r.Context(), "app launched", "app_id", app.ID, "subject", sess.Claims.Subject)
	http.Redirect(w, r, app.URL, http.StatusFound)
}

func (h *PageHandlers) renderError(w http.ResponseWriter, status int, data errorPage) {
	h.render(w, status, "error", data)
}

func (h *PageHandlers) render(w http.ResponseWriter, status int, name string, data any) {
	if h.Renderer == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if err := h.Renderer.Render(w, status, name, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
