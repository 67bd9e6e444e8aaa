package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	apperrors "github.com/vss/sso-portal/internal/errors"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so that the first one is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection returns a middleware that detects browser requests vs API requests.
// Downstream guards use it to choose between a login redirect and a JSON 401.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowserRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest returns true if the current request is from a browser.
func IsBrowserRequest(r *http.Request) bool {
	if val, ok := r.Context().Value(browserRequestKey{}).(bool); ok {
		return val
	}
	// Fallback to direct detection if middleware wasn't used
	return isBrowserRequest(r)
}

// isBrowserRequest determines if a request is from a browser based on:
// 1. Path prefix - API routes start with /api/
// 2. X-Requested-With - fetch/XHR callers want JSON
// 3. Accept header - browsers typically accept text/html.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/static/") {
		return false
	}
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return false
	}

	accept := r.Header.Get("Accept")
	if accept == "" {
		// No Accept header, assume browser for non-API routes
		return true
	}
	return strings.Contains(accept, "text/html")
}

// GuardOptions configures RequireSession.
type GuardOptions struct {
	Auth    SessionAccessor
	Cookies CookieConfig
	Logger  *slog.Logger
}

// SessionAccessor is the subset of the auth service the route guard needs.
type SessionAccessor interface {
	AccessSession(ctx context.Context, sessionID string) (domainauth.Session, error)
}

// RequireSession is the route guard. It runs the session state machine for the
// request and denies when there is no session or the session carries an error
// kind. Browsers are sent to the login page with the kind and the original
// path; API callers get a 401 JSON body.
func RequireSession(opts GuardOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := opts.Auth.AccessSession(r.Context(), opts.Cookies.SessionID(r))
			switch {
			case errors.Is(err, domainauth.ErrSessionNotFound):
				opts.Cookies.ClearSession(w, r)
				denySession(w, r, domainauth.ErrorNone)
				return
			case err != nil:
				logger.ErrorContext(r.Context(), "route guard: session access failed", "error", err)
				if IsBrowserRequest(r) {
					http.Redirect(w, r, "/error?error=SessionUnavailable", http.StatusSeeOther)
					return
				}
				WriteAppError(w, err)
				return
			case sess.Error.Terminal():
				logger.InfoContext(r.Context(), "route guard: session requires login", "kind", string(sess.Error))
				// Downstream apps must not keep using a bearer from a dead session.
				opts.Cookies.ClearAuthToken(w, r)
				denySession(w, r, sess.Error)
				return
			}

			ctx := SetSessionInContext(r.Context(), &sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func denySession(w http.ResponseWriter, r *http.Request, kind domainauth.ErrorKind) {
	if IsBrowserRequest(r) {
		redirectToLogin(w, r, kind)
		return
	}
	WriteAppError(w, apperrors.Unauthorized("Session invalid or expired", string(kind)))
}

// redirectToLogin sends the browser to the login page carrying the error kind
// (when any) and the current path as callbackUrl.
func redirectToLogin(w http.ResponseWriter, r *http.Request, kind domainauth.ErrorKind) {
	http.Redirect(w, r, LoginURL(kind, safeRedirectPath(r.URL.RequestURI())), http.StatusSeeOther)
}

// LoginURL builds /login?error=<kind>&callbackUrl=<path>.
func LoginURL(kind domainauth.ErrorKind, callbackURL string) string {
	q := url.Values{}
	if kind != domainauth.ErrorNone {
		q.Set("error", string(kind))
	}
	if callbackURL != "" && callbackURL != "/" {
		q.Set("callbackUrl", callbackURL)
	}
	u := url.URL{Path: "/login", RawQuery: q.Encode()}
	return u.String()
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	// Reject protocol-relative paths such as "//evil.example".
	if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, "/\\") {
		return "/"
	}
	return candidate
}
