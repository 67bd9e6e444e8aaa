package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
)

// SessionHandlers implements the session boundary API used by the portal's
// own pages, the token monitor and downstream applications.
type SessionHandlers struct {
	Svc     AuthServiceInterface
	Cookies CookieConfig
	Logger  *slog.Logger
}

func (h *SessionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// sessionStatus is the body of /validate-session and the cookie endpoints.
type sessionStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// noSessionError is reported by /validate-session when no record exists.
const noSessionError = "NoSession"

// ValidateSession reports whether the caller's session can still serve
// requests. It never refreshes or writes.
// GET /validate-session.
func (h *SessionHandlers) ValidateSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	res, err := h.Svc.ValidateSession(r.Context(), h.Cookies.SessionID(r))
	if err != nil {
		h.logger().ErrorContext(r.Context(), "validate session failed", "error", err)
		WriteJSON(w, http.StatusInternalServerError, sessionStatus{Message: "Failed to validate session", Error: "InternalError"})
		return
	}
	if !res.Valid {
		kind := string(res.Kind)
		if res.Session == nil {
			kind = noSessionError
		}
		WriteJSON(w, http.StatusUnauthorized, sessionStatus{Message: "Session invalid or expired", Error: kind})
		return
	}
	WriteJSON(w, http.StatusOK, sessionStatus{Success: true, Message: "Session valid"})
}

type setCookieRequest struct {
	Token string `json:"token"`
}

// SetCookie writes the auxiliary auth_token cookie. The request must name a
// token, but the value written is the current session's access token.
// POST /cookie/set.
func (h *SessionHandlers) SetCookie(w http.ResponseWriter, r *http.Request) {
	var req setCookieRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	token, err := h.Svc.CookieToken(r.Context(), h.Cookies.SessionID(r), strings.TrimSpace(req.Token))
	if err != nil {
		if !domainauth.IsMissingToken(err) {
			h.logger().WarnContext(r.Context(), "set cookie rejected", "error", err)
		}
		WriteAppError(w, err)
		return
	}

	h.Cookies.SetAuthToken(w, r, token)
	WriteJSON(w, http.StatusOK, sessionStatus{Success: true, Message: "Cookie set successfully"})
}

// ClearCookie expires the auxiliary cookie. It is idempotent.
// POST /cookie/clear.
func (h *SessionHandlers) ClearCookie(w http.ResponseWriter, r *http.Request) {
	h.Cookies.ClearAuthToken(w, r)
	WriteJSON(w, http.StatusOK, sessionStatus{Success: true, Message: "Cookie cleared"})
}

// Logout ends the local session and, when possible, the provider session.
// Provider failures are reported in the body with status 200.
// GET /logout.
func (h *SessionHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	res := h.Svc.Logout(r.Context(), h.Cookies.SessionID(r))

	h.Cookies.ClearSession(w, r)
	h.Cookies.ClearAuthToken(w, r)
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, res)
}

// tokenUser is the user block returned by ValidateToken.
type tokenUser struct {
	Sub   string   `json:"sub"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type tokenValidation struct {
	Valid   bool       `json:"valid"`
	Message string     `json:"message,omitempty"`
	User    *tokenUser `json:"user,omitempty"`
}

// ValidateToken decodes the auxiliary cookie (or a bearer header) for
// downstream applications.
// GET /auth/validate-token.
func (h *SessionHandlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	token := h.Cookies.AuthToken(r)
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		WriteJSON(w, http.StatusUnauthorized, tokenValidation{Message: "No token found in cookie"})
		return
	}

	claims, err := h.Svc.ValidateBearer(r.Context(), token)
	if err != nil {
		h.logger().InfoContext(r.Context(), "token validation failed", "error", err)
		WriteJSON(w, http.StatusUnauthorized, tokenValidation{Message: "Invalid token"})
		return
	}

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	WriteJSON(w, http.StatusOK, tokenValidation{
		Valid: true,
		User: &tokenUser{
			Sub:   claims.Subject,
			Name:  claims.DisplayName(),
			Email: claims.Email,
			Roles: roles,
		},
	})
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
