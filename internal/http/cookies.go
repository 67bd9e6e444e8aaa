package httpx

import (
	"net/http"
	"strings"
	"time"
)

// Cookie names used during the authorization code flow.
const (
	oauthStateCookie        = "oauth_state"
	oauthNonceCookie        = "oauth_nonce"
	postLoginRedirectCookie = "post_login_redirect"

	// oauthCookieMaxAge bounds how long a login attempt may take at the provider.
	oauthCookieMaxAge = 600

	// loginRetryCookie marks an automatic sign-in retry after a session error.
	loginRetryCookie = "login_retry"
	loginRetryMaxAge = 120
)

// Default cookie settings applied by CookieConfig.withDefaults.
const (
	DefaultSessionCookieName = "portal_session"
	DefaultAuthCookieName    = "auth_token"
	DefaultAuthCookieMaxAge  = 7 * 24 * time.Hour
	DefaultSessionMaxAge     = 10 * time.Hour
)

// CookieConfig describes the session cookie and the auxiliary auth_token cookie.
type CookieConfig struct {
	Domain string
	// Secure forces the Secure attribute. Requests arriving over TLS (or with
	// X-Forwarded-Proto: https) always get Secure cookies.
	Secure bool

	SessionName   string
	SessionMaxAge time.Duration

	AuthName     string
	AuthMaxAge   time.Duration
	AuthSameSite http.SameSite
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.SessionName == "" {
		c.SessionName = DefaultSessionCookieName
	}
	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = DefaultSessionMaxAge
	}
	if c.AuthName == "" {
		c.AuthName = DefaultAuthCookieName
	}
	if c.AuthMaxAge <= 0 {
		c.AuthMaxAge = DefaultAuthCookieMaxAge
	}
	if c.AuthSameSite == 0 || c.AuthSameSite == http.SameSiteDefaultMode {
		c.AuthSameSite = http.SameSiteLaxMode
	}
	return c
}

func (c CookieConfig) secure(r *http.Request) bool {
	return c.Secure || r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// SessionID returns the session ID carried by the request, or "".
func (c CookieConfig) SessionID(r *http.Request) string {
	ck, err := r.Cookie(c.withDefaults().SessionName)
	if err != nil {
		return ""
	}
	return ck.Value
}

// AuthToken returns the auxiliary cookie value carried by the request, or "".
func (c CookieConfig) AuthToken(r *http.Request) string {
	ck, err := r.Cookie(c.withDefaults().AuthName)
	if err != nil {
		return ""
	}
	return ck.Value
}

// SetSession writes the httpOnly session cookie.
func (c CookieConfig) SetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	c = c.withDefaults()
	http.SetCookie(w, &http.Cookie{
		Name:     c.SessionName,
		Value:    sessionID,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.SessionMaxAge.Seconds()),
	})
}

// ClearSession expires the session cookie.
func (c CookieConfig) ClearSession(w http.ResponseWriter, r *http.Request) {
	c = c.withDefaults()
	c.clear(w, r, c.SessionName, http.SameSiteLaxMode)
}

// SetAuthToken writes the auxiliary cross-application cookie. SameSite=None
// always carries Secure.
func (c CookieConfig) SetAuthToken(w http.ResponseWriter, r *http.Request, token string) {
	c = c.withDefaults()
	secure := c.secure(r) || c.AuthSameSite == http.SameSiteNoneMode
	http.SetCookie(w, &http.Cookie{
		Name:     c.AuthName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   secure,
		SameSite: c.AuthSameSite,
		MaxAge:   int(c.AuthMaxAge.Seconds()),
	})
}

// ClearAuthToken expires the auxiliary cookie. Clearing an absent cookie is a no-op for the browser.
func (c CookieConfig) ClearAuthToken(w http.ResponseWriter, r *http.Request) {
	c = c.withDefaults()
	c.clear(w, r, c.AuthName, c.AuthSameSite)
}

// clear mirrors the attributes used when setting so browsers match the cookie.
func (c CookieConfig) clear(w http.ResponseWriter, r *http.Request, name string, sameSite http.SameSite) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secure(r) || sameSite == http.SameSiteNoneMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: sameSite,
	})
}

// LoginRetried reports whether an automatic sign-in retry already ran recently.
func (c CookieConfig) LoginRetried(r *http.Request) bool {
	_, err := r.Cookie(loginRetryCookie)
	return err == nil
}

// MarkLoginRetry records an automatic sign-in retry for loginRetryMaxAge seconds.
func (c CookieConfig) MarkLoginRetry(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     loginRetryCookie,
		Value:    "1",
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   loginRetryMaxAge,
	})
}

// oauthCookieParams groups values needed to set OAuth cookies.
type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

// setOAuth stores state, nonce, and the post-login redirect for the callback.
func (c CookieConfig) setOAuth(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	secure := c.secure(r)
	for name, value := range map[string]string{
		oauthStateCookie:        p.State,
		oauthNonceCookie:        p.Nonce,
		postLoginRedirectCookie: p.RedirectURI,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Domain:   c.Domain,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   oauthCookieMaxAge,
		})
	}
}

func (c CookieConfig) clearOAuth(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{oauthStateCookie, oauthNonceCookie, postLoginRedirectCookie} {
		c.clear(w, r, name, http.SameSiteLaxMode)
	}
}
