package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
)

func guarded(svc *fakeAuthService) (http.Handler, *domainauth.Session) {
	var seen domainauth.Session
	h := BrowserDetection()(RequireSession(GuardOptions{Auth: svc, Logger: slog.Default()})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = *GetSessionFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})))
	return h, &seen
}

func TestRequireSession_NoSessionBrowserRedirects(t *testing.T) {
	h, _ := guarded(&fakeAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard?tab=apps", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/dashboard?tab=apps", loc.Query().Get("callbackUrl"))
	assert.Empty(t, loc.Query().Get("error"))
}

func TestRequireSession_NoSessionAPIUnauthorized(t *testing.T) {
	h, _ := guarded(&fakeAuthService{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body.Error)
}

func TestRequireSession_ErrorKindDenies(t *testing.T) {
	kinds := []domainauth.ErrorKind{
		domainauth.ErrRefreshTokenInactive,
		domainauth.ErrRefreshTokenExpired,
		domainauth.ErrInvalidRefreshToken,
		domainauth.ErrRefreshTokenNetwork,
		domainauth.ErrRefreshAccessToken,
		domainauth.ErrTokenErrorException,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			svc := &fakeAuthService{accessSessionFunc: func(_ context.Context, id string) (domainauth.Session, error) {
				s := testSession(id)
				s.Error = kind
				return s, nil
			}}
			h, _ := guarded(svc)

			req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/", nil), "s1")
			req.Header.Set("Accept", "text/html")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusSeeOther, rec.Code)
			loc, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, string(kind), loc.Query().Get("error"))

			aux := findCookie(rec.Result().Cookies(), DefaultAuthCookieName)
			require.NotNil(t, aux, "auxiliary cookie must be cleared")
			assert.Equal(t, -1, aux.MaxAge)

			apiReq := withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/me", nil), "s1")
			apiRec := httptest.NewRecorder()
			h.ServeHTTP(apiRec, apiReq)
			assert.Equal(t, http.StatusUnauthorized, apiRec.Code)
			assert.Contains(t, apiRec.Body.String(), string(kind))
		})
	}
}

func TestRequireSession_ValidSessionInContext(t *testing.T) {
	h, seen := guarded(&fakeAuthService{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withSessionCookie(httptest.NewRequest(http.MethodGet, "/", nil), "s1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", seen.ID)
}

func TestRequireSession_StoreFailure(t *testing.T) {
	svc := &fakeAuthService{accessSessionFunc: func(context.Context, string) (domainauth.Session, error) {
		return domainauth.Session{}, errors.New("get session: redis down")
	}}
	h, _ := guarded(svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/me", nil), "s1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/", nil), "s1")
	req.Header.Set("Accept", "text/html")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/error?error=SessionUnavailable")
}

func TestBrowserDetection(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		accept string
		xhr    bool
		want   bool
	}{
		{"api route", "/api/me", "text/html", false, false},
		{"static asset", "/static/css/portal.css", "text/css", false, false},
		{"html page", "/dashboard", "text/html,application/xhtml+xml", false, true},
		{"no accept header", "/dashboard", "", false, true},
		{"json accept", "/dashboard", "application/json", false, false},
		{"xhr", "/dashboard", "text/html", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got bool
			h := BrowserDetection()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = IsBrowserRequest(r)
			}))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.xhr {
				req.Header.Set("X-Requested-With", "XMLHttpRequest")
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSafeRedirectPath(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/dashboard":           "/dashboard",
		"/apps/x/launch?a=1":   "/apps/x/launch?a=1",
		"https://evil.example": "/",
		"//evil.example/path":  "/",
		"relative":             "/",
		"javascript:alert(1)":  "/",
		"/\\evil.example":      "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeRedirectPath(in), in)
	}
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login", LoginURL(domainauth.ErrorNone, "/"))
	assert.Equal(t, "/login?callbackUrl=%2Fdashboard&error=RefreshTokenExpired",
		LoginURL(domainauth.ErrRefreshTokenExpired, "/dashboard"))
}

func TestRecover(t *testing.T) {
	h := Recover(slog.Default())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
