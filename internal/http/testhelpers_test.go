package httpx

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/domain/catalog"
	"github.com/vss/sso-portal/internal/service"
)

// fakeAuthService is a func-field test double for AuthServiceInterface.
type fakeAuthService struct {
	beginLoginFunc      func(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	completeLoginFunc   func(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	accessSessionFunc   func(ctx context.Context, sessionID string) (domainauth.Session, error)
	validateSessionFunc func(ctx context.Context, sessionID string) (service.ValidationResult, error)
	logoutFunc          func(ctx context.Context, sessionID string) service.LogoutResult
	cookieTokenFunc     func(ctx context.Context, sessionID, requested string) (string, error)
	validateBearerFunc  func(ctx context.Context, token string) (domainauth.Claims, error)

	lastCompleteInput service.CompleteLoginInput
	lastBeginRedirect string
}

func (f *fakeAuthService) BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error) {
	f.lastBeginRedirect = redirectURL
	if f.beginLoginFunc != nil {
		return f.beginLoginFunc(ctx, redirectURL)
	}
	return &service.BeginLoginResult{
		AuthURL: "https://idp.example.com/auth?state=test-state",
		State:   "test-state",
		Nonce:   "test-nonce",
	}, nil
}

func (f *fakeAuthService) CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error) {
	f.lastCompleteInput = input
	if f.completeLoginFunc != nil {
		return f.completeLoginFunc(ctx, input)
	}
	return &service.CompleteLoginResult{Session: testSession("new-session")}, nil
}

func (f *fakeAuthService) AccessSession(ctx context.Context, sessionID string) (domainauth.Session, error) {
	if f.accessSessionFunc != nil {
		return f.accessSessionFunc(ctx, sessionID)
	}
	if sessionID == "" {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return testSession(sessionID), nil
}

func (f *fakeAuthService) ValidateSession(ctx context.Context, sessionID string) (service.ValidationResult, error) {
	if f.validateSessionFunc != nil {
		return f.validateSessionFunc(ctx, sessionID)
	}
	if sessionID == "" {
		return service.ValidationResult{}, nil
	}
	s := testSession(sessionID)
	return service.ValidationResult{Valid: true, Session: &s}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, sessionID string) service.LogoutResult {
	if f.logoutFunc != nil {
		return f.logoutFunc(ctx, sessionID)
	}
	return service.LogoutResult{Status: service.LogoutSuccess, Message: "Signed out", RedirectURL: "http://localhost:8080/login"}
}

func (f *fakeAuthService) CookieToken(ctx context.Context, sessionID, requested string) (string, error) {
	if f.cookieTokenFunc != nil {
		return f.cookieTokenFunc(ctx, sessionID, requested)
	}
	if requested == "" {
		return "", &domainauth.MissingTokenError{Field: "token"}
	}
	if sessionID == "" {
		return "", domainauth.ErrSessionNotFound
	}
	return testSession(sessionID).AccessToken, nil
}

func (f *fakeAuthService) ValidateBearer(ctx context.Context, token string) (domainauth.Claims, error) {
	if f.validateBearerFunc != nil {
		return f.validateBearerFunc(ctx, token)
	}
	if token == "" {
		return domainauth.Claims{}, &domainauth.MissingTokenError{Field: "auth_token"}
	}
	return testSession("s").Claims, nil
}

// fakeCatalog is a func-field test double for CatalogServiceInterface.
type fakeCatalog struct {
	apps []catalog.App
	err  error
}

func (c *fakeCatalog) VisibleApps(_ context.Context, roles []string) ([]catalog.App, error) {
	if c.err != nil {
		return nil, c.err
	}
	return catalog.Filter(c.apps, roles), nil
}

func (c *fakeCatalog) LaunchTarget(_ context.Context, id string, roles []string) (catalog.App, error) {
	if c.err != nil {
		return catalog.App{}, c.err
	}
	for _, a := range c.apps {
		if a.ID != id {
			continue
		}
		if !a.VisibleTo(roles) {
			return catalog.App{}, catalog.ErrAppForbidden
		}
		return a, nil
	}
	return catalog.App{}, catalog.ErrAppNotFound
}

const testRole = "default-roles-vss-dev"

func testSession(id string) domainauth.Session {
	return domainauth.Session{
		ID:           id,
		AccessToken:  "access-" + id,
		IDToken:      "id-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    4102444800, // 2100-01-01
		Claims: domainauth.Claims{
			Subject: "user-1",
			Name:    "Test User",
			Email:   "test@example.com",
			Roles:   []string{testRole},
		},
	}
}

func testApps() []catalog.App {
	return []catalog.App{
		{ID: "vss-fe", Name: "VSS", URL: "http://localhost:3000", Roles: []string{testRole}},
		{ID: "admin", Name: "Admin", URL: "http://localhost:3009", Roles: []string{"portal-admin"}},
	}
}

// requireTemplateRenderer parses the repository templates for page tests.
func requireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: os.DirFS(TemplatePathFromTest)})
	require.NoError(t, err)
	return tr
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func withSessionCookie(r *http.Request, id string) *http.Request {
	r.AddCookie(&http.Cookie{Name: DefaultSessionCookieName, Value: id})
	return r
}
