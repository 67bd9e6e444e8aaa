package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/domain/catalog"
	"github.com/vss/sso-portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider = (*MockAuthProvider)(nil)
	_ ports.TokenClient  = (*MockTokenClient)(nil)
	_ ports.TokenDecoder = (*StaticDecoder)(nil)
	_ ports.SessionStore = (*MemorySessionStore)(nil)
	_ ports.AppCatalog   = (*StaticCatalog)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.TokenGrant, error)

	// Deterministic values for predictable testing
	AuthURL      string
	StatePrefix  string
	NoncePrefix  string
	DefaultGrant domainauth.TokenGrant

	mu        sync.Mutex
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultGrant: domainauth.TokenGrant{
			AccessToken:      "mock-access-token",
			IDToken:          "mock-id-token",
			RefreshToken:     "mock-refresh-token",
			ExpiresIn:        300,
			RefreshExpiresIn: 1800,
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.TokenGrant, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if in.Code == "" {
		return domainauth.TokenGrant{}, errors.New("missing code")
	}
	grant := m.DefaultGrant
	if grant.AccessToken == "" {
		grant = domainauth.TokenGrant{AccessToken: "mock-access-token", IDToken: "mock-id-token", RefreshToken: "mock-refresh-token", ExpiresIn: 300}
	}
	return grant, nil
}

// MockTokenClient records refresh and end-session calls. Without the Func
// fields set it issues numbered tokens and succeeds.
type MockTokenClient struct {
	RefreshFunc       func(ctx context.Context, refreshToken string) (domainauth.TokenGrant, error)
	EndSessionFunc    func(ctx context.Context, in ports.EndSessionInput) error
	EndSessionURLFunc func(in ports.EndSessionInput) (string, error)

	refreshCalls    atomic.Int32
	endSessionCalls atomic.Int32
}

func (m *MockTokenClient) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenGrant, error) {
	n := m.refreshCalls.Add(1)
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	if refreshToken == "" {
		return domainauth.TokenGrant{}, &domainauth.MissingTokenError{Field: "refresh_token"}
	}
	return domainauth.TokenGrant{
		AccessToken:      fmt.Sprintf("refreshed-access-%d", n),
		IDToken:          fmt.Sprintf("refreshed-id-%d", n),
		RefreshToken:     fmt.Sprintf("refreshed-refresh-%d", n),
		ExpiresIn:        300,
		RefreshExpiresIn: 1800,
	}, nil
}

func (m *MockTokenClient) EndSession(ctx context.Context, in ports.EndSessionInput) error {
	m.endSessionCalls.Add(1)
	if m.EndSessionFunc != nil {
		return m.EndSessionFunc(ctx, in)
	}
	return nil
}

func (m *MockTokenClient) EndSessionURL(in ports.EndSessionInput) (string, error) {
	if m.EndSessionURLFunc != nil {
		return m.EndSessionURLFunc(in)
	}
	q := url.Values{}
	q.Set("id_token_hint", in.IDToken)
	if in.PostLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", in.PostLogoutRedirectURL)
	}
	return "https://mock-idp/logout?" + q.Encode(), nil
}

// RefreshCalls reports how many times Refresh ran.
func (m *MockTokenClient) RefreshCalls() int { return int(m.refreshCalls.Load()) }

// EndSessionCalls reports how many times EndSession ran.
func (m *MockTokenClient) EndSessionCalls() int { return int(m.endSessionCalls.Load()) }

// StaticDecoder returns claims looked up by token value.
type StaticDecoder struct {
	Tokens  map[string]domainauth.Claims
	Default *domainauth.Claims
	Err     error
}

func (d *StaticDecoder) Decode(_ context.Context, token string) (domainauth.Claims, error) {
	if d.Err != nil {
		return domainauth.Claims{}, d.Err
	}
	if token == "" {
		return domainauth.Claims{}, &domainauth.MissingTokenError{}
	}
	if c, ok := d.Tokens[token]; ok {
		return c, nil
	}
	if d.Default != nil {
		return *d.Default, nil
	}
	return domainauth.Claims{}, &domainauth.MalformedTokenError{Reason: "unknown token"}
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
	saves    int
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	m.saves++
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if id == "" || !ok {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Saves reports how many successful Save calls were made.
func (m *MemorySessionStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// StaticCatalog serves a fixed app list.
type StaticCatalog struct {
	Apps []catalog.App
	Err  error
}

func (c *StaticCatalog) List(context.Context) ([]catalog.App, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return slices.Clone(c.Apps), nil
}

func (c *StaticCatalog) Get(_ context.Context, id string) (catalog.App, error) {
	if c.Err != nil {
		return catalog.App{}, c.Err
	}
	for _, a := range c.Apps {
		if a.ID == id {
			return a, nil
		}
	}
	return catalog.App{}, catalog.ErrAppNotFound
}
