package devauth

// Package devauth provides a local identity provider for development. It
// issues real HS256 JWTs with short lifetimes so the refresh state machine
// runs end to end without Keycloak.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/ports"
)

var (
	_ ports.AuthProvider = (*Provider)(nil)
	_ ports.TokenClient  = (*Provider)(nil)
)

// Config controls the dev auth provider behavior.
// UserID and Email are required; Roles may be empty.
type Config struct {
	UserID     string
	Name       string
	Email      string
	Roles      []string
	AccessTTL  time.Duration // default 5m when zero
	RefreshTTL time.Duration // default 30m when zero
	SigningKey string        // random when empty
	Issuer     string
	Now        func() time.Time
}

// Provider implements ports.AuthProvider and ports.TokenClient for local development.
// Begin short-circuits to our own callback; Exchange ignores the code.
type Provider struct {
	cfg Config
	key []byte
	now func() time.Time

	mu      sync.Mutex
	refresh map[string]time.Time // refresh token -> expiry
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 5 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * time.Minute
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "devauth"
	}
	cfg.Roles = append([]string(nil), cfg.Roles...)

	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		k, err := randomString(32)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		key = []byte(k)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{cfg: cfg, key: key, now: now, refresh: make(map[string]time.Time)}, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	// Our standard handler expects GET /auth/callback?code=...&state=...
	authURL := "/auth/callback?code=dev&state=" + url.QueryEscape(state)
	return authURL, state, nonce, nil
}

// Exchange ignores the provided code/state/nonce (validation handled by handler) and issues tokens.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (domainauth.TokenGrant, error) {
	return p.issue()
}

// Refresh redeems a refresh token issued by this provider. Unknown or expired
// tokens are rejected the way Keycloak rejects them.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenGrant, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.TokenGrant{}, &domainauth.RefreshTransportError{Err: err}
	}

	p.mu.Lock()
	exp, ok := p.refresh[refreshToken]
	delete(p.refresh, refreshToken)
	p.mu.Unlock()

	if !ok || !p.now().Before(exp) {
		return domainauth.TokenGrant{}, domainauth.NewRefreshRejectedError(http.StatusBadRequest,
			[]byte(`{"error":"invalid_grant","error_description":"Token is not active"}`))
	}
	return p.issue()
}

// Revoke invalidates every outstanding refresh token. Used to simulate an
// administrator ending sessions on the provider.
func (p *Provider) Revoke() {
	p.mu.Lock()
	p.refresh = make(map[string]time.Time)
	p.mu.Unlock()
}

// EndSession revokes outstanding refresh tokens.
func (p *Provider) EndSession(_ context.Context, in ports.EndSessionInput) error {
	if in.IDToken == "" {
		return errors.New("id token is required")
	}
	p.Revoke()
	return nil
}

// EndSessionURL returns the post-logout redirect directly; there is no provider UI.
func (p *Provider) EndSessionURL(in ports.EndSessionInput) (string, error) {
	if in.PostLogoutRedirectURL == "" {
		return "/login", nil
	}
	return in.PostLogoutRedirectURL, nil
}

func (p *Provider) issue() (domainauth.TokenGrant, error) {
	now := p.now()
	access, err := p.sign(jwtlib.MapClaims{
		"iss":                p.cfg.Issuer,
		"sub":                p.cfg.UserID,
		"name":               p.cfg.Name,
		"email":              p.cfg.Email,
		"preferred_username": p.cfg.UserID,
		"realm_access":       map[string]any{"roles": p.cfg.Roles},
		"iat":                now.Unix(),
		"exp":                now.Add(p.cfg.AccessTTL).Unix(),
	})
	if err != nil {
		return domainauth.TokenGrant{}, err
	}
	id, err := p.sign(jwtlib.MapClaims{
		"iss": p.cfg.Issuer,
		"sub": p.cfg.UserID,
		"aud": "portal",
		"iat": now.Unix(),
		"exp": now.Add(p.cfg.AccessTTL).Unix(),
	})
	if err != nil {
		return domainauth.TokenGrant{}, err
	}
	rt, err := randomString(32)
	if err != nil {
		return domainauth.TokenGrant{}, fmt.Errorf("generate refresh token: %w", err)
	}

	p.mu.Lock()
	p.refresh[rt] = now.Add(p.cfg.RefreshTTL)
	p.mu.Unlock()

	return domainauth.TokenGrant{
		AccessToken:      access,
		IDToken:          id,
		RefreshToken:     rt,
		ExpiresIn:        int64(p.cfg.AccessTTL / time.Second),
		RefreshExpiresIn: int64(p.cfg.RefreshTTL / time.Second),
	}, nil
}

func (p *Provider) sign(claims jwtlib.MapClaims) (string, error) {
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
