// Package testutil provides testing utilities and helpers for the SSO portal.
package testutil

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
)

// DefaultRole is the realm role granted by the test fixtures.
const DefaultRole = "default-roles-vss-dev"

// TokenClaims describes an access token minted by MintAccessToken.
type TokenClaims struct {
	Subject  string
	Name     string
	Email    string
	Roles    []string
	IssuedAt time.Time
	Expires  time.Time
}

// MintAccessToken builds a Keycloak-shaped HS256 access token. The signature
// is real but the portal does not verify it by default.
func MintAccessToken(t TestingTB, c TokenClaims) string {
	t.Helper()
	if c.IssuedAt.IsZero() {
		c.IssuedAt = TestTime()
	}
	if c.Expires.IsZero() {
		c.Expires = c.IssuedAt.Add(5 * time.Minute)
	}
	roles := c.Roles
	if roles == nil {
		roles = []string{DefaultRole}
	}
	claims := jwtlib.MapClaims{
		"sub":                c.Subject,
		"name":               c.Name,
		"email":              c.Email,
		"preferred_username": c.Subject,
		"realm_access":       map[string]any{"roles": roles},
		"iat":                c.IssuedAt.Unix(),
		"exp":                c.Expires.Unix(),
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("testutil-secret"))
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	return tok
}

// SessionBuilder provides a fluent interface for building session records for testing.
type SessionBuilder struct {
	s domainauth.Session
}

// NewSession creates a SessionBuilder with a FRESH session at TestTime.
func NewSession() *SessionBuilder {
	now := TestTime()
	return &SessionBuilder{
		s: domainauth.Session{
			ID:           "sess-1",
			AccessToken:  "access-token-1",
			IDToken:      "id-token-1",
			RefreshToken: "refresh-token-1",
			ExpiresAt:    now.Add(time.Hour).Unix(),
			Claims: domainauth.Claims{
				Subject: "user-1",
				Name:    "Test User",
				Email:   "test.user@example.com",
				Roles:   []string{DefaultRole},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// WithID sets the session ID.
func (b *SessionBuilder) WithID(id string) *SessionBuilder {
	b.s.ID = id
	return b
}

// ExpiringAt sets the access token expiry.
func (b *SessionBuilder) ExpiringAt(t time.Time) *SessionBuilder {
	b.s.ExpiresAt = t.Unix()
	return b
}

// WithAccessToken sets the access token.
func (b *SessionBuilder) WithAccessToken(tok string) *SessionBuilder {
	b.s.AccessToken = tok
	return b
}

// WithIDToken sets the ID token; empty simulates a provider that issued none.
func (b *SessionBuilder) WithIDToken(tok string) *SessionBuilder {
	b.s.IDToken = tok
	return b
}

// WithRefreshToken sets the refresh token.
func (b *SessionBuilder) WithRefreshToken(tok string) *SessionBuilder {
	b.s.RefreshToken = tok
	return b
}

// WithRefreshExpiresAt sets the refresh token expiry.
func (b *SessionBuilder) WithRefreshExpiresAt(t time.Time) *SessionBuilder {
	b.s.RefreshExpiresAt = t.Unix()
	return b
}

// WithError sets the error tag.
func (b *SessionBuilder) WithError(k domainauth.ErrorKind) *SessionBuilder {
	b.s.Error = k
	return b
}

// WithRoles sets the realm roles on the decoded claims.
func (b *SessionBuilder) WithRoles(roles ...string) *SessionBuilder {
	b.s.Claims.Roles = roles
	return b
}

// Build returns the session.
func (b *SessionBuilder) Build() domainauth.Session {
	return b.s
}
