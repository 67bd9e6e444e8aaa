package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrorKind classifies why a session can no longer be refreshed.
// The string form is carried in redirects (?error=<kind>) and JSON bodies.
type ErrorKind string

const (
	ErrorNone               ErrorKind = ""
	ErrRefreshTokenInactive ErrorKind = "RefreshTokenInactive"
	ErrRefreshTokenExpired  ErrorKind = "RefreshTokenExpired"
	ErrInvalidRefreshToken  ErrorKind = "InvalidRefreshToken"
	ErrRefreshTokenNetwork  ErrorKind = "RefreshTokenNetworkError"
	ErrRefreshAccessToken   ErrorKind = "RefreshAccessTokenError"
	ErrTokenErrorException  ErrorKind = "TokenErrorException"
)

var knownErrorKinds = []ErrorKind{
	ErrRefreshTokenInactive,
	ErrRefreshTokenExpired,
	ErrInvalidRefreshToken,
	ErrRefreshTokenNetwork,
	ErrRefreshAccessToken,
	ErrTokenErrorException,
}

// Valid reports whether k is empty or one of the known kinds.
func (k ErrorKind) Valid() bool {
	return k == ErrorNone || slices.Contains(knownErrorKinds, k)
}

// Terminal reports whether a session carrying k must re-authenticate.
func (k ErrorKind) Terminal() bool {
	return k != ErrorNone && slices.Contains(knownErrorKinds, k)
}

// ParseErrorKind maps a query/JSON value to a known kind. Unknown values
// fall back to RefreshTokenExpired, which the login page treats as a
// generic "session expired" notice.
func ParseErrorKind(s string) ErrorKind {
	k := ErrorKind(strings.TrimSpace(s))
	if k == ErrorNone {
		return ErrorNone
	}
	if k.Terminal() {
		return k
	}
	return ErrRefreshTokenExpired
}

// Claims is the decoded subset of the access token the portal relies on.
type Claims struct {
	Subject           string   `json:"sub"`
	Name              string   `json:"name,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	GivenName         string   `json:"given_name,omitempty"`
	FamilyName        string   `json:"family_name,omitempty"`
	Email             string   `json:"email,omitempty"`
	Roles             []string `json:"roles"`
	IssuedAt          int64    `json:"iat,omitempty"`
	ExpiresAt         int64    `json:"exp,omitempty"`
}

// DisplayName returns the best human-readable name available.
func (c Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	full := strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	if full != "" {
		return full
	}
	return c.Subject
}

// HasAnyRole reports whether the claims carry at least one of roles.
func (c Claims) HasAnyRole(roles []string) bool {
	for _, r := range roles {
		if slices.Contains(c.Roles, r) {
			return true
		}
	}
	return false
}

// TokenGrant is a token endpoint response (login exchange or refresh).
type TokenGrant struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds as reported by the provider.
	ExpiresIn int64
	// RefreshExpiresIn is the refresh token lifetime in seconds; 0 when the provider omits it.
	RefreshExpiresIn int64
}

// Session is the server-side record we persist for an authenticated user.
// ID is an opaque session identifier carried in the session cookie.
type Session struct {
	ID           string `json:"id"`
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresAt is the access token expiry in epoch seconds.
	ExpiresAt int64 `json:"expires_at"`
	// RefreshExpiresAt is the refresh token expiry in epoch seconds, 0 if unknown.
	RefreshExpiresAt int64     `json:"refresh_expires_at,omitempty"`
	Claims           Claims    `json:"claims"`
	Error            ErrorKind `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Expiry returns ExpiresAt as a time.Time.
func (s Session) Expiry() time.Time { return time.Unix(s.ExpiresAt, 0) }

// RefreshExpired reports whether the refresh token lifetime is known and has elapsed.
func (s Session) RefreshExpired(now time.Time) bool {
	return s.RefreshExpiresAt > 0 && now.Unix() >= s.RefreshExpiresAt
}

// Validate checks the fixed-schema invariants of a persisted record.
func (s Session) Validate() error {
	if s.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	if s.AccessToken == "" {
		return fmt.Errorf("session %s has no access token", s.ID)
	}
	if !s.Error.Valid() {
		return fmt.Errorf("session %s has unknown error kind %q", s.ID, s.Error)
	}
	return nil
}

// MarshalSession encodes a session record for persistence.
func MarshalSession(s Session) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// UnmarshalSession decodes a persisted record, rejecting unknown fields.
func UnmarshalSession(data []byte) (Session, error) {
	var s Session
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}
