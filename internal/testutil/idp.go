package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const fakeIdPKeyID = "fake-idp-key"

// FakeIdP is a minimal Keycloak stand-in: discovery, JWKS, token and
// end-session endpoints. Tokens are RS256 signed with a throwaway key.
type FakeIdP struct {
	Server   *httptest.Server
	ClientID string

	key *rsa.PrivateKey

	mu               sync.Mutex
	nonce            string
	roles            []string
	accessTTL        time.Duration
	refreshTTL       time.Duration
	refreshStatus    int
	refreshBody      string
	refreshDelay     time.Duration
	endSessionStatus int
	refreshCalls     int
	endSessionCalls  int
	lastEndSession   map[string]string
	issued           int
}

// NewFakeIdP starts a FakeIdP that is closed when the test ends.
func NewFakeIdP(t interface {
	TestingTB
	Cleanup(func())
}, clientID string) *FakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	f := &FakeIdP{
		ClientID:   clientID,
		key:        key,
		roles:      []string{DefaultRole},
		accessTTL:  5 * time.Minute,
		refreshTTL: 30 * time.Minute,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", f.discovery)
	mux.HandleFunc("GET /protocol/openid-connect/certs", f.jwks)
	mux.HandleFunc("POST /protocol/openid-connect/token", f.token)
	mux.HandleFunc("GET /protocol/openid-connect/logout", f.logout)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Issuer returns the issuer URL (the server root).
func (f *FakeIdP) Issuer() string { return f.Server.URL }

// TokenURL returns the token endpoint.
func (f *FakeIdP) TokenURL() string { return f.Server.URL + "/protocol/openid-connect/token" }

// EndSessionURL returns the end-session endpoint.
func (f *FakeIdP) EndSessionURL() string { return f.Server.URL + "/protocol/openid-connect/logout" }

// ExpectNonce sets the nonce embedded in the next ID tokens.
func (f *FakeIdP) ExpectNonce(nonce string) {
	f.mu.Lock()
	f.nonce = nonce
	f.mu.Unlock()
}

// SetRoles sets the realm roles placed in issued access tokens.
func (f *FakeIdP) SetRoles(roles ...string) {
	f.mu.Lock()
	f.roles = roles
	f.mu.Unlock()
}

// SetAccessTTL sets expires_in for issued access tokens.
func (f *FakeIdP) SetAccessTTL(d time.Duration) {
	f.mu.Lock()
	f.accessTTL = d
	f.mu.Unlock()
}

// FailRefresh makes refresh grants answer with status and body. Status 0 restores success.
func (f *FakeIdP) FailRefresh(status int, body string) {
	f.mu.Lock()
	f.refreshStatus = status
	f.refreshBody = body
	f.mu.Unlock()
}

// DelayRefresh makes refresh grants sleep before answering.
func (f *FakeIdP) DelayRefresh(d time.Duration) {
	f.mu.Lock()
	f.refreshDelay = d
	f.mu.Unlock()
}

// FailEndSession makes the end-session endpoint answer with status.
func (f *FakeIdP) FailEndSession(status int) {
	f.mu.Lock()
	f.endSessionStatus = status
	f.mu.Unlock()
}

// RefreshCalls returns the number of refresh grants received.
func (f *FakeIdP) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// EndSessionCalls returns the number of end-session requests received.
func (f *FakeIdP) EndSessionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endSessionCalls
}

// LastEndSessionQuery returns the query of the most recent end-session request.
func (f *FakeIdP) LastEndSessionQuery() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastEndSession
}

func (f *FakeIdP) discovery(w http.ResponseWriter, _ *http.Request) {
	base := f.Server.URL
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + "/protocol/openid-connect/auth",
		"token_endpoint":                        f.TokenURL(),
		"userinfo_endpoint":                     base + "/protocol/openid-connect/userinfo",
		"jwks_uri":                              base + "/protocol/openid-connect/certs",
		"end_session_endpoint":                  f.EndSessionURL(),
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (f *FakeIdP) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := f.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": fakeIdPKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (f *FakeIdP) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if r.PostForm.Get("client_id") != f.ClientID && !f.basicAuthMatches(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized_client"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		writeJSON(w, http.StatusOK, f.issue())
	case "refresh_token":
		f.mu.Lock()
		f.refreshCalls++
		status, body, delay := f.refreshStatus, f.refreshBody, f.refreshDelay
		f.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		writeJSON(w, http.StatusOK, f.issue())
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *FakeIdP) basicAuthMatches(r *http.Request) bool {
	user, _, ok := r.BasicAuth()
	return ok && user == f.ClientID
}

func (f *FakeIdP) logout(w http.ResponseWriter, r *http.Request) {
	q := map[string]string{}
	for k := range r.URL.Query() {
		q[k] = r.URL.Query().Get(k)
	}
	f.mu.Lock()
	f.endSessionCalls++
	f.lastEndSession = q
	status := f.endSessionStatus
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if target := q["post_logout_redirect_uri"]; target != "" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (f *FakeIdP) issue() map[string]any {
	f.mu.Lock()
	f.issued++
	n := f.issued
	nonce := f.nonce
	roles := append([]string(nil), f.roles...)
	accessTTL, refreshTTL := f.accessTTL, f.refreshTTL
	f.mu.Unlock()

	now := time.Now()
	access := f.sign(jwtlib.MapClaims{
		"iss":                f.Server.URL,
		"sub":                "user-1",
		"aud":                "account",
		"azp":                f.ClientID,
		"name":               "Test User",
		"email":              "test.user@example.com",
		"preferred_username": "test.user",
		"realm_access":       map[string]any{"roles": roles},
		"iat":                now.Unix(),
		"exp":                now.Add(accessTTL).Unix(),
		"jti":                fmt.Sprintf("at-%d", n),
	})
	id := f.sign(jwtlib.MapClaims{
		"iss":   f.Server.URL,
		"sub":   "user-1",
		"aud":   f.ClientID,
		"nonce": nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(accessTTL).Unix(),
	})
	return map[string]any{
		"access_token":       access,
		"id_token":           id,
		"refresh_token":      fmt.Sprintf("refresh-%d", n),
		"token_type":         "Bearer",
		"expires_in":         int64(accessTTL / time.Second),
		"refresh_expires_in": int64(refreshTTL / time.Second),
	}
}

func (f *FakeIdP) sign(claims jwtlib.MapClaims) string {
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	tok.Header["kid"] = fakeIdPKeyID
	s, err := tok.SignedString(f.key)
	if err != nil {
		panic(fmt.Sprintf("fake idp sign: %v", err))
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
