package oidc

// Package oidc provides the Keycloak/OIDC adapter: the authorization code flow,
// refresh grant and RP-initiated logout.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/ports"
	"golang.org/x/oauth2"
)

// DefaultRefreshTimeout bounds a single refresh round trip.
const DefaultRefreshTimeout = 8 * time.Second

var (
	_ ports.AuthProvider = (*Provider)(nil)
	_ ports.TokenClient  = (*Provider)(nil)
)

// Provider implements ports.AuthProvider and ports.TokenClient using OIDC/OAuth2.
type Provider struct {
	config        *oauth2.Config
	refreshConfig *oauth2.Config
	endSessionURL string
	clientID      string

	httpClient     *http.Client
	refreshTimeout time.Duration
	logger         *slog.Logger

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	// IssuerURL is the realm issuer; a trailing discovery path is tolerated.
	IssuerURL string
	// TokenURL overrides the discovered token endpoint for refresh grants.
	TokenURL string
	// EndSessionURL overrides the discovered end_session_endpoint.
	EndSessionURL  string
	RefreshTimeout time.Duration
	HTTPClient     *http.Client // Optional, defaults to a client with a 30s timeout
	Logger         *slog.Logger
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
}

// NewProvider performs discovery against the issuer and returns a ready Provider.
// ctx only needs to live for discovery; key fetching uses a detached context.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	refreshTimeout := config.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		clientID:       config.ClientID,
		httpClient:     httpClient,
		refreshTimeout: refreshTimeout,
		logger:         logger.With("component", "oidc"),
	}

	// Single discovery fetch; the remote key set keeps this context for its lifetime.
	providerCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(providerCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	var doc DiscoveryDocument
	if claimsErr := op.Claims(&doc); claimsErr != nil {
		return nil, fmt.Errorf("decode discovery claims: %w", claimsErr)
	}
	p.endSessionURL = firstNonEmpty(config.EndSessionURL, doc.EndSessionEndpoint)
	p.logger.DebugContext(ctx, "oidc discovery complete",
		"issuer", doc.Issuer,
		"token_endpoint", doc.TokenEndpoint,
		"jwks_uri", doc.JwksURI,
		"end_session_endpoint", p.endSessionURL)

	endpoint := op.Endpoint()
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     endpoint,
	}

	// Refresh posts client credentials in the form body, which Keycloak accepts
	// for confidential clients and which avoids the auth-style detection on failures.
	refreshEndpoint := endpoint
	refreshEndpoint.AuthStyle = oauth2.AuthStyleInParams
	if config.TokenURL != "" {
		refreshEndpoint.TokenURL = config.TokenURL
	}
	rc := *p.config
	rc.Endpoint = refreshEndpoint
	p.refreshConfig = &rc

	return p, nil
}

// Begin implements ports.AuthProvider.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}

	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri stays the configured RedirectURL; the provider matches it exactly.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
	)

	return authURL, state, nonce, nil
}

// Exchange implements ports.AuthProvider. The ID token signature and nonce are verified.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.TokenGrant, error) {
	if in.Code == "" {
		return domainauth.TokenGrant{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.TokenGrant{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.TokenGrant{}, errors.New("nonce is required")
	}

	token, err := p.config.Exchange(p.clientContext(ctx), in.Code)
	if err != nil {
		return domainauth.TokenGrant{}, fmt.Errorf("exchange code for token: %w", err)
	}

	rawID, err := getIDTokenFromToken(token)
	if err != nil {
		return domainauth.TokenGrant{}, err
	}
	idTok, err := p.verifier.Verify(p.clientContext(ctx), rawID)
	if err != nil {
		return domainauth.TokenGrant{}, fmt.Errorf("verify id_token: %w", err)
	}
	var claims struct {
		Nonce string `json:"nonce"`
	}
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.TokenGrant{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if claims.Nonce != in.Nonce {
		return domainauth.TokenGrant{}, errors.New("invalid nonce")
	}

	return grantFromToken(token, time.Now()), nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
