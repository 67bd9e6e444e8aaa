// Package jwtcodec decodes access tokens into portal claims.
//
// Decoding does not verify signatures unless a key set is configured; the
// tokens it sees were obtained directly from the provider over TLS.
package jwtcodec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jmespath-community/go-jmespath"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/ports"
)

// DefaultRolesClaimPath locates Keycloak realm roles in the token payload.
const DefaultRolesClaimPath = "realm_access.roles"

var _ ports.TokenDecoder = (*Decoder)(nil)

// Options configures a Decoder.
type Options struct {
	// RolesClaimPath is a JMESPath expression evaluated against the token payload.
	RolesClaimPath string
	// KeySet, when set, makes Decode verify the token signature first.
	KeySet gooidc.KeySet
}

// Decoder implements ports.TokenDecoder.
type Decoder struct {
	parser    *jwtlib.Parser
	rolesPath string
	keys      gooidc.KeySet
}

// New constructs a Decoder, validating the roles expression.
func New(opts Options) (*Decoder, error) {
	path := strings.TrimSpace(opts.RolesClaimPath)
	if path == "" {
		path = DefaultRolesClaimPath
	}
	if _, err := jmespath.Compile(path); err != nil {
		return nil, fmt.Errorf("compile roles claim path %q: %w", path, err)
	}
	return &Decoder{
		parser:    jwtlib.NewParser(),
		rolesPath: path,
		keys:      opts.KeySet,
	}, nil
}

// NewRemoteKeySetVerifier returns a KeySet that fetches signing keys from jwksURL.
func NewRemoteKeySetVerifier(ctx context.Context, jwksURL string) gooidc.KeySet {
	return gooidc.NewRemoteKeySet(ctx, jwksURL)
}

// Decode parses token and maps its payload into domain claims.
func (d *Decoder) Decode(ctx context.Context, token string) (domainauth.Claims, error) {
	if token == "" {
		return domainauth.Claims{}, &domainauth.MalformedTokenError{Reason: "empty token"}
	}
	if strings.Count(token, ".") != 2 {
		return domainauth.Claims{}, &domainauth.MalformedTokenError{Reason: "token must have three segments"}
	}

	if d.keys != nil {
		if _, err := d.keys.VerifySignature(ctx, token); err != nil {
			return domainauth.Claims{}, &domainauth.MalformedTokenError{Reason: "signature verification failed", Err: err}
		}
	}

	mc := jwtlib.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(token, mc); err != nil {
		return domainauth.Claims{}, &domainauth.MalformedTokenError{Reason: "payload is not a JSON object", Err: err}
	}

	roles, err := d.roles(mc)
	if err != nil {
		return domainauth.Claims{}, &domainauth.MalformedTokenError{Reason: "roles claim", Err: err}
	}

	c := domainauth.Claims{
		Subject:           stringClaim(mc, "sub"),
		Name:              stringClaim(mc, "name"),
		PreferredUsername: stringClaim(mc, "preferred_username"),
		GivenName:         stringClaim(mc, "given_name"),
		FamilyName:        stringClaim(mc, "family_name"),
		Email:             stringClaim(mc, "email"),
		Roles:             roles,
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Unix()
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Unix()
	}
	return c, nil
}

func (d *Decoder) roles(mc jwtlib.MapClaims) ([]string, error) {
	res, err := jmespath.Search(d.rolesPath, map[string]any(mc))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return []string{}, nil
	}
	items, ok := res.([]any)
	if !ok {
		return nil, errors.New("roles claim is not an array")
	}
	roles := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			roles = append(roles, s)
		}
	}
	return roles, nil
}

func stringClaim(mc jwtlib.MapClaims, key string) string {
	if v, ok := mc[key].(string); ok {
		return v
	}
	return ""
}
