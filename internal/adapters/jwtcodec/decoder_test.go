package jwtcodec

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/testutil"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestDecode_KeycloakClaims(t *testing.T) {
	d, err := New(Options{})
	require.NoError(t, err)

	iat := time.Unix(1_700_000_000, 0)
	tok := signed(t, jwtlib.MapClaims{
		"sub":                "f3c1",
		"name":               "Nguyen Van A",
		"given_name":         "Van A",
		"family_name":        "Nguyen",
		"email":              "a@vss.gov.vn",
		"preferred_username": "anv",
		"realm_access":       map[string]any{"roles": []string{"default-roles-vss-dev", "offline_access"}},
		"iat":                iat.Unix(),
		"exp":                iat.Add(5 * time.Minute).Unix(),
	})

	c, err := d.Decode(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "f3c1", c.Subject)
	assert.Equal(t, "Nguyen Van A", c.Name)
	assert.Equal(t, "anv", c.PreferredUsername)
	assert.Equal(t, "a@vss.gov.vn", c.Email)
	assert.Equal(t, []string{"default-roles-vss-dev", "offline_access"}, c.Roles)
	assert.Equal(t, iat.Unix(), c.IssuedAt)
	assert.Equal(t, iat.Add(5*time.Minute).Unix(), c.ExpiresAt)
}

func TestDecode_FixtureToken(t *testing.T) {
	d, err := New(Options{})
	require.NoError(t, err)

	tok := testutil.MintAccessToken(t, testutil.TokenClaims{Subject: "u-1", Name: "Fixture User", Email: "f@example.com"})
	c, err := d.Decode(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.Subject)
	assert.Equal(t, "Fixture User", c.DisplayName())
	assert.Equal(t, []string{testutil.DefaultRole}, c.Roles)
	assert.Equal(t, testutil.TestTime().Add(5*time.Minute).Unix(), c.ExpiresAt)
}

func TestDecode_MissingRolesYieldsEmpty(t *testing.T) {
	d, err := New(Options{})
	require.NoError(t, err)

	c, err := d.Decode(context.Background(), signed(t, jwtlib.MapClaims{"sub": "u"}))
	require.NoError(t, err)
	assert.Empty(t, c.Roles)
	assert.NotNil(t, c.Roles)
}

func TestDecode_CustomRolesPath(t *testing.T) {
	d, err := New(Options{RolesClaimPath: "resource_access.portal.roles"})
	require.NoError(t, err)

	tok := signed(t, jwtlib.MapClaims{
		"sub":             "u",
		"resource_access": map[string]any{"portal": map[string]any{"roles": []string{"viewer"}}},
	})
	c, err := d.Decode(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer"}, c.Roles)
}

func TestDecode_RolesNotArray(t *testing.T) {
	d, err := New(Options{})
	require.NoError(t, err)

	_, err = d.Decode(context.Background(), signed(t, jwtlib.MapClaims{"realm_access": map[string]any{"roles": "admin"}}))
	require.Error(t, err)
	assert.True(t, domainauth.IsMalformedToken(err))
}

func TestDecode_Malformed(t *testing.T) {
	d, err := New(Options{})
	require.NoError(t, err)

	notJSON := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))

	for name, tok := range map[string]string{
		"empty":         "",
		"one segment":   "abc",
		"two segments":  "abc.def",
		"four segments": "a.b.c.d",
		"non-json body": header + "." + notJSON + ".sig",
		"bad base64":    header + ".!!!.sig",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode(context.Background(), tok)
			require.Error(t, err)
			var mt *domainauth.MalformedTokenError
			assert.ErrorAs(t, err, &mt)
		})
	}
}

func TestNew_InvalidRolesPath(t *testing.T) {
	_, err := New(Options{RolesClaimPath: "realm_access.[["})
	require.Error(t, err)
}

type stubKeySet struct{ err error }

func (s stubKeySet) VerifySignature(_ context.Context, _ string) ([]byte, error) {
	return nil, s.err
}

func TestDecode_StrictModeVerifiesSignature(t *testing.T) {
	tok := signed(t, jwtlib.MapClaims{"sub": "u"})

	d, err := New(Options{KeySet: stubKeySet{err: errors.New("bad signature")}})
	require.NoError(t, err)
	_, err = d.Decode(context.Background(), tok)
	require.Error(t, err)
	assert.True(t, domainauth.IsMalformedToken(err))

	d, err = New(Options{KeySet: stubKeySet{}})
	require.NoError(t, err)
	c, err := d.Decode(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u", c.Subject)
}
