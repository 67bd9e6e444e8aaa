package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vss/sso-portal/config"
	"github.com/vss/sso-portal/internal/adapters/devauth"
	"github.com/vss/sso-portal/internal/adapters/jwtcodec"
	"github.com/vss/sso-portal/internal/adapters/oidc"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/ports"
	"github.com/vss/sso-portal/internal/service"
)

// AuthConfig contains configuration for the auth service.
type AuthConfig struct {
	App      *config.AppConfig
	Sessions ports.SessionStore
	Metrics  ports.SessionMetrics // optional
	Logger   *slog.Logger
}

// identityProvider is what both auth modes supply.
type identityProvider interface {
	ports.AuthProvider
	ports.TokenClient
}

// BuildAuthService creates the auth service for the configured auth mode.
func BuildAuthService(ctx context.Context, cfg AuthConfig) (*service.AuthService, error) {
	if cfg.App == nil {
		return nil, errors.New("app config is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		prov identityProvider
		err  error
	)
	switch cfg.App.Auth.Mode {
	case config.AuthModeMock:
		prov, err = buildDevAuthProvider(cfg.App.Auth.DevAuth)
	case config.AuthModeOAuth:
		prov, err = buildOIDCProvider(ctx, cfg.App.Auth.OAuth, logger)
	default:
		err = fmt.Errorf("unsupported auth mode %q", cfg.App.Auth.Mode)
	}
	if err != nil {
		return nil, err
	}

	decoder, err := buildDecoder(ctx, cfg.App)
	if err != nil {
		return nil, err
	}

	logger.Info("auth service configured",
		"mode", cfg.App.Auth.Mode,
		"refresh_threshold", cfg.App.Session.RefreshThreshold,
	)

	return service.NewAuthService(service.AuthServiceOptions{
		Provider:              prov,
		Tokens:                prov,
		Decoder:               decoder,
		Sessions:              cfg.Sessions,
		Metrics:               cfg.Metrics,
		Policy:                domainauth.Policy{RefreshThreshold: cfg.App.Session.RefreshThreshold},
		PostLogoutRedirectURL: cfg.App.PostLogoutRedirectURL(),
		FlightTimeout:         cfg.App.Session.RefreshFlightTimeout,
		AllowExpiredBearer:    cfg.App.IsDev,
		Logger:                logger,
	}), nil
}

func buildDevAuthProvider(dev config.DevAuthConfig) (*devauth.Provider, error) {
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:     dev.UserID,
		Name:       dev.Name,
		Email:      dev.Email,
		Roles:      dev.Roles,
		AccessTTL:  dev.AccessTTL,
		RefreshTTL: dev.RefreshTTL,
		SigningKey: dev.SigningKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create dev auth provider: %w", err)
	}
	return prov, nil
}

func buildOIDCProvider(ctx context.Context, oauth config.OAuthConfig, logger *slog.Logger) (*oidc.Provider, error) {
	prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
		ClientID:       oauth.ClientID,
		ClientSecret:   oauth.ClientSecret,
		RedirectURL:    oauth.RedirectURL,
		Scope:          oauth.Scope,
		IssuerURL:      oauth.IssuerURL,
		TokenURL:       oauth.TokenURL,
		EndSessionURL:  oauth.EndSessionURL,
		RefreshTimeout: oauth.RefreshTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}
	return prov, nil
}

// buildDecoder verifies signatures only in oauth mode with VERIFY_SIGNATURE set;
// dev tokens are signed with a local key no JWKS publishes.
func buildDecoder(ctx context.Context, app *config.AppConfig) (*jwtcodec.Decoder, error) {
	opts := jwtcodec.Options{RolesClaimPath: app.Auth.OAuth.RolesClaim}
	if app.Auth.Mode == config.AuthModeOAuth && app.Auth.OAuth.VerifySignature {
		jwks := app.Auth.OAuth.JWKSLocation()
		if jwks == "" {
			return nil, errors.New("signature verification requires OAUTH_ISSUER_URL or OAUTH_JWKS_URL")
		}
		opts.KeySet = jwtcodec.NewRemoteKeySetVerifier(ctx, jwks)
	}
	dec, err := jwtcodec.New(opts)
	if err != nil {
		return nil, fmt.Errorf("create token decoder: %w", err)
	}
	return dec, nil
}
