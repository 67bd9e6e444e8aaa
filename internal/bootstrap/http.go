package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vss/sso-portal/config"
	httpx "github.com/vss/sso-portal/internal/http"
)

const defaultShutdownTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives the listener error if the server stops unexpectedly (optional).
	ErrCh chan<- error
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := httpx.NewRouter(buildRouterServices(appCfg, cfg.Services, logger))
	return startServer(logger, handler, appCfg.HTTP.Addr, cfg.ErrCh)
}

// buildRouterServices maps configuration and services onto the router's inputs.
func buildRouterServices(appCfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	rs := httpx.RouterServices{
		Cookies:         cookieConfig(appCfg),
		AllowedOrigins:  appCfg.HTTP.AllowedOrigins,
		MonitorInterval: appCfg.Monitor.Interval,
		LoginRateLimit: httpx.RateLimitConfig{
			RequestsPerWindow: appCfg.HTTP.LoginRatePerMinute,
			Window:            time.Minute,
			Burst:             appCfg.HTTP.LoginRateBurst,
		},
		Health: services.Sessions.Health,
		IsDev:  appCfg.IsDev,
		Logger: logger,
	}
	// Nil pointers must not become non-nil interfaces.
	if services.Auth != nil {
		rs.Auth = services.Auth
	}
	if services.Catalog != nil {
		rs.Catalog = services.Catalog
	}
	return rs
}

func cookieConfig(appCfg *config.AppConfig) httpx.CookieConfig {
	return httpx.CookieConfig{
		Domain:        appCfg.HTTP.CookieDomain,
		Secure:        appCfg.SecureCookies(),
		SessionName:   appCfg.Session.CookieName,
		SessionMaxAge: appCfg.Session.TTL,
		AuthName:      appCfg.Session.AuthCookieName,
		AuthMaxAge:    appCfg.Session.AuthCookieMaxAge,
		AuthSameSite:  appCfg.Session.SameSite(),
	}
}

func startServer(logger *slog.Logger, handler http.Handler, addr string, errCh chan<- error) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Covers a callback whose code exchange and refresh both hit the provider.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if errCh != nil {
				select {
				case errCh <- fmt.Errorf("http server: %w", err):
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
