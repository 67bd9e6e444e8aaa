package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vss/sso-portal/config"
	catalogadapter "github.com/vss/sso-portal/internal/adapters/catalog"
	"github.com/vss/sso-portal/internal/adapters/memory"
	redisadapter "github.com/vss/sso-portal/internal/adapters/redis"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/observability/metrics"
	"github.com/vss/sso-portal/internal/observability/statsd"
	"github.com/vss/sso-portal/internal/ports"
	"github.com/vss/sso-portal/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth          *service.AuthService
	Catalog       *service.CatalogService
	Sessions      SessionBackend
	Observability ObservabilityContainer
}

// Close releases the session backend and the metrics sink.
func (c ServiceContainer) Close() error {
	var errs []error
	if c.Sessions.Close != nil {
		if err := c.Sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
	}
	if c.Observability.MetricsSink != nil {
		if err := c.Observability.MetricsSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink    *statsd.Client
	MetricsConfig  config.ObservabilityMetricsConfig
	SessionMetrics *metrics.SessionMetrics
}

// sessionMetrics returns the metrics port, or nil when metrics are off so the
// service falls back to its no-op recorder.
func (o ObservabilityContainer) sessionMetrics() ports.SessionMetrics {
	if o.SessionMetrics == nil {
		return nil
	}
	return o.SessionMetrics
}

// SessionBackend is the configured session store plus its lifecycle hooks.
type SessionBackend struct {
	Store  ports.SessionStore
	Kind   string
	Health func(ctx context.Context) error
	Close  func() error
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger

	// RedisClient overrides the connection built from Config.Redis.
	RedisClient redis.UniversalClient
}

// buildObservability configures the StatsD sink and session metrics.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	out := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	if !cfg.Metrics.IsEnabled() {
		return out
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled:       true,
		Address:       cfg.Metrics.StatsdAddress,
		Prefix:        cfg.Metrics.Prefix,
		GlobalTags:    map[string]string{"service": "sso-portal"},
		FlushInterval: cfg.Metrics.FlushInterval,
		Logger:        obsLogger,
	})
	if err != nil {
		obsLogger.Error("failed to initialise statsd client", "error", err)
		return out
	}
	out.MetricsSink = client
	out.SessionMetrics = metrics.NewSessionMetrics(client)
	return out
}

func retentionFor(cfg config.SessionConfig) domainauth.Retention {
	return domainauth.Retention{Fallback: cfg.TTL, Min: cfg.MinTTL}
}

// buildSessionStore connects the configured session backend.
func buildSessionStore(ctx context.Context, deps ServiceDeps) (SessionBackend, error) {
	cfg := deps.Config
	retention := retentionFor(cfg.Session)

	if cfg.Session.Store == "memory" {
		store := memory.NewSessionStore(retention)
		deps.Logger.Warn("using in-memory session store; sessions are lost on restart and not shared between replicas")
		return SessionBackend{
			Store:  store,
			Kind:   "memory",
			Health: func(context.Context) error { return nil },
			Close:  store.Close,
		}, nil
	}

	client := deps.RedisClient
	closeClient := false
	if client == nil {
		var err error
		client, err = ConnectRedis(ctx, RedisOptions{Config: cfg.Redis, Logger: deps.Logger})
		if err != nil {
			return SessionBackend{}, fmt.Errorf("connect redis: %w", err)
		}
		closeClient = true
	}

	store := redisadapter.NewSessionStoreWithOptions(client, redisadapter.SessionStoreOptions{
		Prefix:    cfg.Redis.KeyPrefix,
		Retention: retention,
	})
	backend := SessionBackend{
		Store:  store,
		Kind:   "redis",
		Health: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		Close:  func() error { return nil },
	}
	if closeClient {
		backend.Close = client.Close
	}
	return backend, nil
}

// buildCatalog loads the application catalog from APPS_FILE or the built-in list.
func buildCatalog(cfg config.CatalogConfig, logger *slog.Logger) (*service.CatalogService, error) {
	var (
		cat *catalogadapter.StaticCatalog
		err error
	)
	if cfg.AppsFile != "" {
		cat, err = catalogadapter.LoadFile(cfg.AppsFile)
	} else {
		cat, err = catalogadapter.NewStaticCatalog(catalogadapter.DefaultApps(catalogadapter.URLs{
			VSSFE:        cfg.VSSFrontendURL,
			MicroAppDemo: cfg.MicroAppDemoURL,
			GTCG:         cfg.GTCGURL,
			NHGS:         cfg.NHGSURL,
		}))
	}
	if err != nil {
		return nil, fmt.Errorf("load application catalog: %w", err)
	}

	apps, _ := cat.List(context.Background())
	logger.Info("application catalog loaded", "apps", len(apps), "file", cfg.AppsFile)

	return service.NewCatalogService(service.CatalogServiceOptions{Catalog: cat, Logger: logger}), nil
}

// NewServices builds every service the portal needs. On error, anything
// already opened is released.
func NewServices(ctx context.Context, deps ServiceDeps) (ServiceContainer, error) {
	if deps.Config == nil {
		return ServiceContainer{}, errors.New("config is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	container := ServiceContainer{Observability: buildObservability(deps.Logger, deps.Config.Observability)}

	sessions, err := buildSessionStore(ctx, deps)
	if err != nil {
		return ServiceContainer{}, errors.Join(err, container.Close())
	}
	container.Sessions = sessions

	container.Catalog, err = buildCatalog(deps.Config.Catalog, deps.Logger)
	if err != nil {
		return ServiceContainer{}, errors.Join(err, container.Close())
	}

	container.Auth, err = BuildAuthService(ctx, AuthConfig{
		App:      deps.Config,
		Sessions: sessions.Store,
		Metrics:  container.Observability.sessionMetrics(),
		Logger:   deps.Logger,
	})
	if err != nil {
		return ServiceContainer{}, errors.Join(err, container.Close())
	}

	return container, nil
}

// ServiceOrchestrationConfig contains everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts the HTTP server and blocks until a shutdown
// signal arrives, ctx is cancelled, or the server fails.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	errCh := make(chan error, 1)
	server := StartHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
		ErrCh:    errCh,
	})

	return waitForShutdown(ctx, shutdownConfig{
		errCh:      errCh,
		httpServer: server,
		timeout:    cfg.Config.HTTP.ShutdownTimeout,
		logger:     logger,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	errCh      <-chan error
	httpServer *http.Server
	timeout    time.Duration
	logger     *slog.Logger
}

// waitForShutdown waits for a shutdown signal or server error.
func waitForShutdown(ctx context.Context, cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		return gracefulStop(ctx, cfg)
	case <-ctx.Done():
		cfg.logger.Info("shutting down services...", "reason", ctx.Err())
		return gracefulStop(ctx, cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		if stopErr := gracefulStop(ctx, cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop drains the HTTP server. The shutdown deadline is not tied to
// ctx, which may already be cancelled.
func gracefulStop(ctx context.Context, cfg shutdownConfig) error {
	return ShutdownHTTPServer(ShutdownConfig{
		Context: context.WithoutCancel(ctx),
		Server:  cfg.httpServer,
		Timeout: cfg.timeout,
		Logger:  cfg.logger,
	})
}
