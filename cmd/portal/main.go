package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vss/sso-portal/config"
	"github.com/vss/sso-portal/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger(false)
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.IsDev {
		logger = bootstrap.InitLogger(true)
	}

	logStartupInfo(ctx, logger, &cfg)

	if err = bootstrap.ValidateConfig(&cfg); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(ctx, bootstrap.ServiceDeps{
		Config: &cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := services.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close services failed", "error", cerr)
		}
	}()

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting sso portal",
		"dev", cfg.IsDev,
		"auth_mode", cfg.Auth.Mode,
		"issuer", cfg.Auth.OAuth.IssuerURL,
		"session_store", cfg.Session.Store,
		"base_url", cfg.HTTP.BaseURL,
		"allowed_origins", cfg.HTTP.AllowedOrigins)
}
