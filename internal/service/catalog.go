package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vss/sso-portal/internal/domain/catalog"
	"github.com/vss/sso-portal/internal/ports"
)

// CatalogServiceOptions groups dependencies for CatalogService.
type CatalogServiceOptions struct {
	Catalog ports.AppCatalog // Required
	Logger  *slog.Logger     // Optional
}

// CatalogService filters the application catalog by the caller's roles.
type CatalogService struct {
	catalog ports.AppCatalog
	logger  *slog.Logger
}

// NewCatalogService constructs a CatalogService. It panics when Catalog is nil.
func NewCatalogService(opts CatalogServiceOptions) *CatalogService {
	if opts.Catalog == nil {
		panic("CatalogService: Catalog is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{catalog: opts.Catalog, logger: logger.With("component", "catalog_service")}
}

// VisibleApps returns the apps visible to a user holding roles.
func (s *CatalogService) VisibleApps(ctx context.Context, roles []string) ([]catalog.App, error) {
	apps, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	return catalog.Filter(apps, roles), nil
}

// LaunchTarget resolves the URL to send the user to for app id.
// It returns catalog.ErrAppForbidden when roles do not grant access.
func (s *CatalogService) LaunchTarget(ctx context.Context, id string, roles []string) (catalog.App, error) {
	app, err := s.catalog.Get(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrAppNotFound) {
			return catalog.App{}, err
		}
		return catalog.App{}, fmt.Errorf("get app: %w", err)
	}
	if !app.VisibleTo(roles) {
		s.logger.InfoContext(ctx, "app launch denied", "app_id", id)
		return catalog.App{}, fmt.Errorf("%w: %s", catalog.ErrAppForbidden, id)
	}
	return app, nil
}
