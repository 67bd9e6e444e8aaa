package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vss/sso-portal/internal/domain/catalog"
	mockauth "github.com/vss/sso-portal/internal/mocks/auth"
)

func testApps() []catalog.App {
	return []catalog.App{
		{ID: "vss-fe", Name: "VSS", URL: "http://localhost:3000", Roles: []string{"default-roles-vss-dev"}},
		{ID: "admin", Name: "Admin", URL: "http://localhost:3009", Roles: []string{"portal-admin"}},
	}
}

func TestCatalogService_VisibleApps(t *testing.T) {
	svc := NewCatalogService(CatalogServiceOptions{Catalog: &mockauth.StaticCatalog{Apps: testApps()}})

	apps, err := svc.VisibleApps(context.Background(), []string{"default-roles-vss-dev"})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "vss-fe", apps[0].ID)

	apps, err = svc.VisibleApps(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestCatalogService_VisibleApps_Error(t *testing.T) {
	svc := NewCatalogService(CatalogServiceOptions{Catalog: &mockauth.StaticCatalog{Err: errors.New("boom")}})

	_, err := svc.VisibleApps(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list apps")
}

func TestCatalogService_LaunchTarget(t *testing.T) {
	svc := NewCatalogService(CatalogServiceOptions{Catalog: &mockauth.StaticCatalog{Apps: testApps()}})
	ctx := context.Background()

	app, err := svc.LaunchTarget(ctx, "vss-fe", []string{"default-roles-vss-dev"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", app.URL)

	_, err = svc.LaunchTarget(ctx, "admin", []string{"default-roles-vss-dev"})
	require.ErrorIs(t, err, catalog.ErrAppForbidden)

	_, err = svc.LaunchTarget(ctx, "nope", []string{"default-roles-vss-dev"})
	require.ErrorIs(t, err, catalog.ErrAppNotFound)
}

func TestNewCatalogService_RequiresCatalog(t *testing.T) {
	assert.Panics(t, func() { NewCatalogService(CatalogServiceOptions{}) })
}
