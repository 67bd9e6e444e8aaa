package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vss/sso-portal/internal/domain/catalog"
)

func TestDefaultApps(t *testing.T) {
	apps := DefaultApps(URLs{GTCG: "https://gtcg.example.gov.vn"})
	require.Len(t, apps, 4)

	c, err := NewStaticCatalog(apps)
	require.NoError(t, err)

	got, err := c.Get(context.Background(), "giay-to-co-gia")
	require.NoError(t, err)
	assert.Equal(t, "https://gtcg.example.gov.vn", got.URL)

	vss, err := c.Get(context.Background(), "vssfe")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", vss.URL)
	assert.Equal(t, []string{DefaultRole}, vss.Roles)
}

func TestStaticCatalog_ListIsCopy(t *testing.T) {
	c, err := NewStaticCatalog(DefaultApps(URLs{}))
	require.NoError(t, err)

	list, err := c.List(context.Background())
	require.NoError(t, err)
	list[0].Name = "changed"

	again, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "VSS", again[0].Name)
}

func TestStaticCatalog_GetUnknown(t *testing.T) {
	c, err := NewStaticCatalog(nil)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAppNotFound)
}

func TestNewStaticCatalog_Rejects(t *testing.T) {
	app := catalog.App{ID: "a", Name: "A", URL: "https://a.example", Roles: []string{"r"}}

	_, err := NewStaticCatalog([]catalog.App{app, app})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	bad := app
	bad.URL = ""
	_, err = NewStaticCatalog([]catalog.App{bad})
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apps.yaml")
	content := `apps:
  - id: hr
    name: Nhân sự
    url: https://hr.example.gov.vn
    roles: [hr-staff, admin]
    category: Quản lý
    is_new: true
  - id: audit
    name: Kiểm toán
    url: https://audit.example.gov.vn
    roles: [auditor]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)

	apps, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "hr", apps[0].ID)
	assert.True(t, apps[0].IsNew)
	assert.Equal(t, []string{"hr-staff", "admin"}, apps[0].Roles)

	visible := catalog.Filter(apps, []string{"auditor"})
	require.Len(t, visible, 1)
	assert.Equal(t, "audit", visible[0].ID)
}

func TestLoadFile_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apps:\n  - id: x\n    colour: red\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
