package catalog

// Package catalog provides AppCatalog implementations backed by static data or a YAML file.

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/vss/sso-portal/internal/domain/catalog"
	"github.com/vss/sso-portal/internal/ports"
	"gopkg.in/yaml.v3"
)

// DefaultRole gates every built-in application.
const DefaultRole = "default-roles-vss-dev"

// ErrAppNotFound is returned by Get for unknown IDs.
var ErrAppNotFound = catalog.ErrAppNotFound

var _ ports.AppCatalog = (*StaticCatalog)(nil)

// StaticCatalog serves a fixed list of applications.
type StaticCatalog struct {
	apps []catalog.App
	byID map[string]int
}

// NewStaticCatalog validates apps and builds a catalog. IDs must be unique.
func NewStaticCatalog(apps []catalog.App) (*StaticCatalog, error) {
	c := &StaticCatalog{
		apps: make([]catalog.App, 0, len(apps)),
		byID: make(map[string]int, len(apps)),
	}
	for _, a := range apps {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate app id %q", a.ID)
		}
		c.byID[a.ID] = len(c.apps)
		c.apps = append(c.apps, a)
	}
	return c, nil
}

type catalogFile struct {
	Apps []catalog.App `yaml:"apps"`
}

// LoadFile reads a YAML catalog of the form:
//
//	apps:
//	  - id: vssfe
//	    name: VSS
//	    url: https://vss.example.gov.vn
//	    roles: [default-roles-vss-dev]
func LoadFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if decodeErr := dec.Decode(&f); decodeErr != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", path, decodeErr)
	}
	return NewStaticCatalog(f.Apps)
}

// List implements ports.AppCatalog.
func (c *StaticCatalog) List(_ context.Context) ([]catalog.App, error) {
	out := make([]catalog.App, len(c.apps))
	copy(out, c.apps)
	return out, nil
}

// Get implements ports.AppCatalog.
func (c *StaticCatalog) Get(_ context.Context, id string) (catalog.App, error) {
	i, ok := c.byID[id]
	if !ok {
		return catalog.App{}, fmt.Errorf("%w: %s", ErrAppNotFound, id)
	}
	return c.apps[i], nil
}

// URLs overrides the built-in application URLs per deployment.
type URLs struct {
	VSSFE        string
	MicroAppDemo string
	GTCG         string
	NHGS         string
}

// DefaultApps returns the built-in applications with URLs falling back to local dev ports.
func DefaultApps(u URLs) []catalog.App {
	or := func(v, def string) string {
		if v != "" {
			return v
		}
		return def
	}
	return []catalog.App{
		{
			ID:              "vssfe",
			Name:            "VSS",
			Description:     "Hệ thống quản lý bảo hiểm xã hội",
			LongDescription: "Ứng dụng nghiệp vụ chính của hệ thống bảo hiểm xã hội.",
			URL:             or(u.VSSFE, "http://localhost:3000"),
			LogoURL:         "/static/logos/vss.svg",
			Roles:           []string{DefaultRole},
			Category:        "Chính",
			IsFeatured:      true,
			BackgroundColor: "#e6f4ea",
		},
		{
			ID:              "micro-app-demo",
			Name:            "Micro App Demo",
			Description:     "Ứng dụng minh họa đăng nhập một lần",
			LongDescription: "Ứng dụng mẫu dùng chung phiên đăng nhập với cổng SSO.",
			URL:             or(u.MicroAppDemo, "http://localhost:3001"),
			LogoURL:         "/static/logos/demo.svg",
			Roles:           []string{DefaultRole},
			Category:        "Demo",
			IsNew:           true,
			BackgroundColor: "#eef2ff",
		},
		{
			ID:              "giay-to-co-gia",
			Name:            "Giấy tờ có giá",
			Description:     "Quản lý giấy tờ có giá",
			LongDescription: "Theo dõi phát hành, lưu chuyển và tiêu hủy giấy tờ có giá.",
			URL:             or(u.GTCG, "http://localhost:3004"),
			LogoURL:         "/static/logos/gtcg.svg",
			Roles:           []string{DefaultRole},
			Category:        "Quản lý",
			BackgroundColor: "#fff7e6",
		},
		{
			ID:              "ngan-hang-giam-sat",
			Name:            "Ngân hàng giám sát",
			Description:     "Giám sát giao dịch ngân hàng",
			LongDescription: "Đối soát và giám sát giao dịch thu chi qua ngân hàng.",
			URL:             or(u.NHGS, "http://localhost:3005"),
			LogoURL:         "/static/logos/nhgs.svg",
			Roles:           []string{DefaultRole},
			Category:        "Giám sát",
			BackgroundColor: "#fdecea",
		},
	}
}
