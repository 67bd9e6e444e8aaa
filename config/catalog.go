package config

import "strings"

// CatalogConfig locates the downstream application catalog.
type CatalogConfig struct {
	// AppsFile is a YAML catalog. When empty the built-in catalog is used.
	AppsFile string `env:"APPS_FILE"`

	// URLs for the built-in catalog.
	VSSFrontendURL  string `env:"APP_URL_VSS_FE"         envDefault:"http://localhost:3000"`
	MicroAppDemoURL string `env:"APP_URL_MICRO_APP_DEMO" envDefault:"http://localhost:3001"`
	GTCGURL         string `env:"APP_URL_GTCG"           envDefault:"http://localhost:3004"`
	NHGSURL         string `env:"APP_URL_NHGS"           envDefault:"http://localhost:3005"`
}

// Sanitize trims configured values.
func (c *CatalogConfig) Sanitize() {
	c.AppsFile = strings.TrimSpace(c.AppsFile)
}
