package config

import (
	"strings"
	"time"
)

const minMonitorInterval = 5 * time.Second

// MonitorConfig configures the client token monitor.
type MonitorConfig struct {
	// PortalURL is the portal the monitor validates against.
	PortalURL string `env:"MONITOR_PORTAL_URL" envDefault:"http://localhost:8080"`

	// Interval between validate-session checks.
	Interval time.Duration `env:"MONITOR_INTERVAL" envDefault:"25s"`

	// RequestTimeout bounds each check and teardown call.
	RequestTimeout time.Duration `env:"MONITOR_REQUEST_TIMEOUT" envDefault:"10s"`
}

// Sanitize clamps the interval to a sane floor.
func (m *MonitorConfig) Sanitize() {
	m.PortalURL = strings.TrimRight(strings.TrimSpace(m.PortalURL), "/")
	if m.Interval < minMonitorInterval {
		m.Interval = minMonitorInterval
	}
	if m.RequestTimeout <= 0 {
		m.RequestTimeout = 10 * time.Second
	}
}
