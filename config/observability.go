package config

import (
	"strings"
	"time"
)

// ObservabilityConfig groups configuration that controls metrics.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to external sinks such as StatsD.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"ssoportal"`
	// FlushInterval batches metrics into fewer datagrams; zero sends each one immediately.
	FlushInterval time.Duration `env:"OBSERVABILITY_METRICS_FLUSH_INTERVAL" envDefault:"1s"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	if c.FlushInterval < 0 {
		c.FlushInterval = 0
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}
