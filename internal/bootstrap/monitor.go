package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/vss/sso-portal/config"
	"github.com/vss/sso-portal/internal/monitor"
)

// MonitorRunConfig configures a command-line token monitor.
type MonitorRunConfig struct {
	Monitor config.MonitorConfig
	// SessionCookieName must match the portal's SESSION_COOKIE_NAME.
	SessionCookieName string
	// SessionID is the portal_session cookie value to watch.
	SessionID string
	// Out receives the login URL after a teardown (default stdout).
	Out    io.Writer
	Logger *slog.Logger
}

// RunMonitor watches one portal session until ctx is cancelled or the portal
// reports it invalid, in which case monitor.ErrSessionEnded is returned after
// the teardown has run.
func RunMonitor(ctx context.Context, cfg MonitorRunConfig) error {
	if cfg.SessionID == "" {
		return errors.New("session ID is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	client, err := monitor.NewClient(monitor.ClientOptions{
		BaseURL:           cfg.Monitor.PortalURL,
		Timeout:           cfg.Monitor.RequestTimeout,
		SessionCookieName: cfg.SessionCookieName,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	if err = client.SetSession(cfg.SessionID); err != nil {
		return err
	}

	m, err := monitor.New(monitor.Options{
		Boundary:    client,
		Local:       client,
		Storage:     monitor.NewMemoryStorage(),
		Navigator:   monitor.WriterNavigator{Base: client.BaseURL(), Out: out},
		Interval:    cfg.Monitor.Interval,
		CallTimeout: cfg.Monitor.RequestTimeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	err = m.Run(ctx)
	m.Wait()
	return err
}
