// Command portal-monitor watches a portal session from the command line and
// runs the client teardown when the portal reports it invalid.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vss/sso-portal/internal/bootstrap"
	"github.com/vss/sso-portal/internal/monitor"
)

func main() {
	logger := bootstrap.InitLogger(false)

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	fs := flag.NewFlagSet("portal-monitor", flag.ExitOnError)
	sessionID := fs.String("session", os.Getenv("MONITOR_SESSION_ID"), "portal session cookie value to watch")
	portalURL := fs.String("portal", cfg.Monitor.PortalURL, "portal base URL")
	interval := fs.Duration("interval", cfg.Monitor.Interval, "check interval")
	if parseErr := fs.Parse(os.Args[1:]); parseErr != nil {
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status on bad flags
	}

	monCfg := cfg.Monitor
	monCfg.PortalURL = *portalURL
	monCfg.Interval = max(*interval, time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = bootstrap.RunMonitor(ctx, bootstrap.MonitorRunConfig{
		Monitor:           monCfg,
		SessionCookieName: cfg.Session.CookieName,
		SessionID:         *sessionID,
		Out:               os.Stdout,
		Logger:            logger,
	})
	switch {
	case err == nil:
	case errors.Is(err, monitor.ErrSessionEnded):
		// The login URL has been printed; a distinct status lets scripts re-authenticate.
		os.Exit(3) //nolint:forbidigo // distinct exit status for an ended session
	default:
		fmt.Fprintln(os.Stderr, "portal-monitor:", err)
		os.Exit(1) //nolint:forbidigo // CLI must exit with failure status on errors
	}
}
