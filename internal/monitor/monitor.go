package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultInterval is the check period.
	DefaultInterval = 25 * time.Second

	// fallbackKind is reported to the login page when the portal gave no kind.
	fallbackKind = "RefreshTokenExpired"
)

// ErrSessionEnded is returned by Run after a teardown has completed.
var ErrSessionEnded = errors.New("session ended")

// Boundary is the portal API the monitor drives.
type Boundary interface {
	ValidateSession(ctx context.Context) (Status, error)
	ClearCookie(ctx context.Context) error
	Logout(ctx context.Context) (LogoutResult, error)
}

// LocalSession is the client's own sign-in state.
type LocalSession interface {
	SignOut(ctx context.Context) error
}

// Storage is client-side persisted state wiped on teardown.
type Storage interface {
	Clear(ctx context.Context) error
}

// Navigator performs the final hard navigation to the login page.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// Options configures a Monitor.
type Options struct {
	Boundary  Boundary     // required
	Local     LocalSession // optional
	Storage   Storage      // optional
	Navigator Navigator    // required

	// Interval between checks (default DefaultInterval).
	Interval time.Duration
	// CallTimeout bounds each boundary call; zero leaves them to the client.
	CallTimeout time.Duration
	// ReturnPath reports the path the user should come back to after login.
	ReturnPath func() string

	Logger *slog.Logger
}

// Monitor polls the session boundary API and runs the teardown sequence once
// per invalid observation.
type Monitor struct {
	boundary    Boundary
	local       LocalSession
	storage     Storage
	nav         Navigator
	interval    time.Duration
	callTimeout time.Duration
	returnPath  func() string
	logger      *slog.Logger

	inFlight atomic.Bool
	tornDown atomic.Bool
	// wg tracks in-flight checks so tests and callers can wait for them.
	wg sync.WaitGroup
}

// New creates a Monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Boundary == nil {
		return nil, errors.New("boundary is required")
	}
	if opts.Navigator == nil {
		return nil, errors.New("navigator is required")
	}
	m := &Monitor{
		boundary:    opts.Boundary,
		local:       opts.Local,
		storage:     opts.Storage,
		nav:         opts.Navigator,
		interval:    opts.Interval,
		callTimeout: opts.CallTimeout,
		returnPath:  opts.ReturnPath,
		logger:      opts.Logger,
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.returnPath == nil {
		m.returnPath = func() string { return "/" }
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "token_monitor")
	return m, nil
}

// Run checks on every tick until ctx is cancelled or a teardown completes.
// A tick is skipped while the previous check is still running. Cancelling ctx
// stops future ticks only; a check already in flight runs to completion.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "token monitor started", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	ended := make(chan string, 1)
	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "token monitor stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case kind := <-ended:
			return fmt.Errorf("%w: %s", ErrSessionEnded, kind)

		case <-ticker.C:
			m.tick(context.WithoutCancel(ctx), ended)
		}
	}
}

// tick launches one asynchronous check unless one is already running.
func (m *Monitor) tick(ctx context.Context, ended chan<- string) {
	if m.tornDown.Load() {
		return
	}
	if !m.inFlight.CompareAndSwap(false, true) {
		m.logger.DebugContext(ctx, "previous check still running; skipping tick")
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.inFlight.Store(false)

		kind, invalid := m.Check(ctx)
		if !invalid {
			return
		}
		m.tornDown.Store(true)
		select {
		case ended <- kind:
		default:
		}
	}()
}

// Wait blocks until in-flight checks have finished.
func (m *Monitor) Wait() { m.wg.Wait() }

// Check validates the session once and, when the session is invalid, the teardown. It
// reports the error kind and whether a teardown ran. Check failures other than
// an invalid answer are logged and leave the session alone.
func (m *Monitor) Check(ctx context.Context) (string, bool) {
	callCtx, cancel := m.callContext(ctx)
	status, err := m.boundary.ValidateSession(callCtx)
	cancel()
	if err != nil {
		m.logger.WarnContext(ctx, "session check failed", "error", err)
		return "", false
	}
	if status.Valid {
		return "", false
	}

	kind := status.Kind
	m.logger.InfoContext(ctx, "session invalid; tearing down", "kind", kind)
	m.Teardown(ctx, kind)
	return kind, true
}

// Teardown clears the auxiliary cookie, logs out, signs out locally, wipes
// storage and navigates to the login page. Every step runs even when an
// earlier one fails.
func (m *Monitor) Teardown(ctx context.Context, kind string) {
	m.step(ctx, "clear cookie", m.boundary.ClearCookie)
	m.step(ctx, "logout", func(c context.Context) error {
		res, err := m.boundary.Logout(c)
		if err == nil && res.Status != "success" {
			m.logger.WarnContext(ctx, "logout incomplete", "status", res.Status, "message", res.Message)
		}
		return err
	})
	if m.local != nil {
		m.step(ctx, "local sign-out", m.local.SignOut)
	}
	if m.storage != nil {
		m.step(ctx, "clear storage", m.storage.Clear)
	}

	target := LoginPath(kind, m.returnPath())
	if err := m.nav.Navigate(ctx, target); err != nil {
		m.logger.ErrorContext(ctx, "navigate to login failed", "target", target, "error", err)
	}
}

func (m *Monitor) step(ctx context.Context, name string, fn func(context.Context) error) {
	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	if err := fn(callCtx); err != nil {
		m.logger.WarnContext(ctx, "teardown step failed", "step", name, "error", err)
	}
}

func (m *Monitor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.callTimeout)
}

// LoginPath builds the login URL carrying the error kind and the return path.
func LoginPath(kind, returnPath string) string {
	if kind == "" {
		kind = fallbackKind
	}
	if returnPath == "" {
		returnPath = "/"
	}
	q := url.Values{}
	q.Set("error", kind)
	q.Set("callbackUrl", returnPath)
	return "/login?" + q.Encode()
}
