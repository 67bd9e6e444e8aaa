package monitor

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures teardown steps in order.
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, s)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

type fakeBoundary struct {
	rec      *recorder
	validate func(ctx context.Context) (Status, error)
	clearErr error
	logout   error
	checks   atomic.Int32
}

func (b *fakeBoundary) ValidateSession(ctx context.Context) (Status, error) {
	b.checks.Add(1)
	if b.validate != nil {
		return b.validate(ctx)
	}
	return Status{Valid: true}, nil
}

func (b *fakeBoundary) ClearCookie(context.Context) error {
	b.rec.add("clear-cookie")
	return b.clearErr
}

func (b *fakeBoundary) Logout(context.Context) (LogoutResult, error) {
	b.rec.add("logout")
	if b.logout != nil {
		return LogoutResult{}, b.logout
	}
	return LogoutResult{Status: "success"}, nil
}

type fakeLocal struct {
	rec *recorder
	err error
}

func (l fakeLocal) SignOut(context.Context) error {
	l.rec.add("sign-out")
	return l.err
}

type fakeStorage struct{ rec *recorder }

func (s fakeStorage) Clear(context.Context) error {
	s.rec.add("clear-storage")
	return nil
}

type fakeNavigator struct {
	rec     *recorder
	mu      sync.Mutex
	targets []string
}

func (n *fakeNavigator) Navigate(_ context.Context, target string) error {
	n.rec.add("navigate")
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
	return nil
}

func (n *fakeNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.targets)
}

func newTestMonitor(t *testing.T, b *fakeBoundary, interval time.Duration) (*Monitor, *fakeNavigator) {
	t.Helper()
	nav := &fakeNavigator{rec: b.rec}
	m, err := New(Options{
		Boundary:   b,
		Local:      fakeLocal{rec: b.rec},
		Storage:    fakeStorage{rec: b.rec},
		Navigator:  nav,
		Interval:   interval,
		ReturnPath: func() string { return "/dashboard?tab=apps" },
	})
	require.NoError(t, err)
	return m, nav
}

func TestNew_RequiresBoundaryAndNavigator(t *testing.T) {
	_, err := New(Options{Navigator: &fakeNavigator{rec: &recorder{}}})
	require.Error(t, err)
	_, err = New(Options{Boundary: &fakeBoundary{rec: &recorder{}}})
	require.Error(t, err)
}

func TestMonitor_Check_ValidSessionDoesNothing(t *testing.T) {
	b := &fakeBoundary{rec: &recorder{}}
	m, nav := newTestMonitor(t, b, time.Second)

	kind, invalid := m.Check(context.Background())
	assert.False(t, invalid)
	assert.Empty(t, kind)
	assert.Empty(t, b.rec.all())
	assert.Zero(t, nav.count())
}

func TestMonitor_Check_ValidateErrorKeepsSession(t *testing.T) {
	b := &fakeBoundary{rec: &recorder{}, validate: func(context.Context) (Status, error) {
		return Status{}, errors.New("connection refused")
	}}
	m, nav := newTestMonitor(t, b, time.Second)

	_, invalid := m.Check(context.Background())
	assert.False(t, invalid)
	assert.Zero(t, nav.count())
}

func TestMonitor_Check_InvalidRunsTeardownInOrder(t *testing.T) {
	b := &fakeBoundary{rec: &recorder{}, validate: func(context.Context) (Status, error) {
		return Status{Kind: "RefreshTokenInactive"}, nil
	}}
	m, nav := newTestMonitor(t, b, time.Second)

	kind, invalid := m.Check(context.Background())
	require.True(t, invalid)
	assert.Equal(t, "RefreshTokenInactive", kind)
	assert.Equal(t, []string{"clear-cookie", "logout", "sign-out", "clear-storage", "navigate"}, b.rec.all())

	require.Len(t, nav.targets, 1)
	u, err := url.Parse(nav.targets[0])
	require.NoError(t, err)
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, "RefreshTokenInactive", u.Query().Get("error"))
	assert.Equal(t, "/dashboard?tab=apps", u.Query().Get("callbackUrl"))
}

func TestMonitor_Teardown_StepFailuresDoNotAbort(t *testing.T) {
	rec := &recorder{}
	b := &fakeBoundary{rec: rec, clearErr: errors.New("boom"), logout: errors.New("boom")}
	nav := &fakeNavigator{rec: rec}
	m, err := New(Options{
		Boundary:  b,
		Local:     fakeLocal{rec: rec, err: errors.New("boom")},
		Storage:   fakeStorage{rec: rec},
		Navigator: nav,
	})
	require.NoError(t, err)

	m.Teardown(context.Background(), "")
	assert.Equal(t, []string{"clear-cookie", "logout", "sign-out", "clear-storage", "navigate"}, rec.all())
	require.Len(t, nav.targets, 1)
	assert.Equal(t, "/login?callbackUrl=%2F&error=RefreshTokenExpired", nav.targets[0])
}

func TestMonitor_Run_StopsOnCancel(t *testing.T) {
	b := &fakeBoundary{rec: &recorder{}}
	m, nav := newTestMonitor(t, b, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := m.Run(ctx)
	require.NoError(t, err)
	m.Wait()

	checks := b.checks.Load()
	assert.Positive(t, checks)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, checks, b.checks.Load(), "no ticks after cancel")
	assert.Zero(t, nav.count())
}

func TestMonitor_Run_TearsDownOncePerInvalidObservation(t *testing.T) {
	b := &fakeBoundary{rec: &recorder{}, validate: func(context.Context) (Status, error) {
		return Status{Kind: "NoSession"}, nil
	}}
	m, nav := newTestMonitor(t, b, 2*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := m.Run(ctx)
	require.ErrorIs(t, err, ErrSessionEnded)
	m.Wait()
	assert.Equal(t, 1, nav.count())
	assert.Equal(t, int32(1), b.checks.Load())
}

func TestMonitor_Run_SkipsOverlappingTicks(t *testing.T) {
	release := make(chan struct{})
	var concurrent, maxConcurrent atomic.Int32
	b := &fakeBoundary{rec: &recorder{}, validate: func(context.Context) (Status, error) {
		n := concurrent.Add(1)
		defer concurrent.Add(-1)
		for {
			cur := maxConcurrent.Load()
			if n <= cur || maxConcurrent.CompareAndSwap(cur, n) {
				break
			}
		}
		<-release
		return Status{Valid: true}, nil
	}}
	m, _ := newTestMonitor(t, b, 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// The in-flight check survives cancellation and completes once released.
	close(release)
	m.Wait()
	assert.Equal(t, int32(1), maxConcurrent.Load())
	assert.Equal(t, int32(1), b.checks.Load())
}

func TestWriterNavigator(t *testing.T) {
	var buf bytes.Buffer
	base, err := url.Parse("http://localhost:8080")
	require.NoError(t, err)

	require.NoError(t, WriterNavigator{Base: base, Out: &buf}.Navigate(context.Background(), "/login?error=NoSession"))
	assert.Equal(t, "session ended; sign in again at http://localhost:8080/login?error=NoSession\n", buf.String())
}

func TestMemoryStorage_Clear(t *testing.T) {
	s := NewMemoryStorage()
	s.Set("token", "abc")
	require.NoError(t, s.Clear(context.Background()))
	require.NoError(t, s.Clear(context.Background()))
	assert.Zero(t, s.Len())
	_, ok := s.Get("token")
	assert.False(t, ok)
}
