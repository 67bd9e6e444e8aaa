package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  ssoportal  ":   "ssoportal",
		"..ssoportal..":   "ssoportal",
		".":               "",
		"":                "",
		"ssoportal.auth.": "ssoportal.auth",
	}

	for input, want := range tests {
		if got := sanitizePrefix(input); got != want {
			t.Fatalf("sanitizePrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" session/refresh ": "session_refresh",
		"session..login":    "session.login",
		"two  spaces":       "two__spaces",
		"bad:name|c":        "bad_name_c",
		"#tagged@rate":      "_tagged_rate",
		"...":               "",
	}

	for input, want := range tests {
		if got := normalizeMetricName(input); got != want {
			t.Fatalf("normalizeMetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{
		"env": "prod",
		//nolint:gocritic // whitespace is part of the test case
		" service ": " sso-portal ",
	}
	local := map[string]string{
		"result": " success ",
		"":       "ignored",
		"env":    "stage",
	}

	got := formatTags(global, local)
	want := "|#env:stage,result:success,service:sso-portal"
	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}

	if got := formatTags(nil, nil); got != "" {
		t.Fatalf("formatTags(nil, nil) = %q, want empty string", got)
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
	// Emitting on a disabled client is a no-op.
	client.Count("session.login", 1, nil)
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	var c *Client
	c.Count("x", 1, nil)
	c.Gauge("x", 1, nil)
	c.Timing("x", time.Second, nil)
	c.Flush()
	if c.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
}

func listenUDP(t *testing.T) net.PacketConn {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func readPacket(t *testing.T, pc net.PacketConn) string {
	t.Helper()
	buf := make([]byte, 4096)
	if err := pc.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}
	return string(buf[:n])
}

func TestClientWritesImmediatelyWithoutBatching(t *testing.T) {
	t.Parallel()

	pc := listenUDP(t)
	client, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     "ssoportal",
		GlobalTags: map[string]string{"service": "portal"},
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	if !client.Enabled() {
		t.Fatal("expected client to be enabled")
	}

	client.Count("session.logout", 1, map[string]string{"status": "success"})
	if got, want := readPacket(t, pc), "ssoportal.session.logout:1|c|#service:portal,status:success"; got != want {
		t.Fatalf("packet = %q, want %q", got, want)
	}

	client.Timing("session.refresh.duration", 1500*time.Microsecond, nil)
	if got, want := readPacket(t, pc), "ssoportal.session.refresh.duration:1.5|ms|#service:portal"; got != want {
		t.Fatalf("packet = %q, want %q", got, want)
	}
}

func TestClientBatchesUntilFlush(t *testing.T) {
	t.Parallel()

	pc := listenUDP(t)
	client, err := NewClient(Config{
		Enabled:       true,
		Address:       pc.LocalAddr().String(),
		FlushInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	client.Count("session.login", 1, nil)
	client.Gauge("sessions.active", 3, nil)
	client.Flush()

	if got, want := readPacket(t, pc), "session.login:1|c\nsessions.active:3|g"; got != want {
		t.Fatalf("packet = %q, want %q", got, want)
	}

	client.Count("session.login", 2, nil)
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if got, want := readPacket(t, pc), "session.login:2|c"; got != want {
		t.Fatalf("packet after Close = %q, want %q", got, want)
	}
	if client.Enabled() {
		t.Fatal("expected client disabled after Close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestClientSplitsPacketsAtMaxSize(t *testing.T) {
	t.Parallel()

	pc := listenUDP(t)
	client, err := NewClient(Config{
		Enabled:       true,
		Address:       pc.LocalAddr().String(),
		FlushInterval: time.Hour,
		MaxPacketSize: 30,
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	// Each line is 17 bytes so two never fit in one 30-byte packet.
	client.Count("session.login", 1, nil)
	client.Count("session.login", 2, nil)

	if got, want := readPacket(t, pc), "session.login:1|c"; got != want {
		t.Fatalf("first packet = %q, want %q", got, want)
	}
	client.Flush()
	if got, want := readPacket(t, pc), "session.login:2|c"; got != want {
		t.Fatalf("second packet = %q, want %q", got, want)
	}
}
