package metrics

import (
	obserrors "github.com/vss/sso-portal/internal/observability/errors"
	"github.com/vss/sso-portal/internal/observability/statsd"
	"github.com/vss/sso-portal/internal/ports"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var _ ports.SessionMetrics = (*SessionMetrics)(nil)

// SessionMetrics emits session lifecycle metrics to a StatsD sink.
// A nil sink disables emission.
type SessionMetrics struct {
	sink statsd.Sink
}

// NewSessionMetrics wraps sink.
func NewSessionMetrics(sink statsd.Sink) *SessionMetrics {
	return &SessionMetrics{sink: sink}
}

// RecordRefresh emits session.refresh and session.refresh.duration.
func (m *SessionMetrics) RecordRefresh(ev ports.RefreshEvent) {
	if m == nil || m.sink == nil {
		return
	}
	mode := "expired"
	if ev.Proactive {
		mode = "proactive"
	}
	tags := map[string]string{"mode": mode, "result": ResultSuccess}
	if ev.Kind != "" {
		tags["result"] = ResultError
		tags["kind"] = string(ev.Kind)
		if class := obserrors.Classify(ev.Err); class != "" {
			tags["error_class"] = class
		}
	}

	m.sink.Count("session.refresh", 1, tags)
	if ev.Duration > 0 {
		m.sink.Timing("session.refresh.duration", ev.Duration, CloneTags(tags))
	}
}

// RecordLogin emits session.login.
func (m *SessionMetrics) RecordLogin() {
	if m == nil || m.sink == nil {
		return
	}
	m.sink.Count("session.login", 1, nil)
}

// RecordLogout emits session.logout tagged with the logout status.
func (m *SessionMetrics) RecordLogout(status string) {
	if m == nil || m.sink == nil {
		return
	}
	m.sink.Count("session.logout", 1, map[string]string{"status": status})
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
