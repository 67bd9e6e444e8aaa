package auth

import "time"

// Retention controls how long stores keep a session record.
type Retention struct {
	// Fallback applies when the provider did not report a refresh token lifetime.
	Fallback time.Duration
	// Min keeps errored or nearly dead records long enough for the guard and
	// monitor to observe the error kind.
	Min time.Duration
}

// DefaultRetention mirrors a Keycloak realm with a 10h SSO session.
var DefaultRetention = Retention{Fallback: 10 * time.Hour, Min: 10 * time.Minute}

// TTL returns how long s should be retained from now.
func (r Retention) TTL(s Session, now time.Time) time.Duration {
	ttl := r.Fallback
	if s.RefreshExpiresAt > 0 {
		ttl = time.Unix(s.RefreshExpiresAt, 0).Sub(now)
	}
	if ttl < r.Min {
		ttl = r.Min
	}
	if ttl <= 0 {
		ttl = DefaultRetention.Min
	}
	return ttl
}
