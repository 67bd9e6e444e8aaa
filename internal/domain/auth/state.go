package auth

import "time"

// DefaultRefreshThreshold is how long before access token expiry a proactive refresh starts.
const DefaultRefreshThreshold = 300 * time.Second

// State is the lifecycle position of a session at a point in time.
type State int

const (
	StateFresh State = iota
	StateNearExpiry
	StateExpired
	StateError
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateNearExpiry:
		return "near_expiry"
	case StateExpired:
		return "expired"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Effect is the side effect a caller must perform after Evaluate.
type Effect int

const (
	EffectNone Effect = iota
	EffectRefresh
)

// Policy tunes the state machine.
type Policy struct {
	RefreshThreshold time.Duration
}

func (p Policy) threshold() time.Duration {
	if p.RefreshThreshold <= 0 {
		return DefaultRefreshThreshold
	}
	return p.RefreshThreshold
}

// Decision is the output of Evaluate.
type Decision struct {
	State  State
	Effect Effect
}

// Proactive reports whether the decision is a refresh ahead of expiry.
func (d Decision) Proactive() bool { return d.State == StateNearExpiry }

// RefreshOutcome is the result of performing EffectRefresh. Err with a
// non-empty Grant means the provider accepted the refresh but the new access
// token could not be used.
type RefreshOutcome struct {
	Grant  TokenGrant
	Claims Claims
	Err    error
}

func (o RefreshOutcome) granted() bool {
	return o.Grant.AccessToken != "" || o.Grant.RefreshToken != ""
}

// StateAt classifies s at now without deciding on any effect.
func StateAt(s Session, now time.Time, p Policy) State {
	if s.Error != ErrorNone {
		return StateError
	}
	exp := s.ExpiresAt
	if exp == 0 || now.Unix() >= exp {
		return StateExpired
	}
	if now.Add(p.threshold()).Unix() >= exp {
		return StateNearExpiry
	}
	return StateFresh
}

// Evaluate decides what to do with s at now. It performs no I/O. The returned
// session differs from s only when the record can be failed without calling
// the provider (expired with no refresh token).
func Evaluate(s Session, now time.Time, p Policy) (Session, Decision) {
	state := StateAt(s, now, p)
	switch state {
	case StateNearExpiry:
		if s.RefreshToken == "" {
			return s, Decision{State: state, Effect: EffectNone}
		}
		return s, Decision{State: state, Effect: EffectRefresh}
	case StateExpired:
		if s.RefreshToken == "" {
			s.Error = ErrRefreshAccessToken
			s.UpdatedAt = now
			return s, Decision{State: state, Effect: EffectNone}
		}
		return s, Decision{State: state, Effect: EffectRefresh}
	default:
		return s, Decision{State: state, Effect: EffectNone}
	}
}

// ApplyRefresh folds a refresh outcome into s.
//
// Success yields a FRESH record with every token field replaced together.
// A failed proactive refresh keeps the still-valid access token. A failed
// refresh of an expired record sets Error. When the provider issued a grant
// whose access token was unusable, the rotated refresh and ID tokens are
// stored either way: the old refresh token has already been consumed.
func ApplyRefresh(s Session, d Decision, out RefreshOutcome, now time.Time) Session {
	if out.Err != nil {
		if out.granted() {
			s = rotate(s, out.Grant, now)
		}
		if d.Proactive() {
			return s
		}
		s.Error = ClassifyRefreshError(out.Err)
		s.UpdatedAt = now
		return s
	}

	next := s
	next.AccessToken = out.Grant.AccessToken
	next.IDToken = out.Grant.IDToken
	if out.Grant.RefreshToken != "" {
		next.RefreshToken = out.Grant.RefreshToken
	}
	next.ExpiresAt = expiresAt(out.Grant, out.Claims, now)
	next.RefreshExpiresAt = refreshExpiresAt(out.Grant, now)
	next.Claims = out.Claims
	next.Error = ErrorNone
	next.UpdatedAt = now
	return next
}

// Login builds a FRESH record from a completed authorization code exchange.
// It never consults any previous record.
func Login(id string, grant TokenGrant, claims Claims, now time.Time) Session {
	return Session{
		ID:               id,
		AccessToken:      grant.AccessToken,
		IDToken:          grant.IDToken,
		RefreshToken:     grant.RefreshToken,
		ExpiresAt:        expiresAt(grant, claims, now),
		RefreshExpiresAt: refreshExpiresAt(grant, now),
		Claims:           claims,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// rotate stores the refresh-side fields of g, leaving the access token,
// its claims and ExpiresAt untouched.
func rotate(s Session, g TokenGrant, now time.Time) Session {
	if g.RefreshToken != "" {
		s.RefreshToken = g.RefreshToken
		s.RefreshExpiresAt = refreshExpiresAt(g, now)
	}
	if g.IDToken != "" {
		s.IDToken = g.IDToken
	}
	s.UpdatedAt = now
	return s
}

// expiresAt prefers the provider's expires_in and falls back to the token's own exp claim.
func expiresAt(g TokenGrant, c Claims, now time.Time) int64 {
	if g.ExpiresIn > 0 {
		return now.Unix() + g.ExpiresIn
	}
	return c.ExpiresAt
}

func refreshExpiresAt(g TokenGrant, now time.Time) int64 {
	if g.RefreshExpiresIn > 0 {
		return now.Unix() + g.RefreshExpiresIn
	}
	return 0
}
