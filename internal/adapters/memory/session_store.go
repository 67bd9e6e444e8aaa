// Package memory provides an in-process session store for development and
// single-replica deployments.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/ports"
)

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStore implements ports.SessionStore using ttlcache. Records are kept
// encoded so callers never share slices with the cache.
type SessionStore struct {
	cache     *ttlcache.Cache[string, []byte]
	retention domainauth.Retention
	now       func() time.Time
}

// NewSessionStore creates a store and starts its expiry loop. Call Close to stop it.
func NewSessionStore(retention domainauth.Retention) *SessionStore {
	if retention == (domainauth.Retention{}) {
		retention = domainauth.DefaultRetention
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []byte](retention.Fallback),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go cache.Start()

	return &SessionStore{cache: cache, retention: retention, now: time.Now}
}

// Save implements ports.SessionStore.
func (s *SessionStore) Save(_ context.Context, sess domainauth.Session) error {
	data, err := domainauth.MarshalSession(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	s.cache.Set(sess.ID, data, s.retention.TTL(sess, s.now()))
	return nil
}

// Get implements ports.SessionStore.
func (s *SessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	item := s.cache.Get(id)
	if item == nil {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return domainauth.UnmarshalSession(item.Value())
}

// Delete implements ports.SessionStore.
func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}

// Close stops the expiry loop.
func (s *SessionStore) Close() error {
	s.cache.Stop()
	return nil
}
