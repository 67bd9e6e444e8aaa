package redis

// Package redis provides the Redis-backed session store used in production.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/ports"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "ssoportal:session:"

// ErrNotFound is returned when a session is not found.
var ErrNotFound = domainauth.ErrSessionNotFound

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStore is a Redis-based session store for production use.
// Keys live as long as the refresh token so an expired access token can
// still be refreshed.
type SessionStore struct {
	client    redis.UniversalClient
	prefix    string
	retention domainauth.Retention
	now       func() time.Time
}

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Prefix    string
	Retention domainauth.Retention
	Now       func() time.Time
}

// NewSessionStore creates a new Redis-based session store with default options.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithOptions(client, SessionStoreOptions{})
}

// NewSessionStoreWithOptions creates a Redis session store with a custom prefix and retention.
func NewSessionStoreWithOptions(client redis.UniversalClient, opts SessionStoreOptions) *SessionStore {
	s := &SessionStore{
		client:    client,
		prefix:    opts.Prefix,
		retention: opts.Retention,
		now:       opts.Now,
	}
	if s.prefix == "" {
		s.prefix = DefaultPrefix
	}
	if s.retention == (domainauth.Retention{}) {
		s.retention = domainauth.DefaultRetention
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	data, err := domainauth.MarshalSession(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := s.retention.TTL(sess, s.now())
	return s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	sess, err := domainauth.UnmarshalSession(data)
	if err != nil {
		// A record we cannot decode is unusable; drop it so the user re-authenticates.
		if delErr := s.Delete(ctx, id); delErr != nil {
			return domainauth.Session{}, errors.Join(err, fmt.Errorf("delete corrupt session: %w", delErr))
		}
		return domainauth.Session{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil // Nothing to delete
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}
