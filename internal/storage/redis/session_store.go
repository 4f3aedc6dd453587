// Package redis stores sessions as one hash per user.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

const (
	defaultKeyPrefix = "relay:session:"

	fieldEventsURL     = "events_url"
	fieldSessionCookie = "session_cookie"
	fieldLastUpdated   = "last_updated"
)

// ErrNotFound is returned by Get for unknown users.
var ErrNotFound = scrape.ErrSessionNotFound

// Config configures the Redis connection.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires idle sessions; zero keeps them forever.
	TTL time.Duration
	// Now stamps last_updated; nil uses the UTC wall clock.
	Now func() time.Time
}

// SessionStore implements scrape.SessionStore on Redis hashes.
type SessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionStore connects and pings Redis.
func NewSessionStore(ctx context.Context, cfg Config) (*SessionStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("session.redis.addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	store := NewSessionStoreWithClient(client, cfg.KeyPrefix, cfg.TTL)
	if cfg.Now != nil {
		store.now = cfg.Now
	}
	return store, nil
}

// NewSessionStoreWithClient wraps an existing client.
func NewSessionStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *SessionStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &SessionStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionStore) key(userID string) string {
	return s.prefix + userID
}

// Exists reports whether userID has a hash.
func (s *SessionStore) Exists(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return n > 0, nil
}

// Create writes the session hash.
func (s *SessionStore) Create(ctx context.Context, userID string, fields scrape.SessionFields) error {
	if err := s.write(ctx, userID, fields); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update overwrites the tracked fields.
func (s *SessionStore) Update(ctx context.Context, userID string, fields scrape.SessionFields) error {
	if err := s.write(ctx, userID, fields); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (s *SessionStore) write(ctx context.Context, userID string, fields scrape.SessionFields) error {
	key := s.key(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldEventsURL, fields.SearchURL,
			fieldSessionCookie, fields.SessionCookie,
			fieldLastUpdated, s.now().Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

// Get loads the stored session.
func (s *SessionStore) Get(ctx context.Context, userID string) (scrape.Session, error) {
	values, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return scrape.Session{}, fmt.Errorf("load session: %w", err)
	}
	if len(values) == 0 {
		return scrape.Session{}, ErrNotFound
	}
	updated, err := time.Parse(time.RFC3339Nano, values[fieldLastUpdated])
	if err != nil {
		return scrape.Session{}, fmt.Errorf("parse %s: %w", fieldLastUpdated, err)
	}
	return scrape.Session{
		UserID:        userID,
		SearchURL:     values[fieldEventsURL],
		SessionCookie: values[fieldSessionCookie],
		LastUpdated:   updated,
	}, nil
}

// Ping checks connectivity.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}
