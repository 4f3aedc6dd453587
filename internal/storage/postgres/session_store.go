// Package postgres provides the Postgres-backed session store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "relay_sessions"

// ErrNotFound is returned by Update when the user has no row.
var ErrNotFound = scrape.ErrSessionNotFound

// Config controls the Postgres connection pool used for sessions.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// SessionStore keeps one row per user.
type SessionStore struct {
	pool  querier
	table string
}

// NewSessionStore connects to Postgres using cfg.
func NewSessionStore(ctx context.Context, cfg Config) (*SessionStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("session.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewSessionStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewSessionStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSessionStoreWithPool(pool querier, table string) (*SessionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SessionStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the sessions table when it does not exist.
func (s *SessionStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	user_id        TEXT PRIMARY KEY,
	events_url     TEXT NOT NULL,
	session_cookie TEXT NOT NULL,
	last_updated   TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// Exists reports whether userID has a row.
func (s *SessionStore) Exists(ctx context.Context, userID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE user_id = $1)`, s.table)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return exists, nil
}

// Create inserts the user's row. A concurrent insert for the same user wins by
// overwriting.
func (s *SessionStore) Create(ctx context.Context, userID string, fields scrape.SessionFields) error {
	query := fmt.Sprintf(`
INSERT INTO %s (user_id, events_url, session_cookie, last_updated)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE SET
	events_url = EXCLUDED.events_url,
	session_cookie = EXCLUDED.session_cookie,
	last_updated = EXCLUDED.last_updated`, s.table)
	if _, err := s.pool.Exec(ctx, query, userID, fields.SearchURL, fields.SessionCookie); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Update overwrites the tracked fields of an existing row.
func (s *SessionStore) Update(ctx context.Context, userID string, fields scrape.SessionFields) error {
	query := fmt.Sprintf(`
UPDATE %s SET events_url = $2, session_cookie = $3, last_updated = now()
WHERE user_id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, userID, fields.SearchURL, fields.SessionCookie)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update session %s: %w", userID, ErrNotFound)
	}
	return nil
}

// Get loads the stored session of userID.
func (s *SessionStore) Get(ctx context.Context, userID string) (scrape.Session, error) {
	query := fmt.Sprintf(`SELECT events_url, session_cookie, last_updated FROM %s WHERE user_id = $1`, s.table)
	session := scrape.Session{UserID: userID}
	err := s.pool.QueryRow(ctx, query, userID).Scan(&session.SearchURL, &session.SessionCookie, &session.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return scrape.Session{}, ErrNotFound
	}
	if err != nil {
		return scrape.Session{}, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// Ping checks connectivity.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying pool resources.
func (s *SessionStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
