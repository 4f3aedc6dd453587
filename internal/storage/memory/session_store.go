// Package memory provides in-process storage for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

// ErrNotFound is returned by Get for unknown users.
var ErrNotFound = scrape.ErrSessionNotFound

// SessionStore keeps sessions in a map. Sessions are lost on restart.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]scrape.Session
	now      func() time.Time
}

// NewSessionStore constructs a SessionStore. A nil now uses time.Now in UTC.
func NewSessionStore(now func() time.Time) *SessionStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SessionStore{sessions: make(map[string]scrape.Session), now: now}
}

// Exists reports whether userID has a stored session.
func (s *SessionStore) Exists(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[userID]
	return ok, nil
}

// Create stores a new session. An existing session is overwritten.
func (s *SessionStore) Create(_ context.Context, userID string, fields scrape.SessionFields) error {
	s.put(userID, fields)
	return nil
}

// Update overwrites the tracked fields of userID.
func (s *SessionStore) Update(_ context.Context, userID string, fields scrape.SessionFields) error {
	s.put(userID, fields)
	return nil
}

// Get returns a copy of the stored session.
func (s *SessionStore) Get(_ context.Context, userID string) (scrape.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	if !ok {
		return scrape.Session{}, ErrNotFound
	}
	return session, nil
}

// Ping always succeeds.
func (s *SessionStore) Ping(context.Context) error {
	return nil
}

func (s *SessionStore) put(userID string, fields scrape.SessionFields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = scrape.Session{
		UserID:        userID,
		SearchURL:     fields.SearchURL,
		SessionCookie: fields.SessionCookie,
		LastUpdated:   s.now(),
	}
}
