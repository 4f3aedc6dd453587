package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

const sessionLookupTimeout = 3 * time.Second

// SessionReader loads a stored session.
type SessionReader interface {
	Get(ctx context.Context, userID string) (scrape.Session, error)
}

type sessionResponse struct {
	UserID      string    `json:"userId"`
	EventsURL   string    `json:"eventsUrl"`
	CookieSet   bool      `json:"cookieSet"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// getSession handles GET /session for the bearer's user. The cookie itself is
// never returned.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	reader, ok := s.sessions.(SessionReader)
	if !ok {
		writeError(w, http.StatusNotImplemented, "session lookup not supported by this store")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), sessionLookupTimeout)
	defer cancel()

	session, err := reader.Get(ctx, userID)
	switch {
	case errors.Is(err, scrape.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "no session for user")
		return
	case err != nil:
		s.logger.Error("session lookup failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		UserID:      session.UserID,
		EventsURL:   session.SearchURL,
		CookieSet:   session.SessionCookie != "",
		LastUpdated: session.LastUpdated,
	})
}
