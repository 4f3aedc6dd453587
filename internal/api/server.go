package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/auth"
	"github.com/JakeFAU/salesnav-relay/internal/config"
	"github.com/JakeFAU/salesnav-relay/internal/id/uuid"
	"github.com/JakeFAU/salesnav-relay/internal/metrics"
	"github.com/JakeFAU/salesnav-relay/internal/policy/ratelimit"
	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

const (
	maxBodyBytes     = 1 << 20
	readinessTimeout = 3 * time.Second
)

// Runner executes one scrape request.
type Runner interface {
	Run(ctx context.Context, req scrape.Request) (scrape.Response, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Runner   Runner
	Verifier scrape.Verifier
	// Limiter is optional; nil disables per-user throttling.
	Limiter *ratelimit.Limiter
	// Sessions is optional; when it implements Pinger it gates /readyz and
	// when it implements SessionReader it backs GET /session.
	Sessions any
	// Lifetime bounds every scrape run. Nil means runs end only on their own.
	Lifetime context.Context
}

// Server wires HTTP handlers to the scrape pipeline.
type Server struct {
	router   chi.Router
	runner   Runner
	verifier scrape.Verifier
	limiter  *ratelimit.Limiter
	sessions any
	lifetime context.Context
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	lifetime := deps.Lifetime
	if lifetime == nil {
		lifetime = context.Background()
	}
	s := &Server{
		lifetime: lifetime,
		runner:   deps.Runner,
		verifier: deps.Verifier,
		limiter:  deps.Limiter,
		sessions: deps.Sessions,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORS.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Exempt from the request timeout; http.Server.WriteTimeout bounds it.
	r.Post("/scrape", s.scrape)

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout(cfg)))
		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
		r.Get("/session", s.getSession)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	pinger, ok := s.sessions.(Pinger)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		s.logger.Warn("session store not ready", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	URL    string `json:"url"`
	Cookie string `json:"cookie"`
	// UserID is accepted for compatibility; the verified token subject is used.
	UserID string `json:"userId"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req scrapeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" || req.Cookie == "" {
		writeError(w, http.StatusBadRequest, "url and cookie are required")
		return
	}
	if req.UserID != "" && req.UserID != userID {
		s.logger.Debug("ignoring body user id", zap.String("body_user_id", req.UserID))
	}
	if s.limiter != nil && !s.limiter.Allow(userID) {
		metrics.ObserveRateLimited()
		writeError(w, http.StatusTooManyRequests, "too many scrape requests")
		return
	}

	// A client disconnect does not stop the run, so the session is still saved.
	// Server shutdown does.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	stop := context.AfterFunc(s.lifetime, cancel)
	defer stop()

	resp, err := s.runner.Run(ctx, scrape.Request{
		UserID:        userID,
		SearchURL:     req.URL,
		SessionCookie: req.Cookie,
	})
	if err != nil {
		s.writeScrapeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := s.verifier.Verify(r.Context(), auth.BearerToken(r))
	if err != nil {
		s.logger.Info("authentication failed", zap.Error(err))
		writeError(w, http.StatusUnauthorized, "Invalid authentication credentials")
		return "", false
	}
	return userID, true
}

func (s *Server) writeScrapeError(w http.ResponseWriter, err error) {
	var se *scrape.Error
	if !errors.As(err, &se) {
		s.logger.Error("unclassified scrape error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeError(w, se.Kind.HTTPStatus(), se.Error())
}

func requestTimeout(cfg config.Config) time.Duration {
	if d := cfg.RequestTimeout(); d > 0 {
		return d
	}
	return 30 * time.Second
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if !uuid.Valid(reqID) {
			reqID = uuid.RequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the id assigned by the request id middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("error", rec),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
