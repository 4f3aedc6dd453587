// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/api"
	"github.com/JakeFAU/salesnav-relay/internal/auth"
	"github.com/JakeFAU/salesnav-relay/internal/clock/system"
	"github.com/JakeFAU/salesnav-relay/internal/config"
	"github.com/JakeFAU/salesnav-relay/internal/logging"
	"github.com/JakeFAU/salesnav-relay/internal/phantom"
	"github.com/JakeFAU/salesnav-relay/internal/policy/ratelimit"
	"github.com/JakeFAU/salesnav-relay/internal/scrape"
	"github.com/JakeFAU/salesnav-relay/internal/storage"
)

const (
	// writeTimeoutSlack is added on top of the worst-case scrape duration.
	writeTimeoutSlack = 30 * time.Second
	// interruptGrace bounds the wait for interrupted scrapes to answer.
	interruptGrace = 5 * time.Second
)

// App contains the application's dependencies.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	apiServer     *api.Server
	orchestrator  *scrape.Orchestrator
	stopRuns      context.CancelFunc
	closeSessions func()
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("session_backend", cfg.Session.Backend),
		zap.Int("workers", len(cfg.Phantom.WorkerIDs)),
	)

	sessions, closeSessions, err := storage.NewSessionStore(ctx, cfg.Session, logger.Named("sessions"))
	if err != nil {
		return nil, fmt.Errorf("session store init failed: %w", err)
	}

	verifier, err := auth.NewJWTVerifier(auth.Config{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   time.Duration(cfg.Auth.LeewaySeconds) * time.Second,
	})
	if err != nil {
		closeSessions()
		return nil, fmt.Errorf("verifier init failed: %w", err)
	}

	client := phantom.NewClient(phantom.Config{
		APIKey:  cfg.Phantom.APIKey,
		BaseURL: cfg.Phantom.BaseURL,
		Timeout: cfg.HTTPTimeout(),
	}, logger.Named("phantom"))

	orch := scrape.NewOrchestrator(
		client,
		sessions,
		system.New(),
		cfg.Workers(),
		cfg.RetryConfig(),
		logger.Named("scrape"),
	)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst})
	}

	runs, stopRuns := context.WithCancel(context.Background())
	apiServer := api.NewServer(api.Deps{
		Runner:   orch,
		Verifier: verifier,
		Limiter:  limiter,
		Sessions: sessions,
		Lifetime: runs,
	}, *cfg, logger.Named("api"))

	return &App{
		cfg:           cfg,
		logger:        logger,
		apiServer:     apiServer,
		orchestrator:  orch,
		stopRuns:      stopRuns,
		closeSessions: closeSessions,
	}, nil
}

// Scrape runs one request through the pipeline without HTTP or token checks.
func (a *App) Scrape(ctx context.Context, req scrape.Request) (scrape.Response, error) {
	return a.orchestrator.Run(ctx, req)
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := newHTTPServer(a.cfg, a.Handler())
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started",
			zap.Int("port", a.cfg.Server.Port),
			zap.Duration("write_timeout", srv.WriteTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Scrapes still running are interrupted so they release the session
		// store before it closes.
		a.logger.Warn("drain deadline reached, interrupting scrapes", zap.Error(err))
		a.stopRuns()
		graceCtx, cancelGrace := context.WithTimeout(context.Background(), interruptGrace)
		defer cancelGrace()
		if err := srv.Shutdown(graceCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
	}
	closeErr := a.Close(context.Background())

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close gracefully shuts down the application.
func (a *App) Close(_ context.Context) error {
	if a.stopRuns != nil {
		a.stopRuns()
	}
	if a.closeSessions != nil {
		a.closeSessions()
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if d := a.cfg.ShutdownTimeout(); d > 0 {
		return d
	}
	return 10 * time.Second
}

// newHTTPServer sizes WriteTimeout so the longest possible scrape can still be
// answered.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.ScrapeBudget() + writeTimeoutSlack,
		IdleTimeout:       120 * time.Second,
	}
}
