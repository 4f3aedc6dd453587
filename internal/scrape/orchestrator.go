package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/hash/sha256"
	"github.com/JakeFAU/salesnav-relay/internal/metrics"
)

// Orchestrator runs one scrape request through every stage in order.
type Orchestrator struct {
	pool       *WorkerPool
	launcher   *Launcher
	poller     *StatusPoller
	normalizer *Normalizer
	sessions   SessionStore
	logger     *zap.Logger
}

// NewOrchestrator wires the four stages around a single provider.
func NewOrchestrator(
	provider Provider,
	sessions SessionStore,
	sleeper Sleeper,
	workers []WorkerID,
	cfg RetryConfig,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		pool:       NewWorkerPool(provider, sleeper, workers, cfg, logger.Named("pool")),
		launcher:   NewLauncher(provider, sleeper, cfg, logger.Named("launcher")),
		poller:     NewStatusPoller(provider, sleeper, cfg, logger.Named("poller")),
		normalizer: NewNormalizer(provider, logger.Named("normalizer")),
		sessions:   sessions,
		logger:     logger,
	}
}

// Run executes req. The caller has already authenticated req.UserID. On any
// failure no records are returned and the error carries the failing stage's Kind.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Response, error) {
	logger := o.logger.With(
		zap.String("user_id", req.UserID),
		zap.String("search_url", req.SearchURL),
		zap.String("cookie_fp", sha256.Fingerprint(req.SessionCookie)),
	)
	logger.Info("scrape started")

	resp, err := o.run(ctx, req, logger)
	if err != nil {
		kind := KindOf(err)
		metrics.ObserveScrape(kind.String())
		logger.Error("scrape failed", zap.Stringer("kind", kind), zap.Error(err))
		return Response{}, err
	}
	metrics.ObserveScrape("ok")
	logger.Info("scrape completed", zap.Int("profiles", len(resp.Events)))
	return resp, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, logger *zap.Logger) (Response, error) {
	var worker WorkerID
	if err := stage("acquire", func() (err error) {
		worker, err = o.pool.Acquire(ctx)
		return err
	}); err != nil {
		return Response{}, err
	}

	var job JobID
	if err := stage("launch", func() (err error) {
		job, err = o.launcher.Launch(ctx, worker, LaunchArgs{
			SearchURL:     req.SearchURL,
			SessionCookie: req.SessionCookie,
		})
		return err
	}); err != nil {
		return Response{}, err
	}
	logger = logger.With(zap.String("worker_id", string(worker)), zap.String("job_id", string(job)))
	logger.Info("job launched")

	if err := stage("poll", func() error {
		return o.poller.AwaitCompletion(ctx, job)
	}); err != nil {
		return Response{}, err
	}

	var records []ProfileRecord
	if err := stage("normalize", func() (err error) {
		records, err = o.normalizer.FetchAndNormalize(ctx, job)
		return err
	}); err != nil {
		return Response{}, err
	}

	if err := stage("persist", func() error {
		return o.persistSession(ctx, req, logger)
	}); err != nil {
		return Response{}, err
	}

	return Response{
		Events:  records,
		UserID:  req.UserID,
		Message: req.SearchURL,
	}, nil
}

// persistSession creates the user's session on first use and overwrites the
// tracked fields afterwards. The existence check and the write are not atomic;
// concurrent requests for one user resolve as last write wins.
func (o *Orchestrator) persistSession(ctx context.Context, req Request, logger *zap.Logger) error {
	fields := SessionFields{SearchURL: req.SearchURL, SessionCookie: req.SessionCookie}
	exists, err := o.sessions.Exists(ctx, req.UserID)
	if err != nil {
		return newError(KindInternal, "failed to handle user session", err)
	}
	if exists {
		err = o.sessions.Update(ctx, req.UserID, fields)
	} else {
		err = o.sessions.Create(ctx, req.UserID, fields)
	}
	if err != nil {
		return newError(KindInternal, "failed to handle user session", err)
	}
	logger.Debug("session persisted", zap.Bool("created", !exists))
	return nil
}

func stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveStage(name, time.Since(start))
	return err
}
