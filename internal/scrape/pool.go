package scrape

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/metrics"
)

// WorkerPool selects an idle agent from a fixed, ordered list.
type WorkerPool struct {
	provider Provider
	sleeper  Sleeper
	workers  []WorkerID
	cfg      RetryConfig
	logger   *zap.Logger
}

// NewWorkerPool constructs a WorkerPool over workers, checked in the given order.
func NewWorkerPool(provider Provider, sleeper Sleeper, workers []WorkerID, cfg RetryConfig, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		provider: provider,
		sleeper:  sleeper,
		workers:  append([]WorkerID(nil), workers...),
		cfg:      cfg,
		logger:   logger,
	}
}

// Acquire returns the first worker observed idle. Each worker gets up to
// MaxRetries status checks before the pool moves on to the next one.
func (p *WorkerPool) Acquire(ctx context.Context) (WorkerID, error) {
	for _, worker := range p.workers {
		idle, err := p.waitIdle(ctx, worker)
		if err != nil {
			return "", err
		}
		if idle {
			p.logger.Info("worker acquired", zap.String("worker_id", string(worker)))
			return worker, nil
		}
		p.logger.Warn("worker stayed busy, trying next", zap.String("worker_id", string(worker)))
	}
	return "", newError(KindAllWorkersBusy, "all workers are busy and maximum retry attempts reached", nil)
}

func (p *WorkerPool) waitIdle(ctx context.Context, worker WorkerID) (bool, error) {
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		status, err := p.provider.WorkerStatus(ctx, worker)
		switch {
		case err != nil:
			metrics.ObserveWorkerCheck("error")
			p.logger.Warn("worker status check failed",
				zap.String("worker_id", string(worker)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		case status != WorkerRunning:
			metrics.ObserveWorkerCheck("idle")
			return true, nil
		default:
			metrics.ObserveWorkerCheck("busy")
			p.logger.Info("worker busy",
				zap.String("worker_id", string(worker)),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", p.cfg.MaxRetries),
			)
		}
		if attempt < p.cfg.MaxRetries {
			if err := p.sleeper.Sleep(ctx, p.cfg.RetryDelay); err != nil {
				return false, newError(KindInternal, "worker acquisition interrupted", err)
			}
		}
	}
	return false, nil
}
