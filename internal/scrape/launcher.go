package scrape

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/metrics"
)

// Launcher starts an agent, retrying while the provider is at its parallelism limit.
type Launcher struct {
	provider Provider
	sleeper  Sleeper
	cfg      RetryConfig
	logger   *zap.Logger
}

// NewLauncher constructs a Launcher.
func NewLauncher(provider Provider, sleeper Sleeper, cfg RetryConfig, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{provider: provider, sleeper: sleeper, cfg: cfg, logger: logger}
}

// Launch starts worker with args and returns the container id.
//
// Parallelism rejections and transport failures share the MaxRetries budget. Any
// other provider rejection fails immediately, as does a transport failure on the
// final attempt. A budget spent entirely on parallelism rejections reports
// KindAllWorkersBusy.
func (l *Launcher) Launch(ctx context.Context, worker WorkerID, args LaunchArgs) (JobID, error) {
	for attempt := 1; attempt <= l.cfg.MaxRetries; attempt++ {
		jobID, err := l.provider.Launch(ctx, worker, args)
		var perr *ProviderError
		switch {
		case err == nil && jobID == "":
			metrics.ObserveLaunchAttempt("rejected")
			return "", newError(KindLaunchFailed, "provider returned no container id", nil)
		case err == nil:
			metrics.ObserveLaunchAttempt("ok")
			l.logger.Info("agent launched",
				zap.String("worker_id", string(worker)),
				zap.String("job_id", string(jobID)),
				zap.Int("attempt", attempt),
			)
			return jobID, nil
		case errors.Is(err, ErrMaxParallelism):
			metrics.ObserveLaunchAttempt("max_parallelism")
			l.logger.Warn("maximum parallelism reached",
				zap.String("worker_id", string(worker)),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", l.cfg.MaxRetries),
			)
		case errors.As(err, &perr):
			metrics.ObserveLaunchAttempt("rejected")
			return "", newError(KindLaunchFailed, "error launching agent", err)
		default:
			metrics.ObserveLaunchAttempt("transport_error")
			if attempt == l.cfg.MaxRetries {
				return "", newError(KindLaunchFailed, "network error launching agent", err)
			}
			l.logger.Warn("launch request failed, retrying",
				zap.String("worker_id", string(worker)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		if attempt < l.cfg.MaxRetries {
			if err := l.sleeper.Sleep(ctx, l.cfg.RetryDelay); err != nil {
				return "", newError(KindInternal, "launch interrupted", err)
			}
		}
	}
	return "", newError(KindAllWorkersBusy, "maximum retry attempts reached while launching agent", nil)
}
