package scrape

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/metrics"
)

const unknownJobError = "Unknown error"

// StatusPoller waits for a container to reach a terminal state.
type StatusPoller struct {
	provider Provider
	sleeper  Sleeper
	cfg      RetryConfig
	logger   *zap.Logger
}

// NewStatusPoller constructs a StatusPoller.
func NewStatusPoller(provider Provider, sleeper Sleeper, cfg RetryConfig, logger *zap.Logger) *StatusPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusPoller{provider: provider, sleeper: sleeper, cfg: cfg, logger: logger}
}

// AwaitCompletion polls job up to PollMaxAttempts times. Non-terminal statuses
// and failed status checks each consume one attempt; the two are counted
// separately so a timeout caused by an unreachable provider is visible.
func (p *StatusPoller) AwaitCompletion(ctx context.Context, job JobID) error {
	var (
		checkErrors int
		lastErr     error
	)
	for attempt := 1; attempt <= p.cfg.PollMaxAttempts; attempt++ {
		state, err := p.provider.JobStatus(ctx, job)
		switch {
		case err != nil:
			checkErrors++
			lastErr = err
			metrics.ObserveJobPoll("error")
			p.logger.Warn("job status check failed",
				zap.String("job_id", string(job)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		case state.Status == JobFinished:
			metrics.ObserveJobPoll("finished")
			p.logger.Info("job finished", zap.String("job_id", string(job)), zap.Int("polls", attempt))
			return nil
		case state.Status == JobFailed:
			metrics.ObserveJobPoll("failed")
			msg := state.Error
			if msg == "" {
				msg = unknownJobError
			}
			return newError(KindJobFailed, "job execution failed: "+msg, nil)
		default:
			metrics.ObserveJobPoll("pending")
			p.logger.Debug("job still running",
				zap.String("job_id", string(job)),
				zap.String("status", string(state.Status)),
				zap.Int("attempt", attempt),
			)
		}
		if attempt < p.cfg.PollMaxAttempts {
			if err := p.sleeper.Sleep(ctx, p.cfg.PollDelay); err != nil {
				return newError(KindInternal, "job polling interrupted", err)
			}
		}
	}
	msg := "job execution timed out"
	if checkErrors > 0 {
		msg = fmt.Sprintf("%s (%d of %d status checks failed)", msg, checkErrors, p.cfg.PollMaxAttempts)
	}
	return newError(KindJobTimeout, msg, lastErr)
}
