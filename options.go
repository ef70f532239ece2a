package batchjobs

import (
	"log/slog"
	"time"

	"github.com/curatorhq/batchjobs/pkg/core"
	"github.com/curatorhq/batchjobs/pkg/pacer"
	"github.com/curatorhq/batchjobs/pkg/retry"
	"github.com/curatorhq/batchjobs/pkg/validate"
)

// Defaults for the orchestrator.
const (
	DefaultBatchSize = 5
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBatchSize sets how many items run between batch delays.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) { o.batchSize = validate.ClampBatchSize(n) }
}

// WithErrorCap sets the maximum number of item errors retained per job.
func WithErrorCap(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.errorCap = n
		}
	}
}

// WithPacing sets the minimum delays between items and between batches.
func WithPacing(itemDelay, batchDelay time.Duration) Option {
	return func(o *Orchestrator) { o.pacer = pacer.New(itemDelay, batchDelay) }
}

// WithPacer installs a pacer, typically one shared across several
// orchestrators so the external API's global quota is respected.
func WithPacer(p *pacer.Pacer) Option {
	return func(o *Orchestrator) { o.pacer = p }
}

// WithRetryConfig sets the per-item retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(o *Orchestrator) { o.retryCfg = cfg }
}

// WithRetryable sets the predicate distinguishing retryable from terminal
// external-service errors.
func WithRetryable(fn func(error) bool) Option {
	return func(o *Orchestrator) { o.retryable = fn }
}

// WithFailurePolicy decides whether a finished, uncancelled job ends Failed
// instead of Completed. The default fails a job only when it made no
// progress at all: every item failed and none succeeded.
func WithFailurePolicy(fn func(*core.Job) bool) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.failurePolicy = fn
		}
	}
}

// WithRetention sets how long terminal job records are kept.
func WithRetention(d time.Duration) Option {
	return func(o *Orchestrator) { o.retention = d }
}

// WithSweepSchedule sets the sweeper's cron schedule, e.g. "@hourly".
func WithSweepSchedule(spec string) Option {
	return func(o *Orchestrator) { o.sweepSchedule = spec }
}

// WithoutSweeper disables background sweeping; the caller owns record
// cleanup.
func WithoutSweeper() Option {
	return func(o *Orchestrator) { o.sweepDisabled = true }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// SubmitOption configures one submission.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	metadata map[string]any
}

// WithMetadata attaches caller-supplied context to the job, e.g. a requester
// id. The orchestrator stores it opaquely.
func WithMetadata(md map[string]any) SubmitOption {
	return func(s *submitOptions) { s.metadata = md }
}
