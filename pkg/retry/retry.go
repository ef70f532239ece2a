// Package retry wraps a single unit of work with bounded retries,
// exponential backoff, and a whole-item time budget.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/curatorhq/batchjobs/pkg/core"
)

// Config holds configuration for retry with backoff.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the backoff after the first failed attempt.
	// Default: 1s
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	// Default: 30s
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to the backoff after each attempt.
	// Default: 2.0
	BackoffMultiplier float64

	// JitterFraction is the fraction of backoff to randomize (0.0 to 1.0).
	// Default: 0.1 (10% jitter)
	JitterFraction float64

	// ItemTimeout bounds the total wall-clock time for one item, attempts
	// and backoff sleeps included. Zero disables the budget.
	// Default: 5m
	ItemTimeout time.Duration
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
		ItemTimeout:       5 * time.Minute,
	}
}

// Option configures an Executor.
type Option func(*Executor)

// WithRetryable sets the predicate deciding whether an error is worth
// retrying. Errors wrapped with core.NoRetry are never retried regardless.
func WithRetryable(fn func(error) bool) Option {
	return func(e *Executor) { e.retryable = fn }
}

// WithLogger sets the logger used for intermediate attempt failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// Executor runs operations with the configured retry policy. Only the final
// failure is surfaced; intermediate failures are logged at debug level.
type Executor struct {
	cfg       Config
	retryable func(error) bool
	logger    *slog.Logger
}

// New creates an Executor. Zero config fields fall back to defaults.
func New(cfg Config, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.JitterFraction < 0 || cfg.JitterFraction > 1 {
		cfg.JitterFraction = def.JitterFraction
	}

	e := &Executor{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs op until it succeeds, exhausts attempts, runs out of the item
// budget, or fails terminally. Cancellation is checked before each attempt
// and during backoff sleeps; a cancelled context surfaces ctx.Err so the
// caller can tell cancellation apart from an ordinary failure.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	var deadline time.Time
	if e.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ItemTimeout)
		defer cancel()
		deadline, _ = ctx.Deadline()
	}

	var lastErr error
	backoff := e.cfg.InitialBackoff

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		// Don't retry on context cancellation
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		var noRetry *core.NoRetryError
		if errors.As(lastErr, &noRetry) {
			return lastErr
		}

		if e.retryable != nil && !e.retryable(lastErr) {
			return lastErr
		}

		if attempt >= e.cfg.MaxAttempts {
			break
		}

		sleep := e.backoffFor(backoff, lastErr)

		// The remaining item budget must cover the sleep; otherwise abort
		// early rather than sleep into a guaranteed timeout.
		if !deadline.IsZero() && time.Now().Add(sleep).After(deadline) {
			return lastErr
		}

		e.logger.Debug("attempt failed, backing off",
			"attempt", attempt,
			"backoff", sleep,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * e.cfg.BackoffMultiplier)
		if backoff > e.cfg.MaxBackoff {
			backoff = e.cfg.MaxBackoff
		}
	}

	return lastErr
}

// backoffFor honors a RetryAfterError delay when present, otherwise applies
// the jittered exponential backoff.
func (e *Executor) backoffFor(backoff time.Duration, err error) time.Duration {
	var retryAfter *core.RetryAfterError
	if errors.As(err, &retryAfter) && retryAfter.Delay > 0 {
		return retryAfter.Delay
	}

	jitter := time.Duration(float64(backoff) * e.cfg.JitterFraction * (rand.Float64()*2 - 1))
	sleep := backoff + jitter
	if sleep < 0 {
		sleep = backoff
	}
	return sleep
}
