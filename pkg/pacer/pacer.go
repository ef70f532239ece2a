// Package pacer enforces minimum spacing between outbound calls to the
// external service, so a batch of work never bursts past its rate limit.
package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Default spacing applied when a delay is not configured.
const (
	DefaultItemDelay  = 2 * time.Second
	DefaultBatchDelay = 3 * time.Second
)

// Pacer paces item-level and batch-level calls with independent token
// buckets. A single Pacer may be shared by any number of concurrently
// running jobs, which makes the pacing global across the process; that is
// the right default when the external API quota is account-wide.
type Pacer struct {
	item  *rate.Limiter
	batch *rate.Limiter
}

// New creates a Pacer with the given minimum delays. A zero or negative
// delay disables pacing for that level.
func New(itemDelay, batchDelay time.Duration) *Pacer {
	return &Pacer{
		item:  newLimiter(itemDelay),
		batch: newLimiter(batchDelay),
	}
}

// Default returns a Pacer with the standard item and batch delays.
func Default() *Pacer {
	return New(DefaultItemDelay, DefaultBatchDelay)
}

func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// WaitItem blocks until the next item call is allowed, or until ctx is
// cancelled. Cancellation returns promptly with the context's error so a
// cancelled job never sits out the full delay.
func (p *Pacer) WaitItem(ctx context.Context) error {
	return p.item.Wait(ctx)
}

// WaitBatch blocks until the next batch may begin, or until ctx is cancelled.
func (p *Pacer) WaitBatch(ctx context.Context) error {
	return p.batch.Wait(ctx)
}
