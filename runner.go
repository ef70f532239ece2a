package batchjobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curatorhq/batchjobs/pkg/core"
	"github.com/curatorhq/batchjobs/pkg/validate"
)

// runJob drives one job's items to completion: fixed-size batches in
// submission order, paced waits between items and batches, bounded retries
// per item, and a cancellation check after every item.
//
// Store bookkeeping always uses a background context. Cancelling runCtx must
// stop the external calls, not the record updates that describe the stop.
func (o *Orchestrator) runJob(runCtx context.Context, id string, items []core.Item) {
	bg := context.Background()

	snap, err := o.store.Update(bg, id, func(j *core.Job) {
		if j.CancelRequested {
			return // never ran; finalized as cancelled below
		}
		j.Status = core.StatusRunning
	})
	if err != nil {
		o.logger.Error("failed to start job", "job_id", id, "error", err)
		return
	}
	if snap.CancelRequested {
		o.finalize(id, true)
		return
	}
	o.fire(&o.onStart, snap)

	cancelled := false

batches:
	for start := 0; start < len(items); start += o.batchSize {
		if start > 0 {
			if err := o.pacer.WaitBatch(runCtx); err != nil {
				cancelled = true
				break
			}
		}

		end := start + o.batchSize
		if end > len(items) {
			end = len(items)
		}

		for _, item := range items[start:end] {
			if err := o.pacer.WaitItem(runCtx); err != nil {
				cancelled = true
				break batches
			}

			callErr := o.exec.Execute(runCtx, func(ctx context.Context) error {
				return o.callItem(ctx, item)
			})

			// An item interrupted by job cancellation is neither a success
			// nor a failure; it stays unprocessed.
			if runCtx.Err() != nil && errors.Is(callErr, context.Canceled) {
				cancelled = true
				break batches
			}

			snap, err = o.store.Update(bg, id, func(j *core.Job) {
				j.ProcessedItems++
				if callErr == nil {
					j.SuccessfulItems++
				} else {
					j.FailedItems++
					j.RecordError(item.ID, validate.SanitizeErrorMessage(callErr.Error()), o.errorCap)
				}
			})
			if err != nil {
				o.logger.Error("failed to record item outcome", "job_id", id, "item", item.ID, "error", err)
				return
			}
			if callErr != nil {
				o.logger.Warn("item failed",
					"job_id", id,
					"item", item.ID,
					"error", callErr)
			}

			if snap.CancelRequested || runCtx.Err() != nil {
				cancelled = true
				break batches
			}
		}
	}

	o.finalize(id, cancelled)
}

// callItem performs one external call, converting a panic inside the client
// into an ordinary item failure so the rest of the batch proceeds. Panics
// are not retried.
func (o *Orchestrator) callItem(ctx context.Context, item core.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NoRetry(fmt.Errorf("panic in external call: %v", r))
		}
	}()
	_, err = o.caller.Call(ctx, item)
	return err
}

// finalize moves the job to its terminal state exactly once and fires the
// matching hooks.
func (o *Orchestrator) finalize(id string, cancelled bool) {
	snap, err := o.store.Update(context.Background(), id, func(j *core.Job) {
		if j.Status.Terminal() {
			return
		}
		now := time.Now()
		j.CompletedAt = &now
		switch {
		case cancelled || j.CancelRequested:
			j.Status = core.StatusCancelled
		case o.failurePolicy(j):
			j.Status = core.StatusFailed
		default:
			j.Status = core.StatusCompleted
		}
	})
	if err != nil {
		// Swept or deleted mid-run; nothing left to finalize.
		if !errors.Is(err, core.ErrJobNotFound) {
			o.logger.Error("failed to finalize job", "job_id", id, "error", err)
		}
		return
	}

	o.logger.Info("job finished",
		"job_id", id,
		"status", snap.Status,
		"processed", snap.ProcessedItems,
		"successful", snap.SuccessfulItems,
		"failed", snap.FailedItems)

	switch snap.Status {
	case core.StatusCancelled:
		o.fire(&o.onCancel, snap)
	case core.StatusFailed:
		o.fire(&o.onFail, snap)
	case core.StatusCompleted:
		o.fire(&o.onComplete, snap)
	}
}
