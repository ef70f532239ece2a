package batchjobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curatorhq/batchjobs/pkg/core"
	"github.com/curatorhq/batchjobs/pkg/pacer"
	"github.com/curatorhq/batchjobs/pkg/retry"
	"github.com/curatorhq/batchjobs/pkg/storage"
	"github.com/curatorhq/batchjobs/pkg/validate"
)

// Orchestrator creates jobs, runs them detached from the submitting caller,
// and answers status, list, and cancel queries. Query operations never block
// on job processing.
type Orchestrator struct {
	store     core.Store
	caller    core.Caller
	pacer     *pacer.Pacer
	exec      *retry.Executor
	sweeper   *storage.Sweeper
	logger    *slog.Logger
	retryCfg  retry.Config
	retryable func(error) bool

	batchSize     int
	errorCap      int
	failurePolicy func(*core.Job) bool
	retention     time.Duration
	sweepSchedule string
	sweepDisabled bool

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup

	hookMu     sync.Mutex
	onStart    []func(*core.Job)
	onComplete []func(*core.Job)
	onFail     []func(*core.Job)
	onCancel   []func(*core.Job)
}

// New creates an Orchestrator over the given store and external service
// caller. The background sweeper starts immediately unless disabled.
func New(store core.Store, caller core.Caller, opts ...Option) (*Orchestrator, error) {
	if caller == nil {
		return nil, core.ErrNilCaller
	}

	o := &Orchestrator{
		store:         store,
		caller:        caller,
		logger:        slog.Default(),
		retryCfg:      retry.DefaultConfig(),
		batchSize:     DefaultBatchSize,
		errorCap:      core.DefaultErrorCap,
		failurePolicy: defaultFailurePolicy,
		retention:     storage.DefaultRetention,
		sweepSchedule: storage.DefaultSweepSchedule,
		cancels:       make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.pacer == nil {
		o.pacer = pacer.Default()
	}

	execOpts := []retry.Option{retry.WithLogger(o.logger)}
	if o.retryable != nil {
		execOpts = append(execOpts, retry.WithRetryable(o.retryable))
	}
	o.exec = retry.New(o.retryCfg, execOpts...)

	if !o.sweepDisabled {
		o.sweeper = storage.NewSweeper(store,
			storage.WithRetention(o.retention),
			storage.WithSweepSchedule(o.sweepSchedule),
			storage.WithSweeperLogger(o.logger),
		)
		if err := o.sweeper.Start(); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// defaultFailurePolicy marks a job Failed only when it made no progress at
// all. Partial failure is not job failure: individual item failures stay in
// the job's bounded error list while the job still completes.
func defaultFailurePolicy(j *core.Job) bool {
	return j.TotalItems > 0 && j.SuccessfulItems == 0 && j.FailedItems == j.TotalItems
}

// Submit creates a pending job for the given items and starts processing it
// on a detached goroutine. It returns the job id immediately and never waits
// on item processing.
func (o *Orchestrator) Submit(ctx context.Context, kind core.Kind, items []core.Item, opts ...SubmitOption) (string, error) {
	if err := validate.Kind(kind); err != nil {
		return "", err
	}
	if err := validate.Items(items); err != nil {
		return "", err
	}

	var so submitOptions
	for _, opt := range opts {
		opt(&so)
	}
	if err := validate.Metadata(so.metadata); err != nil {
		return "", err
	}

	now := time.Now()
	job := &core.Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		Status:     core.StatusPending,
		TotalItems: len(items),
		StartedAt:  now,
		Metadata:   so.metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", core.ErrShuttingDown
	}
	o.mu.Unlock()

	if err := o.store.Create(ctx, job); err != nil {
		return "", err
	}

	// The runner's context is detached from the submitting request: job
	// lifetime is bounded by cancellation and shutdown, not by the caller.
	runCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		_ = o.store.Delete(context.Background(), job.ID)
		return "", core.ErrShuttingDown
	}
	o.cancels[job.ID] = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		defer o.release(job.ID)
		o.runJob(runCtx, job.ID, items)
	}()

	o.logger.Info("job submitted",
		"job_id", job.ID,
		"kind", kind,
		"total_items", len(items))
	return job.ID, nil
}

// Status returns a snapshot of the job, or ErrJobNotFound.
func (o *Orchestrator) Status(ctx context.Context, id string) (*core.Job, error) {
	return o.store.Get(ctx, id)
}

// List returns snapshots of all jobs matching the filter, newest first.
func (o *Orchestrator) List(ctx context.Context, filter core.Filter) ([]*core.Job, error) {
	return o.store.List(ctx, filter)
}

// Cancel requests cooperative cancellation. The runner observes the request
// at its next checkpoint; Cancel does not wait for it. Cancelling a job that
// already reached a terminal state returns ErrJobTerminal without mutating
// the record.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	var terminal bool
	_, err := o.store.Update(ctx, id, func(j *core.Job) {
		if j.Status.Terminal() {
			terminal = true
			return
		}
		j.CancelRequested = true
	})
	if err != nil {
		return err
	}
	if terminal {
		return core.ErrJobTerminal
	}

	// Unblock any in-flight pacing or backoff wait.
	o.mu.Lock()
	if cancel, ok := o.cancels[id]; ok {
		cancel()
	}
	o.mu.Unlock()

	o.logger.Info("job cancellation requested", "job_id", id)
	return nil
}

// HasActiveJobs reports whether any stored job is pending or running. A
// polling client uses this to decide whether to keep polling.
func (o *Orchestrator) HasActiveJobs(ctx context.Context) (bool, error) {
	n, err := o.store.ActiveCount(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats returns aggregate per-status job counts for dashboards.
func (o *Orchestrator) Stats(ctx context.Context) (core.Stats, error) {
	return o.store.Stats(ctx)
}

// OnJobStart registers a hook invoked when a job begins running.
func (o *Orchestrator) OnJobStart(fn func(*core.Job)) {
	o.hookMu.Lock()
	o.onStart = append(o.onStart, fn)
	o.hookMu.Unlock()
}

// OnJobComplete registers a hook invoked when a job completes.
func (o *Orchestrator) OnJobComplete(fn func(*core.Job)) {
	o.hookMu.Lock()
	o.onComplete = append(o.onComplete, fn)
	o.hookMu.Unlock()
}

// OnJobFail registers a hook invoked when a job ends failed.
func (o *Orchestrator) OnJobFail(fn func(*core.Job)) {
	o.hookMu.Lock()
	o.onFail = append(o.onFail, fn)
	o.hookMu.Unlock()
}

// OnJobCancel registers a hook invoked when a job ends cancelled.
func (o *Orchestrator) OnJobCancel(fn func(*core.Job)) {
	o.hookMu.Lock()
	o.onCancel = append(o.onCancel, fn)
	o.hookMu.Unlock()
}

// Shutdown stops the sweeper, requests cancellation of all active jobs, and
// waits for their runners to finish or for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	if o.sweeper != nil {
		o.sweeper.Stop()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	if cancel, ok := o.cancels[id]; ok {
		cancel()
		delete(o.cancels, id)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) fire(hooks *[]func(*core.Job), job *core.Job) {
	o.hookMu.Lock()
	fns := make([]func(*core.Job), len(*hooks))
	copy(fns, *hooks)
	o.hookMu.Unlock()

	for _, fn := range fns {
		fn(job.Clone())
	}
}
