package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/curatorhq/batchjobs/pkg/core"
)

// Sweeper defaults.
const (
	DefaultRetention     = 24 * time.Hour
	DefaultSweepSchedule = "@hourly"
)

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithRetention sets how long terminal jobs are kept after completion.
func WithRetention(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.retention = d }
}

// WithSweepSchedule sets the cron schedule for sweep runs, e.g. "@hourly"
// or "@every 30m".
func WithSweepSchedule(spec string) SweeperOption {
	return func(s *Sweeper) { s.schedule = spec }
}

// WithSweeperLogger sets the sweeper's logger.
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = logger }
}

// Sweeper periodically deletes terminal job records whose CompletedAt
// predates the retention window. Records still pending or running are never
// removed regardless of age, so a stuck job cannot silently disappear while
// it is doing work.
type Sweeper struct {
	store     core.Store
	retention time.Duration
	schedule  string
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewSweeper creates a sweeper for the given store.
func NewSweeper(store core.Store, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:     store,
		retention: DefaultRetention,
		schedule:  DefaultSweepSchedule,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins scheduled sweeping. It returns an error if the configured
// schedule does not parse.
func (s *Sweeper) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts scheduled sweeping. An in-flight sweep runs to completion.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sweep deletes expired terminal records once and returns how many were
// removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	jobs, err := s.store.List(ctx, core.Filter{})
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-s.retention)
	removed := 0
	for _, job := range jobs {
		if !job.Status.Terminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, job.ID); err != nil {
			// Another sweep or an explicit delete may have raced us.
			if errors.Is(err, core.ErrJobNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("swept expired job records", "removed", removed, "retention", s.retention)
	}
	return removed, nil
}
