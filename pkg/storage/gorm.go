package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/curatorhq/batchjobs/pkg/core"
)

// jobRow is the database representation of a core.Job. Errors and Metadata
// are stored as JSON blobs; the bounded-list invariant is enforced before
// rows are written, never by the database.
type jobRow struct {
	ID              string `gorm:"primaryKey;size:36"`
	Kind            string `gorm:"index;size:64"`
	Status          string `gorm:"index;size:20;default:'pending'"`
	TotalItems      int    `gorm:"default:0"`
	ProcessedItems  int    `gorm:"default:0"`
	SuccessfulItems int    `gorm:"default:0"`
	FailedItems     int    `gorm:"default:0"`
	Errors          []byte `gorm:"type:bytes"`
	Metadata        []byte `gorm:"type:bytes"`
	StartedAt       time.Time
	CompletedAt     *time.Time `gorm:"index"`
	CancelRequested bool       `gorm:"default:false"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

func (jobRow) TableName() string { return "batch_jobs" }

// GormStore implements core.Store using GORM, for deployments that want job
// records to survive a process restart.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying gorm handle.
func (s *GormStore) DB() *gorm.DB { return s.db }

// Migrate creates the necessary tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&jobRow{})
}

// Create stores a new job record.
func (s *GormStore) Create(ctx context.Context, job *core.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing jobRow
		err := tx.Select("id").First(&existing, "id = ?", job.ID).Error
		if err == nil {
			return core.ErrDuplicateJob
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(row).Error
	})
}

// Get returns a snapshot of the job.
func (s *GormStore) Get(ctx context.Context, id string) (*core.Job, error) {
	var row jobRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&row)
}

// List returns all jobs matching the filter, newest first.
func (s *GormStore) List(ctx context.Context, filter core.Filter) ([]*core.Job, error) {
	q := s.db.WithContext(ctx).Model(&jobRow{})
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}
	if filter.Kind != nil {
		q = q.Where("kind = ?", string(*filter.Kind))
	}

	var rows []jobRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	jobs := make([]*core.Job, 0, len(rows))
	for i := range rows {
		job, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Update applies fn inside a transaction so the read-modify-write is atomic
// with respect to concurrent readers and the sweeper.
func (s *GormStore) Update(ctx context.Context, id string, fn func(*core.Job)) (*core.Job, error) {
	var updated *core.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row jobRow
		err := tx.First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.ErrJobNotFound
		}
		if err != nil {
			return err
		}

		job, err := fromRow(&row)
		if err != nil {
			return err
		}
		fn(job)
		job.UpdatedAt = time.Now()

		next, err := toRow(job)
		if err != nil {
			return err
		}
		if err := tx.Save(next).Error; err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record.
func (s *GormStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&jobRow{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// ActiveCount returns the number of pending or running jobs.
func (s *GormStore) ActiveCount(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&jobRow{}).
		Where("status IN ?", []string{string(core.StatusPending), string(core.StatusRunning)}).
		Count(&count).Error
	return int(count), err
}

// Stats returns per-status job counts.
func (s *GormStore) Stats(ctx context.Context) (core.Stats, error) {
	type statusCount struct {
		Status string
		N      int
	}
	var counts []statusCount
	err := s.db.WithContext(ctx).
		Model(&jobRow{}).
		Select("status, count(*) as n").
		Group("status").
		Find(&counts).Error
	if err != nil {
		return core.Stats{}, err
	}

	var stats core.Stats
	for _, c := range counts {
		switch core.Status(c.Status) {
		case core.StatusPending:
			stats.Pending = c.N
		case core.StatusRunning:
			stats.Running = c.N
		case core.StatusCompleted:
			stats.Completed = c.N
		case core.StatusFailed:
			stats.Failed = c.N
		case core.StatusCancelled:
			stats.Cancelled = c.N
		}
	}
	stats.Active = stats.Pending+stats.Running > 0
	return stats, nil
}

func toRow(job *core.Job) (*jobRow, error) {
	var errBytes, mdBytes []byte
	var err error
	if len(job.Errors) > 0 {
		if errBytes, err = json.Marshal(job.Errors); err != nil {
			return nil, fmt.Errorf("batchjobs: failed to marshal job errors: %w", err)
		}
	}
	if len(job.Metadata) > 0 {
		if mdBytes, err = json.Marshal(job.Metadata); err != nil {
			return nil, fmt.Errorf("batchjobs: failed to marshal job metadata: %w", err)
		}
	}

	return &jobRow{
		ID:              job.ID,
		Kind:            string(job.Kind),
		Status:          string(job.Status),
		TotalItems:      job.TotalItems,
		ProcessedItems:  job.ProcessedItems,
		SuccessfulItems: job.SuccessfulItems,
		FailedItems:     job.FailedItems,
		Errors:          errBytes,
		Metadata:        mdBytes,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		CancelRequested: job.CancelRequested,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}, nil
}

func fromRow(row *jobRow) (*core.Job, error) {
	job := &core.Job{
		ID:              row.ID,
		Kind:            core.Kind(row.Kind),
		Status:          core.Status(row.Status),
		TotalItems:      row.TotalItems,
		ProcessedItems:  row.ProcessedItems,
		SuccessfulItems: row.SuccessfulItems,
		FailedItems:     row.FailedItems,
		StartedAt:       row.StartedAt,
		CompletedAt:     row.CompletedAt,
		CancelRequested: row.CancelRequested,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if len(row.Errors) > 0 {
		if err := json.Unmarshal(row.Errors, &job.Errors); err != nil {
			return nil, fmt.Errorf("batchjobs: failed to unmarshal job errors: %w", err)
		}
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("batchjobs: failed to unmarshal job metadata: %w", err)
		}
	}
	return job, nil
}
