package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// ScheduledJobRepository implements usecase.ScheduledJobRepository.
type ScheduledJobRepository struct {
	pool *pgxpool.Pool
}

// NewScheduledJobRepository creates a new ScheduledJobRepository.
func NewScheduledJobRepository(pool *pgxpool.Pool) *ScheduledJobRepository {
	return &ScheduledJobRepository{pool: pool}
}

const jobColumns = `id, name, workflow_id, cron_spec, timezone, misfire, is_active, next_run_at, last_run_at, run_count, failure_count, created_at, updated_at`

// Create persists a scheduled job.
func (r *ScheduledJobRepository) Create(ctx context.Context, job *domain.ScheduledJob) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		job.ID, job.Name, job.WorkflowID, job.CronSpec, job.Timezone,
		string(job.Misfire), job.IsActive, tszPtr(job.NextRunAt),
		tszPtr(job.LastRunAt), job.RunCount, job.FailureCount,
		tsz(job.CreatedAt), tsz(job.UpdatedAt),
	)
	return err
}

// GetByID retrieves a job by ID.
func (r *ScheduledJobRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListDue returns active jobs whose next run has arrived, locked so
// concurrent scheduler ticks do not double-fire.
func (r *ScheduledJobRepository) ListDue(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.ScheduledJob, error) {
	rows, err := txq(tx).Query(ctx, `
		SELECT `+jobColumns+` FROM scheduled_jobs
		WHERE is_active AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at
		FOR UPDATE SKIP LOCKED`,
		tsz(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*domain.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, job)
	}
	return due, rows.Err()
}

// UpdateSchedule rewrites a job's run bookkeeping.
func (r *ScheduledJobRepository) UpdateSchedule(ctx context.Context, tx usecase.Transaction, job *domain.ScheduledJob) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE scheduled_jobs
		SET is_active = $2, next_run_at = $3, last_run_at = $4, run_count = $5,
		    failure_count = $6, updated_at = $7
		WHERE id = $1`,
		job.ID, job.IsActive, tszPtr(job.NextRunAt), tszPtr(job.LastRunAt),
		job.RunCount, job.FailureCount, tsz(job.UpdatedAt),
	)
	return err
}

// List lists jobs with pagination.
func (r *ScheduledJobRepository) List(ctx context.Context, page domain.Page) ([]*domain.ScheduledJob, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM scheduled_jobs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM scheduled_jobs
		ORDER BY name
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	jobs := make([]*domain.ScheduledJob, 0, page.PerPage)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

func scanJob(row pgx.Row) (*domain.ScheduledJob, error) {
	var (
		job                  domain.ScheduledJob
		misfire              string
		nextRunAt, lastRunAt *time.Time
	)
	err := row.Scan(
		&job.ID, &job.Name, &job.WorkflowID, &job.CronSpec, &job.Timezone,
		&misfire, &job.IsActive, &nextRunAt, &lastRunAt, &job.RunCount,
		&job.FailureCount, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Misfire = domain.MisfirePolicy(misfire)
	job.NextRunAt = nextRunAt
	job.LastRunAt = lastRunAt
	return &job, nil
}
