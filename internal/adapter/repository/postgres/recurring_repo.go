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

// RecurringRepository implements usecase.RecurringRepository.
type RecurringRepository struct {
	pool *pgxpool.Pool
}

// NewRecurringRepository creates a new RecurringRepository.
func NewRecurringRepository(pool *pgxpool.Pool) *RecurringRepository {
	return &RecurringRepository{pool: pool}
}

const recurringColumns = `id, name, description, currency, frequency, run_interval, day_of_month, day_of_week, auto_post, active, next_run, last_run, created_at, updated_at, created_by`

// Create persists a recurring journal template with its lines.
func (r *RecurringRepository) Create(ctx context.Context, rj *domain.RecurringJournal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO recurring_journals (`+recurringColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rj.ID, rj.Name, rj.Description, rj.Currency, string(rj.Frequency),
		rj.Interval, rj.DayOfMonth, rj.DayOfWeek, rj.AutoPost, rj.Active,
		tsz(rj.NextRun), tszPtr(rj.LastRun), tsz(rj.CreatedAt), tsz(rj.UpdatedAt),
		rj.CreatedBy,
	)
	if err != nil {
		return err
	}

	for i := range rj.Lines {
		line := &rj.Lines[i]
		_, err := r.pool.Exec(ctx, `
			INSERT INTO recurring_journal_lines (id, recurring_id, account_id, debit, credit, memo, ordinal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			line.ID, rj.ID, line.AccountID, int64(line.Debit), int64(line.Credit), line.Memo, i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a recurring journal with its lines.
func (r *RecurringRepository) GetByID(ctx context.Context, id string) (*domain.RecurringJournal, error) {
	rj, err := scanRecurring(r.pool.QueryRow(ctx, `
		SELECT `+recurringColumns+` FROM recurring_journals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecurringNotFound
		}
		return nil, err
	}
	if err := r.loadLines(ctx, r.pool, rj); err != nil {
		return nil, err
	}
	return rj, nil
}

// ListDue returns active templates whose next run is not in the future,
// locked so concurrent schedulers do not double-generate.
func (r *RecurringRepository) ListDue(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.RecurringJournal, error) {
	q := txq(tx)
	rows, err := q.Query(ctx, `
		SELECT `+recurringColumns+` FROM recurring_journals
		WHERE active AND next_run <= $1
		ORDER BY next_run
		FOR UPDATE SKIP LOCKED`,
		tsz(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*domain.RecurringJournal
	for rows.Next() {
		rj, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, rj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rj := range due {
		if err := r.loadLines(ctx, q, rj); err != nil {
			return nil, err
		}
	}
	return due, nil
}

// UpdateSchedule advances a template's run bookkeeping.
func (r *RecurringRepository) UpdateSchedule(ctx context.Context, tx usecase.Transaction, id string, nextRun, lastRun time.Time) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE recurring_journals
		SET next_run = $2, last_run = $3, updated_at = $3
		WHERE id = $1`,
		id, tsz(nextRun), tsz(lastRun),
	)
	return err
}

// List lists templates with pagination.
func (r *RecurringRepository) List(ctx context.Context, page domain.Page) ([]*domain.RecurringJournal, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM recurring_journals`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+recurringColumns+` FROM recurring_journals
		ORDER BY name
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	templates := make([]*domain.RecurringJournal, 0, page.PerPage)
	for rows.Next() {
		rj, err := scanRecurring(rows)
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, rj)
	}
	return templates, total, rows.Err()
}

func (r *RecurringRepository) loadLines(ctx context.Context, q querier, rj *domain.RecurringJournal) error {
	rows, err := q.Query(ctx, `
		SELECT id, account_id, debit, credit, memo
		FROM recurring_journal_lines
		WHERE recurring_id = $1
		ORDER BY ordinal`,
		rj.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line          domain.JournalLine
			debit, credit int64
		)
		if err := rows.Scan(&line.ID, &line.AccountID, &debit, &credit, &line.Memo); err != nil {
			return err
		}
		line.Debit = domain.Money(debit)
		line.Credit = domain.Money(credit)
		rj.Lines = append(rj.Lines, line)
	}
	return rows.Err()
}

func scanRecurring(row pgx.Row) (*domain.RecurringJournal, error) {
	var (
		rj        domain.RecurringJournal
		frequency string
		lastRun   *time.Time
	)
	err := row.Scan(
		&rj.ID, &rj.Name, &rj.Description, &rj.Currency, &frequency,
		&rj.Interval, &rj.DayOfMonth, &rj.DayOfWeek, &rj.AutoPost, &rj.Active,
		&rj.NextRun, &lastRun, &rj.CreatedAt, &rj.UpdatedAt, &rj.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	rj.Frequency = domain.Frequency(frequency)
	rj.LastRun = lastRun
	return &rj, nil
}
