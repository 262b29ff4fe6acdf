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

// PeriodRepository implements usecase.PeriodRepository.
type PeriodRepository struct {
	pool *pgxpool.Pool
}

// NewPeriodRepository creates a new PeriodRepository.
func NewPeriodRepository(pool *pgxpool.Pool) *PeriodRepository {
	return &PeriodRepository{pool: pool}
}

const periodColumns = `id, fiscal_year_id, ordinal, name, start_date, end_date, lock_state, locked_at, created_at, updated_at`

// CreateFiscalYear persists a fiscal year.
func (r *PeriodRepository) CreateFiscalYear(ctx context.Context, year *domain.FiscalYear) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO fiscal_years (id, name, start_date, end_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		year.ID, year.Name, tsz(year.StartDate), tsz(year.EndDate),
		string(year.Status), tsz(year.CreatedAt), tsz(year.UpdatedAt),
	)
	return err
}

// GetFiscalYear retrieves a fiscal year by ID.
func (r *PeriodRepository) GetFiscalYear(ctx context.Context, id string) (*domain.FiscalYear, error) {
	year, err := scanFiscalYear(r.pool.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, status, created_at, updated_at
		FROM fiscal_years WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFiscalYearNotFound
		}
		return nil, err
	}
	return year, nil
}

// ListFiscalYears lists all fiscal years ordered by start date.
func (r *PeriodRepository) ListFiscalYears(ctx context.Context) ([]*domain.FiscalYear, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, start_date, end_date, status, created_at, updated_at
		FROM fiscal_years ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []*domain.FiscalYear
	for rows.Next() {
		year, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, year)
	}
	return years, rows.Err()
}

// CreatePeriod persists an accounting period.
func (r *PeriodRepository) CreatePeriod(ctx context.Context, period *domain.AccountingPeriod) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounting_periods (`+periodColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		period.ID, period.FiscalYearID, period.Ordinal, period.Name,
		tsz(period.StartDate), tsz(period.EndDate), string(period.Lock),
		tszPtr(period.LockedAt), tsz(period.CreatedAt), tsz(period.UpdatedAt),
	)
	return err
}

// GetPeriod retrieves a period by ID.
func (r *PeriodRepository) GetPeriod(ctx context.Context, id string) (*domain.AccountingPeriod, error) {
	return r.getPeriod(ctx, r.pool, `WHERE id = $1`, "", id)
}

// FindByDate resolves the period containing a date, locking the row so
// posting races with period closes serialize.
func (r *PeriodRepository) FindByDate(ctx context.Context, tx usecase.Transaction, date time.Time) (*domain.AccountingPeriod, error) {
	return r.getPeriod(ctx, txq(tx), `WHERE start_date <= $1 AND end_date >= $1`, " FOR UPDATE", tsz(date))
}

// GetPeriodForUpdate retrieves a period with a FOR UPDATE lock.
func (r *PeriodRepository) GetPeriodForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.AccountingPeriod, error) {
	return r.getPeriod(ctx, txq(tx), `WHERE id = $1`, " FOR UPDATE", id)
}

func (r *PeriodRepository) getPeriod(ctx context.Context, q querier, where, suffix string, arg any) (*domain.AccountingPeriod, error) {
	period, err := scanPeriod(q.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods `+where+suffix, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPeriodNotFound
		}
		return nil, err
	}
	return period, nil
}

// UpdateLock tightens a period's lock state.
func (r *PeriodRepository) UpdateLock(ctx context.Context, tx usecase.Transaction, id string, lock domain.PeriodLock, updatedAt time.Time) error {
	var lockedAt any
	if lock != domain.PeriodOpen {
		lockedAt = tsz(updatedAt)
	}
	_, err := txq(tx).Exec(ctx, `
		UPDATE accounting_periods
		SET lock_state = $2, locked_at = $3, updated_at = $4
		WHERE id = $1`,
		id, string(lock), lockedAt, tsz(updatedAt),
	)
	return err
}

func scanFiscalYear(row pgx.Row) (*domain.FiscalYear, error) {
	var (
		y      domain.FiscalYear
		status string
	)
	err := row.Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &status, &y.CreatedAt, &y.UpdatedAt)
	if err != nil {
		return nil, err
	}
	y.Status = domain.FiscalYearStatus(status)
	return &y, nil
}

func scanPeriod(row pgx.Row) (*domain.AccountingPeriod, error) {
	var (
		p        domain.AccountingPeriod
		lock     string
		lockedAt *time.Time
	)
	err := row.Scan(
		&p.ID, &p.FiscalYearID, &p.Ordinal, &p.Name, &p.StartDate, &p.EndDate,
		&lock, &lockedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Lock = domain.PeriodLock(lock)
	p.LockedAt = lockedAt
	return &p, nil
}
