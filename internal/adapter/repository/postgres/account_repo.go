package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvia/erpcore/internal/domain"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, code, name, class, parent_id, description, status, created_at, updated_at, created_by`

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		account.ID, account.Code, account.Name, string(account.Class),
		account.ParentID, account.Description, string(account.Status),
		tsz(account.CreatedAt), tsz(account.UpdatedAt), account.CreatedBy,
	)
	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// GetByCode retrieves an account by its chart code.
func (r *AccountRepository) GetByCode(ctx context.Context, code string) (*domain.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = $1`, code)
}

func (r *AccountRepository) get(ctx context.Context, query, arg string) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// List lists accounts with pagination, ordered by code.
func (r *AccountRepository) List(ctx context.Context, page domain.Page) ([]*domain.Account, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY code
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0, page.PerPage)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, account)
	}
	return accounts, total, rows.Err()
}

// Update updates the mutable fields of an account.
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET name = $2, parent_id = $3, description = $4, updated_at = $5
		WHERE id = $1`,
		account.ID, account.Name, account.ParentID, account.Description,
		tsz(account.UpdatedAt),
	)
	return err
}

// UpdateStatus changes an account's lifecycle status.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, updatedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), tsz(updatedAt),
	)
	return err
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a             domain.Account
		class, status string
	)
	err := row.Scan(
		&a.ID, &a.Code, &a.Name, &class, &a.ParentID, &a.Description,
		&status, &a.CreatedAt, &a.UpdatedAt, &a.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	a.Class = domain.AccountClass(class)
	a.Status = domain.AccountStatus(status)
	return &a, nil
}
