package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvia/erpcore/internal/domain"
)

// DecisionTableRepository implements usecase.DecisionTableRepository.
type DecisionTableRepository struct {
	pool *pgxpool.Pool
}

// NewDecisionTableRepository creates a new DecisionTableRepository.
func NewDecisionTableRepository(pool *pgxpool.Pool) *DecisionTableRepository {
	return &DecisionTableRepository{pool: pool}
}

const tableColumns = `id, code, name, description, input_cols, output_cols, hit_policy, status, version, created_at, updated_at`

// Create persists a decision table with its rows.
func (r *DecisionTableRepository) Create(ctx context.Context, table *domain.DecisionTable) error {
	inputCols, err := json.Marshal(table.InputCols)
	if err != nil {
		return err
	}
	outputCols, err := json.Marshal(table.OutputCols)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO decision_tables (`+tableColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		table.ID, table.Code, table.Name, table.Description, inputCols,
		outputCols, string(table.HitPolicy), string(table.Status),
		table.Version, tsz(table.CreatedAt), tsz(table.UpdatedAt),
	)
	if err != nil {
		return err
	}
	return r.insertRows(ctx, table)
}

func (r *DecisionTableRepository) insertRows(ctx context.Context, table *domain.DecisionTable) error {
	for i := range table.Rows {
		row := &table.Rows[i]
		_, err := r.pool.Exec(ctx, `
			INSERT INTO decision_table_rows (id, table_id, ordinal, priority, active, inputs, outputs)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			row.ID, table.ID, row.Ordinal, row.Priority, row.Active, []byte(row.Inputs), []byte(row.Outputs),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a table with its rows.
func (r *DecisionTableRepository) GetByID(ctx context.Context, id string) (*domain.DecisionTable, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByCode retrieves a table by code.
func (r *DecisionTableRepository) GetByCode(ctx context.Context, code string) (*domain.DecisionTable, error) {
	return r.get(ctx, `WHERE code = $1`, code)
}

func (r *DecisionTableRepository) get(ctx context.Context, where, arg string) (*domain.DecisionTable, error) {
	table, err := scanTable(r.pool.QueryRow(ctx, `SELECT `+tableColumns+` FROM decision_tables `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTableNotFound
		}
		return nil, err
	}
	if err := r.loadRows(ctx, table); err != nil {
		return nil, err
	}
	return table, nil
}

// Update rewrites a table and its rows.
func (r *DecisionTableRepository) Update(ctx context.Context, table *domain.DecisionTable) error {
	inputCols, err := json.Marshal(table.InputCols)
	if err != nil {
		return err
	}
	outputCols, err := json.Marshal(table.OutputCols)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE decision_tables
		SET name = $2, description = $3, input_cols = $4, output_cols = $5,
		    hit_policy = $6, status = $7, version = $8, updated_at = $9
		WHERE id = $1`,
		table.ID, table.Name, table.Description, inputCols, outputCols,
		string(table.HitPolicy), string(table.Status), table.Version,
		tsz(table.UpdatedAt),
	)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM decision_table_rows WHERE table_id = $1`, table.ID); err != nil {
		return err
	}
	return r.insertRows(ctx, table)
}

// List lists tables with pagination, without rows.
func (r *DecisionTableRepository) List(ctx context.Context, page domain.Page) ([]*domain.DecisionTable, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM decision_tables`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+tableColumns+` FROM decision_tables
		ORDER BY code
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tables := make([]*domain.DecisionTable, 0, page.PerPage)
	for rows.Next() {
		table, err := scanTable(rows)
		if err != nil {
			return nil, 0, err
		}
		tables = append(tables, table)
	}
	return tables, total, rows.Err()
}

func (r *DecisionTableRepository) loadRows(ctx context.Context, table *domain.DecisionTable) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, table_id, ordinal, priority, active, inputs, outputs
		FROM decision_table_rows
		WHERE table_id = $1
		ORDER BY ordinal`,
		table.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row             domain.DecisionTableRow
			inputs, outputs []byte
		)
		if err := rows.Scan(&row.ID, &row.TableID, &row.Ordinal, &row.Priority, &row.Active, &inputs, &outputs); err != nil {
			return err
		}
		row.Inputs = inputs
		row.Outputs = outputs
		table.Rows = append(table.Rows, row)
	}
	return rows.Err()
}

func scanTable(row pgx.Row) (*domain.DecisionTable, error) {
	var (
		table                 domain.DecisionTable
		hitPolicy, status     string
		inputCols, outputCols []byte
	)
	err := row.Scan(
		&table.ID, &table.Code, &table.Name, &table.Description, &inputCols,
		&outputCols, &hitPolicy, &status, &table.Version, &table.CreatedAt,
		&table.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(inputCols, &table.InputCols); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(outputCols, &table.OutputCols); err != nil {
		return nil, err
	}
	table.HitPolicy = domain.HitPolicy(hitPolicy)
	table.Status = domain.RuleStatus(status)
	return &table, nil
}
