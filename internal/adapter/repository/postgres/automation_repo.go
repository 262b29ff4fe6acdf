package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// AutomationRepository implements usecase.AutomationRepository.
type AutomationRepository struct {
	pool *pgxpool.Pool
}

// NewAutomationRepository creates a new AutomationRepository.
func NewAutomationRepository(pool *pgxpool.Pool) *AutomationRepository {
	return &AutomationRepository{pool: pool}
}

const automationColumns = `id, code, name, description, trigger_kind, trigger_config, actions, timeout_seconds, max_concurrent_runs, priority, retry_policy, status, version, run_count, success_count, failure_count, avg_duration_millis, tags, created_at, updated_at, created_by`

// Create persists an automation workflow.
func (r *AutomationRepository) Create(ctx context.Context, wf *domain.AutomationWorkflow) error {
	retry, err := retryToJSON(wf.Retry)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO automation_workflows (`+automationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		wf.ID, wf.Code, wf.Name, wf.Description, string(wf.Trigger),
		jsonOrNil(wf.TriggerConfig), []byte(wf.Actions), wf.TimeoutSeconds,
		wf.MaxConcurrentRuns, wf.Priority, retry, string(wf.Status),
		wf.Version, wf.RunCount, wf.SuccessCount, wf.FailureCount,
		wf.AvgDurationMillis, wf.Tags, tsz(wf.CreatedAt), tsz(wf.UpdatedAt),
		wf.CreatedBy,
	)
	return err
}

// GetByID retrieves a workflow by ID.
func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*domain.AutomationWorkflow, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByCode retrieves a workflow by code.
func (r *AutomationRepository) GetByCode(ctx context.Context, code string) (*domain.AutomationWorkflow, error) {
	return r.get(ctx, `WHERE code = $1`, code)
}

func (r *AutomationRepository) get(ctx context.Context, where, arg string) (*domain.AutomationWorkflow, error) {
	wf, err := scanAutomation(r.pool.QueryRow(ctx, `SELECT `+automationColumns+` FROM automation_workflows `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAutomationNotFound
		}
		return nil, err
	}
	return wf, nil
}

// ListByTrigger returns active workflows for a trigger kind.
func (r *AutomationRepository) ListByTrigger(ctx context.Context, trigger domain.TriggerKind) ([]*domain.AutomationWorkflow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+automationColumns+` FROM automation_workflows
		WHERE trigger_kind = $1 AND status = $2
		ORDER BY priority DESC, code`,
		string(trigger), string(domain.AutomationActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*domain.AutomationWorkflow
	for rows.Next() {
		wf, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// Update rewrites a workflow's definition and status.
func (r *AutomationRepository) Update(ctx context.Context, wf *domain.AutomationWorkflow) error {
	retry, err := retryToJSON(wf.Retry)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE automation_workflows
		SET name = $2, description = $3, trigger_config = $4, actions = $5,
		    timeout_seconds = $6, max_concurrent_runs = $7, priority = $8,
		    retry_policy = $9, status = $10, version = $11, tags = $12,
		    updated_at = $13
		WHERE id = $1`,
		wf.ID, wf.Name, wf.Description, jsonOrNil(wf.TriggerConfig),
		[]byte(wf.Actions), wf.TimeoutSeconds, wf.MaxConcurrentRuns,
		wf.Priority, retry, string(wf.Status), wf.Version, wf.Tags,
		tsz(wf.UpdatedAt),
	)
	return err
}

// UpdateCounters folds one run's outcome into a workflow's statistics.
func (r *AutomationRepository) UpdateCounters(ctx context.Context, tx usecase.Transaction, wf *domain.AutomationWorkflow) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE automation_workflows
		SET run_count = $2, success_count = $3, failure_count = $4,
		    avg_duration_millis = $5, updated_at = $6
		WHERE id = $1`,
		wf.ID, wf.RunCount, wf.SuccessCount, wf.FailureCount,
		wf.AvgDurationMillis, tsz(wf.UpdatedAt),
	)
	return err
}

// List lists workflows with pagination.
func (r *AutomationRepository) List(ctx context.Context, page domain.Page) ([]*domain.AutomationWorkflow, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM automation_workflows`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+automationColumns+` FROM automation_workflows
		ORDER BY code
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	workflows := make([]*domain.AutomationWorkflow, 0, page.PerPage)
	for rows.Next() {
		wf, err := scanAutomation(rows)
		if err != nil {
			return nil, 0, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, total, rows.Err()
}

func scanAutomation(row pgx.Row) (*domain.AutomationWorkflow, error) {
	var (
		wf                            domain.AutomationWorkflow
		trigger, status               string
		triggerConfig, actions, retry []byte
	)
	err := row.Scan(
		&wf.ID, &wf.Code, &wf.Name, &wf.Description, &trigger, &triggerConfig,
		&actions, &wf.TimeoutSeconds, &wf.MaxConcurrentRuns, &wf.Priority,
		&retry, &status, &wf.Version, &wf.RunCount, &wf.SuccessCount,
		&wf.FailureCount, &wf.AvgDurationMillis, &wf.Tags, &wf.CreatedAt,
		&wf.UpdatedAt, &wf.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	wf.Trigger = domain.TriggerKind(trigger)
	wf.Status = domain.AutomationStatus(status)
	wf.TriggerConfig = triggerConfig
	wf.Actions = actions
	if len(retry) > 0 {
		var policy domain.RetryPolicy
		if err := json.Unmarshal(retry, &policy); err != nil {
			return nil, err
		}
		wf.Retry = &policy
	}
	return &wf, nil
}

func retryToJSON(policy *domain.RetryPolicy) ([]byte, error) {
	if policy == nil {
		return nil, nil
	}
	return json.Marshal(policy)
}
