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

// ExecutionRepository implements usecase.ExecutionRepository.
type ExecutionRepository struct {
	pool *pgxpool.Pool
}

// NewExecutionRepository creates a new ExecutionRepository.
func NewExecutionRepository(pool *pgxpool.Pool) *ExecutionRepository {
	return &ExecutionRepository{pool: pool}
}

const executionColumns = `id, number, workflow_id, workflow_code, trigger_data, status, current_step, total_steps, completed_steps, checkpoint, resume_token, error_step, error_message, retry_count, correlation_id, priority, cancel_requested, lease_owner, lease_expires_at, started_at, completed_at, created_at, updated_at`

// Create persists an execution inside the caller's transaction.
func (r *ExecutionRepository) Create(ctx context.Context, tx usecase.Transaction, exec *domain.WorkflowExecution) error {
	_, err := txq(tx).Exec(ctx, `
		INSERT INTO workflow_executions (`+executionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		exec.ID, exec.Number, exec.WorkflowID, exec.WorkflowCode,
		jsonOrNil(exec.TriggerData), string(exec.Status), exec.CurrentStep,
		exec.TotalSteps, exec.CompletedSteps, jsonOrNil(exec.Checkpoint),
		exec.ResumeToken, exec.ErrorStep, exec.ErrorMessage, exec.RetryCount,
		exec.CorrelationID, exec.Priority, exec.CancelRequested,
		exec.LeaseOwner, tszPtr(exec.LeaseExpiresAt),
		tszPtr(exec.StartedAt), tszPtr(exec.CompletedAt), tsz(exec.CreatedAt),
		tsz(exec.UpdatedAt),
	)
	return err
}

// GetByID retrieves an execution by ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	return r.getExecution(ctx, r.pool, `WHERE id = $1`, "", id)
}

// GetByIDForUpdate locks an execution row so state transitions serialize.
func (r *ExecutionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.WorkflowExecution, error) {
	return r.getExecution(ctx, txq(tx), `WHERE id = $1`, " FOR UPDATE", id)
}

func (r *ExecutionRepository) getExecution(ctx context.Context, q querier, where, suffix string, args ...any) (*domain.WorkflowExecution, error) {
	exec, err := scanExecution(q.QueryRow(ctx, `SELECT `+executionColumns+` FROM workflow_executions `+where+suffix, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, err
	}
	return exec, nil
}

// Update rewrites an execution's mutable state.
func (r *ExecutionRepository) Update(ctx context.Context, tx usecase.Transaction, exec *domain.WorkflowExecution) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE workflow_executions
		SET status = $2, current_step = $3, completed_steps = $4,
		    checkpoint = $5, resume_token = $6, error_step = $7,
		    error_message = $8, retry_count = $9, cancel_requested = $10,
		    lease_owner = $11, lease_expires_at = $12,
		    started_at = $13, completed_at = $14, updated_at = $15
		WHERE id = $1`,
		exec.ID, string(exec.Status), exec.CurrentStep, exec.CompletedSteps,
		jsonOrNil(exec.Checkpoint), exec.ResumeToken, exec.ErrorStep,
		exec.ErrorMessage, exec.RetryCount, exec.CancelRequested,
		exec.LeaseOwner, tszPtr(exec.LeaseExpiresAt),
		tszPtr(exec.StartedAt), tszPtr(exec.CompletedAt), tsz(exec.UpdatedAt),
	)
	return err
}

// CountRunning counts executions holding a slot for a workflow, inside
// the admitting transaction.
func (r *ExecutionRepository) CountRunning(ctx context.Context, tx usecase.Transaction, workflowID string) (int, error) {
	var count int
	err := txq(tx).QueryRow(ctx, `
		SELECT count(*) FROM workflow_executions
		WHERE workflow_id = $1 AND status = ANY($2)`,
		workflowID, []string{string(domain.ExecutionRunning), string(domain.ExecutionWaiting)},
	).Scan(&count)
	return count, err
}

// NextAdmissible picks the pending execution with the highest priority,
// FIFO within a priority, locking it for admission.
func (r *ExecutionRepository) NextAdmissible(ctx context.Context, tx usecase.Transaction, workflowID string) (*domain.WorkflowExecution, error) {
	return r.getExecution(ctx, txq(tx), `
		WHERE workflow_id = $1 AND status = $2
		ORDER BY priority DESC, created_at`,
		" FOR UPDATE SKIP LOCKED LIMIT 1",
		workflowID, string(domain.ExecutionPending),
	)
}

// ListPendingWorkflows returns the distinct workflow IDs holding
// pending executions.
func (r *ExecutionRepository) ListPendingWorkflows(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT workflow_id FROM workflow_executions WHERE status = $1`,
		string(domain.ExecutionPending),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RequestCancel flags a running execution for cooperative cancellation.
func (r *ExecutionRepository) RequestCancel(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE workflow_executions SET cancel_requested = TRUE WHERE id = $1`, id)
	return err
}

// ListByWorkflow lists a workflow's executions newest-first.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, page domain.Page) ([]*domain.WorkflowExecution, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM workflow_executions WHERE workflow_id = $1`, workflowID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+executionColumns+` FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		workflowID, page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	executions := make([]*domain.WorkflowExecution, 0, page.PerPage)
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, 0, err
		}
		executions = append(executions, exec)
	}
	return executions, total, rows.Err()
}

// NextSequence reserves the next execution number for a year.
func (r *ExecutionRepository) NextSequence(ctx context.Context, tx usecase.Transaction, year int) (int64, error) {
	return nextDocumentSeq(ctx, txq(tx), "workflow_execution", year)
}

func scanExecution(row pgx.Row) (*domain.WorkflowExecution, error) {
	var (
		exec                    domain.WorkflowExecution
		status                  string
		triggerData, checkpoint []byte
		leaseExpiresAt          *time.Time
		startedAt, completedAt  *time.Time
	)
	err := row.Scan(
		&exec.ID, &exec.Number, &exec.WorkflowID, &exec.WorkflowCode,
		&triggerData, &status, &exec.CurrentStep, &exec.TotalSteps,
		&exec.CompletedSteps, &checkpoint, &exec.ResumeToken, &exec.ErrorStep,
		&exec.ErrorMessage, &exec.RetryCount, &exec.CorrelationID,
		&exec.Priority, &exec.CancelRequested, &exec.LeaseOwner,
		&leaseExpiresAt, &startedAt, &completedAt,
		&exec.CreatedAt, &exec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	exec.Status = domain.ExecutionStatus(status)
	exec.TriggerData = triggerData
	exec.Checkpoint = checkpoint
	exec.LeaseExpiresAt = leaseExpiresAt
	exec.StartedAt = startedAt
	exec.CompletedAt = completedAt
	return &exec, nil
}
