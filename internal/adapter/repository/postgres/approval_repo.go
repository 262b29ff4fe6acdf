package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// WorkflowRepository implements usecase.WorkflowRepository.
type WorkflowRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(pool *pgxpool.Pool) *WorkflowRepository {
	return &WorkflowRepository{pool: pool}
}

const workflowColumns = `id, code, name, description, document_kind, policy, min_amount, max_amount, auto_approve_below, allow_delegation, require_comments, status, created_at, updated_at`

// Create persists a workflow with its levels.
func (r *WorkflowRepository) Create(ctx context.Context, wf *domain.ApprovalWorkflow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO approval_workflows (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		wf.ID, wf.Code, wf.Name, wf.Description, wf.DocumentKind,
		string(wf.Policy), moneyPtr(wf.MinAmount), moneyPtr(wf.MaxAmount),
		moneyPtr(wf.AutoApproveBelow), wf.AllowDelegation, wf.RequireComments,
		string(wf.Status), tsz(wf.CreatedAt), tsz(wf.UpdatedAt),
	)
	if err != nil {
		return err
	}
	return r.insertLevels(ctx, wf)
}

func (r *WorkflowRepository) insertLevels(ctx context.Context, wf *domain.ApprovalWorkflow) error {
	for i := range wf.Levels {
		level := &wf.Levels[i]
		_, err := r.pool.Exec(ctx, `
			INSERT INTO approval_levels (id, workflow_id, ordinal, name, selector, selector_value, approver_ids, min_approvers, skip_if_approved_above, due_hours, escalation_to)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			level.ID, wf.ID, level.Ordinal, level.Name, string(level.Selector),
			level.SelectorValue, level.ApproverIDs, level.MinApprovers,
			level.SkipIfApprovedAbove, level.DueHours, level.EscalationTo,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a workflow with its levels.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalWorkflow, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByCode retrieves a workflow by code.
func (r *WorkflowRepository) GetByCode(ctx context.Context, code string) (*domain.ApprovalWorkflow, error) {
	return r.get(ctx, `WHERE code = $1`, code)
}

func (r *WorkflowRepository) get(ctx context.Context, where, arg string) (*domain.ApprovalWorkflow, error) {
	wf, err := scanWorkflow(r.pool.QueryRow(ctx, `SELECT `+workflowColumns+` FROM approval_workflows `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, err
	}
	if err := r.loadLevels(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// ListForDocumentKind returns active workflows for a kind; the caller
// picks the one whose amount window matches.
func (r *WorkflowRepository) ListForDocumentKind(ctx context.Context, kind string) ([]*domain.ApprovalWorkflow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workflowColumns+` FROM approval_workflows
		WHERE document_kind = $1 AND status = $2
		ORDER BY code`,
		kind, string(domain.WorkflowActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*domain.ApprovalWorkflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, wf := range workflows {
		if err := r.loadLevels(ctx, wf); err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

// List lists workflows with pagination, without levels.
func (r *WorkflowRepository) List(ctx context.Context, page domain.Page) ([]*domain.ApprovalWorkflow, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM approval_workflows`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+workflowColumns+` FROM approval_workflows
		ORDER BY code
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	workflows := make([]*domain.ApprovalWorkflow, 0, page.PerPage)
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, 0, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, total, rows.Err()
}

// Update rewrites a workflow and its levels.
func (r *WorkflowRepository) Update(ctx context.Context, wf *domain.ApprovalWorkflow) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE approval_workflows
		SET name = $2, description = $3, policy = $4, min_amount = $5,
		    max_amount = $6, auto_approve_below = $7, allow_delegation = $8,
		    require_comments = $9, status = $10, updated_at = $11
		WHERE id = $1`,
		wf.ID, wf.Name, wf.Description, string(wf.Policy),
		moneyPtr(wf.MinAmount), moneyPtr(wf.MaxAmount), moneyPtr(wf.AutoApproveBelow),
		wf.AllowDelegation, wf.RequireComments, string(wf.Status), tsz(wf.UpdatedAt),
	)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM approval_levels WHERE workflow_id = $1`, wf.ID); err != nil {
		return err
	}
	return r.insertLevels(ctx, wf)
}

func (r *WorkflowRepository) loadLevels(ctx context.Context, wf *domain.ApprovalWorkflow) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, workflow_id, ordinal, name, selector, selector_value, approver_ids, min_approvers, skip_if_approved_above, due_hours, escalation_to
		FROM approval_levels
		WHERE workflow_id = $1
		ORDER BY ordinal`,
		wf.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			level    domain.ApprovalLevel
			selector string
		)
		err := rows.Scan(
			&level.ID, &level.WorkflowID, &level.Ordinal, &level.Name,
			&selector, &level.SelectorValue, &level.ApproverIDs,
			&level.MinApprovers, &level.SkipIfApprovedAbove, &level.DueHours,
			&level.EscalationTo,
		)
		if err != nil {
			return err
		}
		level.Selector = domain.ApproverSelector(selector)
		wf.Levels = append(wf.Levels, level)
	}
	return rows.Err()
}

func scanWorkflow(row pgx.Row) (*domain.ApprovalWorkflow, error) {
	var (
		wf                      domain.ApprovalWorkflow
		policy, status          string
		minAmt, maxAmt, autoAmt *int64
	)
	err := row.Scan(
		&wf.ID, &wf.Code, &wf.Name, &wf.Description, &wf.DocumentKind,
		&policy, &minAmt, &maxAmt, &autoAmt, &wf.AllowDelegation,
		&wf.RequireComments, &status, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	wf.Policy = domain.ApprovalPolicy(policy)
	wf.Status = domain.WorkflowStatus(status)
	wf.MinAmount = moneyFromPtr(minAmt)
	wf.MaxAmount = moneyFromPtr(maxAmt)
	wf.AutoApproveBelow = moneyFromPtr(autoAmt)
	return &wf, nil
}

func moneyPtr(m *domain.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}

func moneyFromPtr(v *int64) *domain.Money {
	if v == nil {
		return nil
	}
	m := domain.Money(*v)
	return &m
}

// RequestRepository implements usecase.RequestRepository.
type RequestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

const requestColumns = `id, number, workflow_id, document_kind, document_id, document_number, requested_by, amount, currency, status, current_level, due_date, approved_at, approved_by, rejected_at, rejected_by, created_at, updated_at`

// Create persists a request inside the caller's transaction.
func (r *RequestRepository) Create(ctx context.Context, tx usecase.Transaction, req *domain.ApprovalRequest) error {
	_, err := txq(tx).Exec(ctx, `
		INSERT INTO approval_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		req.ID, req.Number, req.WorkflowID, req.DocumentKind, req.DocumentID,
		req.DocumentNumber, req.RequestedBy, int64(req.Amount), req.Currency,
		string(req.Status), req.CurrentLevel, tszPtr(req.DueDate),
		tszPtr(req.ApprovedAt), req.ApprovedBy, tszPtr(req.RejectedAt),
		req.RejectedBy, tsz(req.CreatedAt), tsz(req.UpdatedAt),
	)
	return err
}

// GetByID retrieves a request with its decision trail.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	return r.getRequest(ctx, r.pool, id, "")
}

// GetByIDForUpdate locks a request row so concurrent decisions serialize.
func (r *RequestRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.ApprovalRequest, error) {
	return r.getRequest(ctx, txq(tx), id, " FOR UPDATE")
}

func (r *RequestRepository) getRequest(ctx context.Context, q querier, id, suffix string) (*domain.ApprovalRequest, error) {
	req, err := scanRequest(q.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id = $1`+suffix, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	if err := r.loadRecords(ctx, q, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Update rewrites a request's mutable state.
func (r *RequestRepository) Update(ctx context.Context, tx usecase.Transaction, req *domain.ApprovalRequest) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE approval_requests
		SET status = $2, current_level = $3, due_date = $4, approved_at = $5,
		    approved_by = $6, rejected_at = $7, rejected_by = $8, updated_at = $9
		WHERE id = $1`,
		req.ID, string(req.Status), req.CurrentLevel, tszPtr(req.DueDate),
		tszPtr(req.ApprovedAt), req.ApprovedBy, tszPtr(req.RejectedAt),
		req.RejectedBy, tsz(req.UpdatedAt),
	)
	return err
}

// AddRecord appends a decision record to a request's trail.
func (r *RequestRepository) AddRecord(ctx context.Context, tx usecase.Transaction, rec *domain.ApprovalRecord) error {
	_, err := txq(tx).Exec(ctx, `
		INSERT INTO approval_records (id, request_id, level, approver_id, action, comment, delegated_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.RequestID, rec.Level, rec.ApproverID, string(rec.Action),
		rec.Comment, rec.DelegatedTo, tsz(rec.CreatedAt),
	)
	return err
}

// ListOverdue returns pending requests whose due date has passed,
// locked so concurrent escalation sweeps do not double-fire.
func (r *RequestRepository) ListOverdue(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.ApprovalRequest, error) {
	q := txq(tx)
	rows, err := q.Query(ctx, `
		SELECT `+requestColumns+` FROM approval_requests
		WHERE status = $1 AND due_date IS NOT NULL AND due_date < $2
		ORDER BY due_date
		FOR UPDATE SKIP LOCKED`,
		string(domain.RequestPending), tsz(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overdue []*domain.ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		overdue = append(overdue, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, req := range overdue {
		if err := r.loadRecords(ctx, q, req); err != nil {
			return nil, err
		}
	}
	return overdue, nil
}

// List lists requests newest-first, without trails.
func (r *RequestRepository) List(ctx context.Context, page domain.Page) ([]*domain.ApprovalRequest, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM approval_requests`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM approval_requests
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	requests := make([]*domain.ApprovalRequest, 0, page.PerPage)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

// ListPendingForApprover pages pending requests whose current level
// names the approver directly or resolves through the supervisor chain.
func (r *RequestRepository) ListPendingForApprover(ctx context.Context, approverID string, page domain.Page) ([]*domain.ApprovalRequest, int64, error) {
	page = page.Normalize()

	const join = `
		FROM approval_requests ar
		JOIN approval_levels al
		  ON al.workflow_id = ar.workflow_id AND al.ordinal = ar.current_level
		WHERE ar.status = 'Pending'
		  AND ($1 = ANY (al.approver_ids) OR al.selector = 'Supervisor')`

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*)`+join, approverID).Scan(&total); err != nil {
		return nil, 0, err
	}

	cols := "ar." + strings.ReplaceAll(requestColumns, ", ", ", ar.")
	rows, err := r.pool.Query(ctx, `
		SELECT `+cols+join+`
		ORDER BY ar.created_at
		LIMIT $2 OFFSET $3`,
		approverID, page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	requests := make([]*domain.ApprovalRequest, 0, page.PerPage)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

// NextSequence reserves the next request number for a year.
func (r *RequestRepository) NextSequence(ctx context.Context, tx usecase.Transaction, year int) (int64, error) {
	return nextDocumentSeq(ctx, txq(tx), "approval_request", year)
}

func (r *RequestRepository) loadRecords(ctx context.Context, q querier, req *domain.ApprovalRequest) error {
	rows, err := q.Query(ctx, `
		SELECT id, request_id, level, approver_id, action, comment, delegated_to, created_at
		FROM approval_records
		WHERE request_id = $1
		ORDER BY created_at`,
		req.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec    domain.ApprovalRecord
			action string
		)
		err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Level, &rec.ApproverID, &action, &rec.Comment, &rec.DelegatedTo, &rec.CreatedAt)
		if err != nil {
			return err
		}
		rec.Action = domain.ApprovalAction(action)
		req.Records = append(req.Records, rec)
	}
	return rows.Err()
}

func scanRequest(row pgx.Row) (*domain.ApprovalRequest, error) {
	var (
		req                             domain.ApprovalRequest
		status                          string
		amount                          int64
		dueDate, approvedAt, rejectedAt *time.Time
	)
	err := row.Scan(
		&req.ID, &req.Number, &req.WorkflowID, &req.DocumentKind,
		&req.DocumentID, &req.DocumentNumber, &req.RequestedBy, &amount,
		&req.Currency, &status, &req.CurrentLevel, &dueDate, &approvedAt,
		&req.ApprovedBy, &rejectedAt, &req.RejectedBy, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Amount = domain.Money(amount)
	req.Status = domain.RequestStatus(status)
	req.DueDate = dueDate
	req.ApprovedAt = approvedAt
	req.RejectedAt = rejectedAt
	return &req, nil
}

// ApproverDirectory implements usecase.ApproverDirectory over the
// org membership tables.
type ApproverDirectory struct {
	pool *pgxpool.Pool
}

// NewApproverDirectory creates a new ApproverDirectory.
func NewApproverDirectory(pool *pgxpool.Pool) *ApproverDirectory {
	return &ApproverDirectory{pool: pool}
}

// UsersInRole returns the IDs of users holding a role.
func (d *ApproverDirectory) UsersInRole(ctx context.Context, role string) ([]string, error) {
	return d.listUsers(ctx, `SELECT user_id FROM user_roles WHERE role = $1 ORDER BY user_id`, role)
}

// UsersInDepartment returns the IDs of users in a department.
func (d *ApproverDirectory) UsersInDepartment(ctx context.Context, department string) ([]string, error) {
	return d.listUsers(ctx, `SELECT user_id FROM user_departments WHERE department = $1 ORDER BY user_id`, department)
}

// SupervisorOf resolves a user's direct supervisor.
func (d *ApproverDirectory) SupervisorOf(ctx context.Context, userID string) (string, error) {
	var supervisor string
	err := d.pool.QueryRow(ctx, `SELECT supervisor_id FROM user_supervisors WHERE user_id = $1`, userID).Scan(&supervisor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NotFound("supervisor_not_found", "supervisor")
		}
		return "", err
	}
	return supervisor, nil
}

func (d *ApproverDirectory) listUsers(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := d.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
