package usecase

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
)

// ApprovalUseCase routes documents through approval workflows.
type ApprovalUseCase struct {
	txManager    TransactionManager
	workflowRepo WorkflowRepository
	requestRepo  RequestRepository
	directory    ApproverDirectory
	outboxRepo   OutboxRepository
	idGen        IDGenerator
	numGen       NumberGenerator
	clock        Clock
}

// NewApprovalUseCase creates a new ApprovalUseCase.
func NewApprovalUseCase(
	txManager TransactionManager,
	workflowRepo WorkflowRepository,
	requestRepo RequestRepository,
	directory ApproverDirectory,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	numGen NumberGenerator,
	clock Clock,
) *ApprovalUseCase {
	return &ApprovalUseCase{
		txManager:    txManager,
		workflowRepo: workflowRepo,
		requestRepo:  requestRepo,
		directory:    directory,
		outboxRepo:   outboxRepo,
		idGen:        idGen,
		numGen:       numGen,
		clock:        clock,
	}
}

// CreateWorkflow persists an approval workflow with its levels.
func (uc *ApprovalUseCase) CreateWorkflow(ctx context.Context, wf *domain.ApprovalWorkflow) (*domain.ApprovalWorkflow, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	if existing, err := uc.workflowRepo.GetByCode(ctx, wf.Code); err == nil && existing != nil {
		return nil, domain.ErrDuplicateWorkflowCode
	}

	now := uc.clock.Now().UTC()
	wf.ID = uc.idGen.Generate()
	wf.Status = domain.WorkflowActive
	wf.CreatedAt = now
	wf.UpdatedAt = now
	for i := range wf.Levels {
		wf.Levels[i].ID = uc.idGen.Generate()
		wf.Levels[i].WorkflowID = wf.ID
	}
	if err := uc.workflowRepo.Create(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// StartRequestInput represents input for starting an approval request.
type StartRequestInput struct {
	DocumentKind   string
	DocumentID     string
	DocumentNumber string
	Amount         domain.Money
	Currency       string
	Requester      string
}

// StartRequest selects the matching workflow and opens a request.
// Amounts strictly below the workflow's auto-approve threshold create
// an Approved request immediately.
func (uc *ApprovalUseCase) StartRequest(ctx context.Context, input StartRequestInput) (*domain.ApprovalRequest, error) {
	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}

	candidates, err := uc.workflowRepo.ListForDocumentKind(ctx, input.DocumentKind)
	if err != nil {
		return nil, err
	}
	var workflow *domain.ApprovalWorkflow
	for _, wf := range candidates {
		if wf.Matches(input.Amount) {
			workflow = wf
			break
		}
	}
	if workflow == nil {
		return nil, domain.ErrNoMatchingWorkflow
	}

	now := uc.clock.Now().UTC()
	req := &domain.ApprovalRequest{
		ID:             uc.idGen.Generate(),
		WorkflowID:     workflow.ID,
		DocumentKind:   input.DocumentKind,
		DocumentID:     input.DocumentID,
		DocumentNumber: input.DocumentNumber,
		RequestedBy:    input.Requester,
		Amount:         input.Amount,
		Currency:       input.Currency,
		Status:         domain.RequestPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	seq, err := uc.requestRepo.NextSequence(ctx, tx, now.Year())
	if err != nil {
		return nil, err
	}
	req.Number = uc.numGen.Format(PrefixApproval, now.Year(), seq)

	if workflow.AutoApproves(input.Amount) {
		req.Status = domain.RequestApproved
		req.ApprovedAt = &now
		req.ApprovedBy = "system"
		if err := uc.requestRepo.Create(ctx, tx, req); err != nil {
			return nil, err
		}
		if err := uc.stageDecisionEvent(ctx, tx, req, domain.EventRequestApproved, "system", 0, now); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return req, nil
	}

	first := workflow.NextLevel(0)
	if first == nil {
		return nil, domain.ErrNoMatchingWorkflow
	}
	req.CurrentLevel = first.Ordinal
	if first.DueHours > 0 {
		due := now.Add(time.Duration(first.DueHours) * time.Hour)
		req.DueDate = &due
	}

	if err := uc.requestRepo.Create(ctx, tx, req); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

// DecideInput represents one approver decision.
type DecideInput struct {
	RequestID   string
	Approver    string
	Action      domain.ApprovalAction
	Comment     string
	DelegatedTo string
}

// Decide records a decision and advances the request per policy.
func (uc *ApprovalUseCase) Decide(ctx context.Context, input DecideInput) (*domain.ApprovalRequest, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := uc.requestRepo.GetByIDForUpdate(ctx, tx, input.RequestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestPending && req.Status != domain.RequestEscalated {
		return nil, domain.ErrRequestNotPending
	}

	workflow, err := uc.workflowRepo.GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}
	level := workflow.LevelAt(req.CurrentLevel)
	if level == nil {
		return nil, domain.ErrWorkflowNotFound
	}

	if workflow.RequireComments && input.Comment == "" {
		return nil, domain.ErrCommentRequired
	}
	if input.Action == domain.ActionDelegated && !workflow.AllowDelegation {
		return nil, domain.ErrDelegationDisabled
	}

	eligible, err := uc.eligibleApprovers(ctx, req, level)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(eligible, input.Approver) {
		return nil, domain.ErrNotEligibleApprover
	}

	now := uc.clock.Now().UTC()
	record := &domain.ApprovalRecord{
		ID:          uc.idGen.Generate(),
		RequestID:   req.ID,
		Level:       req.CurrentLevel,
		ApproverID:  input.Approver,
		Action:      input.Action,
		Comment:     input.Comment,
		DelegatedTo: input.DelegatedTo,
		CreatedAt:   now,
	}
	if err := uc.requestRepo.AddRecord(ctx, tx, record); err != nil {
		return nil, err
	}
	req.Records = append(req.Records, *record)
	req.UpdatedAt = now

	switch input.Action {
	case domain.ActionRejected:
		req.Status = domain.RequestRejected
		req.RejectedAt = &now
		req.RejectedBy = input.Approver
		if err := uc.stageDecisionEvent(ctx, tx, req, domain.EventRequestRejected, input.Approver, record.Level, now); err != nil {
			return nil, err
		}
	case domain.ActionApproved:
		if uc.levelSatisfied(req, workflow, level) {
			if err := uc.advance(ctx, tx, req, workflow, input.Approver, now); err != nil {
				return nil, err
			}
		}
	case domain.ActionDelegated, domain.ActionReturnedForInfo:
		// No advancement. A delegate becomes eligible through the
		// recorded trail; returned-for-info just annotates.
	}

	if err := uc.requestRepo.Update(ctx, tx, req); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

// levelSatisfied applies the workflow policy to the current level.
func (uc *ApprovalUseCase) levelSatisfied(req *domain.ApprovalRequest, wf *domain.ApprovalWorkflow, level *domain.ApprovalLevel) bool {
	approvers := req.ApprovalsAtLevel(level.Ordinal)
	switch wf.Policy {
	case domain.PolicyAllApprovers:
		min := level.MinApprovers
		if min < 1 {
			min = 1
		}
		return len(approvers) >= min
	case domain.PolicySequential, domain.PolicyAnyApprover:
		return len(approvers) >= 1
	default:
		return len(approvers) >= 1
	}
}

// advance moves the request past the current level, auto-approving
// skip-marked levels, and finishes when no level remains.
func (uc *ApprovalUseCase) advance(ctx context.Context, tx Transaction, req *domain.ApprovalRequest, wf *domain.ApprovalWorkflow, approver string, now time.Time) error {
	next := wf.NextLevel(req.CurrentLevel)
	for next != nil && next.SkipIfApprovedAbove && req.HasApprovalAbove(next.Ordinal) {
		next = wf.NextLevel(next.Ordinal)
	}

	if next == nil {
		req.Status = domain.RequestApproved
		req.ApprovedAt = &now
		req.ApprovedBy = approver
		req.DueDate = nil
		return uc.stageDecisionEvent(ctx, tx, req, domain.EventRequestApproved, approver, req.CurrentLevel, now)
	}

	req.CurrentLevel = next.Ordinal
	req.Status = domain.RequestPending
	req.DueDate = nil
	if next.DueHours > 0 {
		due := now.Add(time.Duration(next.DueHours) * time.Hour)
		req.DueDate = &due
	}
	return nil
}

// eligibleApprovers resolves who may decide at a level, including
// delegates added on the trail.
func (uc *ApprovalUseCase) eligibleApprovers(ctx context.Context, req *domain.ApprovalRequest, level *domain.ApprovalLevel) ([]string, error) {
	var eligible []string
	switch level.Selector {
	case domain.SelectorSpecificUser, domain.SelectorAmountBased:
		eligible = append(eligible, level.ApproverIDs...)
	case domain.SelectorRole:
		users, err := uc.directory.UsersInRole(ctx, level.SelectorValue)
		if err != nil {
			return nil, err
		}
		eligible = append(eligible, users...)
	case domain.SelectorDepartment:
		users, err := uc.directory.UsersInDepartment(ctx, level.SelectorValue)
		if err != nil {
			return nil, err
		}
		eligible = append(eligible, users...)
	case domain.SelectorSupervisor:
		sup, err := uc.directory.SupervisorOf(ctx, req.RequestedBy)
		if err != nil {
			return nil, err
		}
		eligible = append(eligible, sup)
	}
	if level.EscalationTo != "" && req.Status == domain.RequestEscalated {
		eligible = append(eligible, level.EscalationTo)
	}
	eligible = append(eligible, req.DelegatesAtLevel(level.Ordinal)...)
	return eligible, nil
}

// EscalateOverdue escalates pending requests past their due date.
func (uc *ApprovalUseCase) EscalateOverdue(ctx context.Context, now time.Time) (int, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	overdue, err := uc.requestRepo.ListOverdue(ctx, tx, now)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for _, req := range overdue {
		workflow, err := uc.workflowRepo.GetByID(ctx, req.WorkflowID)
		if err != nil {
			return escalated, err
		}
		level := workflow.LevelAt(req.CurrentLevel)
		if level == nil || level.EscalationTo == "" {
			continue
		}

		req.Status = domain.RequestEscalated
		req.UpdatedAt = now
		if level.DueHours > 0 {
			due := now.Add(time.Duration(level.DueHours) * time.Hour)
			req.DueDate = &due
		}
		if err := uc.requestRepo.Update(ctx, tx, req); err != nil {
			return escalated, err
		}
		if err := uc.stageDecisionEvent(ctx, tx, req, domain.EventRequestEscalated, level.EscalationTo, req.CurrentLevel, now); err != nil {
			return escalated, err
		}
		escalated++
	}

	if err := tx.Commit(ctx); err != nil {
		return escalated, err
	}
	return escalated, nil
}

// Cancel terminates a pending request. Only the requester or a
// privileged caller may cancel.
func (uc *ApprovalUseCase) Cancel(ctx context.Context, requestID string, actor Actor) (*domain.ApprovalRequest, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := uc.requestRepo.GetByIDForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, domain.ErrRequestNotPending
	}
	if req.RequestedBy != actor.ID && !actor.Privileged {
		return nil, domain.ErrNotRequester
	}

	now := uc.clock.Now().UTC()
	req.Status = domain.RequestCancelled
	req.UpdatedAt = now
	req.DueDate = nil
	if err := uc.requestRepo.Update(ctx, tx, req); err != nil {
		return nil, err
	}
	if err := uc.stageDecisionEvent(ctx, tx, req, domain.EventRequestCancelled, actor.ID, req.CurrentLevel, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequest fetches a request by id.
func (uc *ApprovalUseCase) GetRequest(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	return uc.requestRepo.GetByID(ctx, id)
}

// ListRequests pages through approval requests.
func (uc *ApprovalUseCase) ListRequests(ctx context.Context, page domain.Page) (domain.PageResult[*domain.ApprovalRequest], error) {
	page = page.Normalize()
	items, total, err := uc.requestRepo.List(ctx, page)
	if err != nil {
		return domain.PageResult[*domain.ApprovalRequest]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

// PendingForApprover pages through the pending requests sitting at a
// level the approver can decide.
func (uc *ApprovalUseCase) PendingForApprover(ctx context.Context, approverID string, page domain.Page) (domain.PageResult[*domain.ApprovalRequest], error) {
	if approverID == "" {
		return domain.PageResult[*domain.ApprovalRequest]{}, domain.Validation("approver_required", "approver id is required")
	}
	page = page.Normalize()
	items, total, err := uc.requestRepo.ListPendingForApprover(ctx, approverID, page)
	if err != nil {
		return domain.PageResult[*domain.ApprovalRequest]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

// pendingSummaryScan bounds how many pending requests one summary walks.
const pendingSummaryScan = domain.MaxPageSize

// PendingSummary tallies an approver's pending workload: count, total
// amount, overdue count and a per-document-kind breakdown.
func (uc *ApprovalUseCase) PendingSummary(ctx context.Context, approverID string) (*domain.PendingSummary, error) {
	if approverID == "" {
		return nil, domain.Validation("approver_required", "approver id is required")
	}
	items, total, err := uc.requestRepo.ListPendingForApprover(ctx, approverID, domain.Page{Number: 1, PerPage: pendingSummaryScan})
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	summary := &domain.PendingSummary{
		ApproverID:   approverID,
		PendingCount: total,
	}
	byKind := make(map[string]*domain.DocumentKindTally)
	for _, req := range items {
		summary.TotalAmount += req.Amount
		if req.DueDate != nil && req.DueDate.Before(now) {
			summary.OverdueCount++
		}
		tally := byKind[req.DocumentKind]
		if tally == nil {
			tally = &domain.DocumentKindTally{DocumentKind: req.DocumentKind}
			byKind[req.DocumentKind] = tally
		}
		tally.Count++
		tally.TotalAmount += req.Amount
	}

	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		summary.ByDocumentKind = append(summary.ByDocumentKind, *byKind[kind])
	}
	return summary, nil
}

// GetWorkflow fetches a workflow by id.
func (uc *ApprovalUseCase) GetWorkflow(ctx context.Context, id string) (*domain.ApprovalWorkflow, error) {
	return uc.workflowRepo.GetByID(ctx, id)
}

// ListWorkflows pages through workflows.
func (uc *ApprovalUseCase) ListWorkflows(ctx context.Context, page domain.Page) (domain.PageResult[*domain.ApprovalWorkflow], error) {
	page = page.Normalize()
	items, total, err := uc.workflowRepo.List(ctx, page)
	if err != nil {
		return domain.PageResult[*domain.ApprovalWorkflow]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

func (uc *ApprovalUseCase) stageDecisionEvent(ctx context.Context, tx Transaction, req *domain.ApprovalRequest, eventType, decidedBy string, level int, now time.Time) error {
	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   req.ID,
		AggregateType: domain.AggregateApprovalRequest,
		EventType:     eventType,
		Payload: domain.RequestDecidedEvent{
			RequestID:     req.ID,
			RequestNumber: req.Number,
			DocumentKind:  req.DocumentKind,
			DocumentID:    req.DocumentID,
			Status:        string(req.Status),
			DecidedBy:     decidedBy,
			Level:         level,
		},
		CreatedAt: now,
	}
	return uc.outboxRepo.Create(ctx, tx, event)
}
