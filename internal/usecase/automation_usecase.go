package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quorvia/erpcore/internal/domain"
)

// StepResult is the outcome of running one action node. A suspending
// node returns Suspended=true with a resume token; the execution waits
// until an external signal resumes it.
type StepResult struct {
	Output      json.RawMessage
	Suspended   bool
	ResumeToken string
}

// ActionExecutor performs a single action node. Implementations live
// in the automation infrastructure; the engine only sequences them.
type ActionExecutor interface {
	Execute(ctx context.Context, node domain.ActionNode, input StepInput) (StepResult, error)
}

// StepInput is what an action node sees when it runs.
type StepInput struct {
	ExecutionID   string
	CorrelationID string
	TriggerData   json.RawMessage
	PriorOutputs  map[string]json.RawMessage
	Signal        json.RawMessage
}

// executionCheckpoint is the durable progress blob persisted after
// every step so a restart resumes from the last completed node.
type executionCheckpoint struct {
	LastCompleted string                     `json:"last_completed,omitempty"`
	Outputs       map[string]json.RawMessage `json:"outputs,omitempty"`
	Signal        json.RawMessage            `json:"signal,omitempty"`
}

func decodeCheckpoint(raw json.RawMessage) executionCheckpoint {
	var cp executionCheckpoint
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &cp)
	}
	if cp.Outputs == nil {
		cp.Outputs = make(map[string]json.RawMessage)
	}
	return cp
}

func (cp executionCheckpoint) encode() json.RawMessage {
	b, _ := json.Marshal(cp)
	return b
}

// AutomationUseCase drives workflow executions in response to
// triggers, with per-workflow concurrency slots and durable progress.
type AutomationUseCase struct {
	txManager  TransactionManager
	wfRepo     AutomationRepository
	execRepo   ExecutionRepository
	jobRepo    ScheduledJobRepository
	hookRepo   WebhookRepository
	outboxRepo OutboxRepository
	dedup      IdempotencyStore
	executor   ActionExecutor
	idGen      IDGenerator
	numGen     NumberGenerator
	clock      Clock
}

// NewAutomationUseCase creates a new AutomationUseCase.
func NewAutomationUseCase(
	txManager TransactionManager,
	wfRepo AutomationRepository,
	execRepo ExecutionRepository,
	jobRepo ScheduledJobRepository,
	hookRepo WebhookRepository,
	outboxRepo OutboxRepository,
	dedup IdempotencyStore,
	executor ActionExecutor,
	idGen IDGenerator,
	numGen NumberGenerator,
	clock Clock,
) *AutomationUseCase {
	return &AutomationUseCase{
		txManager:  txManager,
		wfRepo:     wfRepo,
		execRepo:   execRepo,
		jobRepo:    jobRepo,
		hookRepo:   hookRepo,
		outboxRepo: outboxRepo,
		dedup:      dedup,
		executor:   executor,
		idGen:      idGen,
		numGen:     numGen,
		clock:      clock,
	}
}

// CreateWorkflowInput represents input for defining a workflow.
type CreateWorkflowInput struct {
	Code              string
	Name              string
	Description       string
	Trigger           domain.TriggerKind
	TriggerConfig     json.RawMessage
	Actions           json.RawMessage
	TimeoutSeconds    int
	MaxConcurrentRuns int
	Priority          int
	Retry             *domain.RetryPolicy
	Tags              []string
	Actor             Actor
}

// CreateWorkflow defines a new automation workflow in Draft status.
func (uc *AutomationUseCase) CreateWorkflow(ctx context.Context, input CreateWorkflowInput) (*domain.AutomationWorkflow, error) {
	now := uc.clock.Now().UTC()
	wf := &domain.AutomationWorkflow{
		ID:                uc.idGen.Generate(),
		Code:              input.Code,
		Name:              input.Name,
		Description:       input.Description,
		Trigger:           input.Trigger,
		TriggerConfig:     input.TriggerConfig,
		Actions:           input.Actions,
		TimeoutSeconds:    input.TimeoutSeconds,
		MaxConcurrentRuns: input.MaxConcurrentRuns,
		Priority:          input.Priority,
		Retry:             input.Retry,
		Status:            domain.AutomationDraft,
		Version:           1,
		Tags:              input.Tags,
		CreatedAt:         now,
		UpdatedAt:         now,
		CreatedBy:         input.Actor.ID,
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	// The graph must be walkable before the workflow is saved.
	graph, err := wf.Graph()
	if err != nil {
		return nil, err
	}
	if _, err := graph.Steps(); err != nil {
		return nil, err
	}

	if existing, err := uc.wfRepo.GetByCode(ctx, wf.Code); err == nil && existing != nil {
		return nil, domain.ErrDuplicateAutomationCode
	} else if err != nil && domain.KindOf(err) != domain.KindNotFound {
		return nil, err
	}

	if err := uc.wfRepo.Create(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// SetWorkflowStatus moves a workflow between lifecycle states.
func (uc *AutomationUseCase) SetWorkflowStatus(ctx context.Context, workflowID string, status domain.AutomationStatus) (*domain.AutomationWorkflow, error) {
	wf, err := uc.wfRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.Status == domain.AutomationArchived {
		return nil, domain.BusinessRule("workflow_archived", "archived workflows cannot change status")
	}
	wf.Status = status
	wf.UpdatedAt = uc.clock.Now().UTC()
	if status == domain.AutomationActive {
		wf.Version++
	}
	if err := uc.wfRepo.Update(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// TriggerInput represents input for starting an execution.
type TriggerInput struct {
	WorkflowCode  string
	TriggerData   json.RawMessage
	CorrelationID string
	Actor         Actor
}

// Trigger creates a Pending execution for a workflow. Admission
// against the workflow's concurrency slots happens separately, so a
// burst of triggers queues rather than failing.
func (uc *AutomationUseCase) Trigger(ctx context.Context, input TriggerInput) (*domain.WorkflowExecution, error) {
	wf, err := uc.wfRepo.GetByCode(ctx, input.WorkflowCode)
	if err != nil {
		return nil, err
	}
	if wf.Status != domain.AutomationActive {
		return nil, domain.ErrWorkflowInactive
	}
	graph, err := wf.Graph()
	if err != nil {
		return nil, err
	}
	steps, err := graph.Steps()
	if err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := uc.clock.Now().UTC()
	seq, err := uc.execRepo.NextSequence(ctx, tx, now.Year())
	if err != nil {
		return nil, err
	}
	exec := &domain.WorkflowExecution{
		ID:            uc.idGen.Generate(),
		Number:        uc.numGen.Format(PrefixExecution, now.Year(), seq),
		WorkflowID:    wf.ID,
		WorkflowCode:  wf.Code,
		TriggerData:   input.TriggerData,
		Status:        domain.ExecutionPending,
		CurrentStep:   steps[0].ID,
		TotalSteps:    len(steps),
		CorrelationID: input.CorrelationID,
		Priority:      wf.Priority,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.execRepo.Create(ctx, tx, exec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return exec, nil
}

// EventSubscriptions maps bus topics to the codes of active
// EventDriven workflows subscribed to them. Workflows with a
// malformed trigger config are skipped.
func (uc *AutomationUseCase) EventSubscriptions(ctx context.Context) (map[string][]string, error) {
	wfs, err := uc.wfRepo.ListByTrigger(ctx, domain.TriggerEventDriven)
	if err != nil {
		return nil, err
	}
	subs := make(map[string][]string)
	for _, wf := range wfs {
		topics, err := wf.EventTopics()
		if err != nil {
			continue
		}
		for _, topic := range topics {
			subs[topic] = append(subs[topic], wf.Code)
		}
	}
	return subs, nil
}

// AdmitNext moves the best pending execution of a workflow into
// Running if a concurrency slot is free. Returns nil when nothing was
// admitted. Admission order is priority first, FIFO within a priority.
func (uc *AutomationUseCase) AdmitNext(ctx context.Context, workflowID string) (*domain.WorkflowExecution, error) {
	wf, err := uc.wfRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if wf.MaxConcurrentRuns > 0 {
		running, err := uc.execRepo.CountRunning(ctx, tx, workflowID)
		if err != nil {
			return nil, err
		}
		if running >= wf.MaxConcurrentRuns {
			return nil, tx.Commit(ctx)
		}
	}

	exec, err := uc.execRepo.NextAdmissible(ctx, tx, workflowID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	now := uc.clock.Now().UTC()
	exec.Status = domain.ExecutionRunning
	exec.StartedAt = &now
	exec.UpdatedAt = now
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return exec, nil
}

// executionLeaseTTL is how long a worker owns a claimed execution
// between step boundaries. Every step checkpoint extends the lease, so
// only a worker that stalls longer than this loses the execution.
const executionLeaseTTL = time.Minute

// Run advances a Running execution through its remaining steps. It
// returns when the execution reaches a terminal status, suspends into
// Waiting, or is parked for retry. The caller claims an advisory lease
// on entry; a second worker holding the same execution gets
// ErrLeaseLost instead of double-running steps.
func (uc *AutomationUseCase) Run(ctx context.Context, executionID string) (*domain.WorkflowExecution, error) {
	exec, owner, err := uc.claimLease(ctx, executionID)
	if err != nil {
		return nil, err
	}
	wf, err := uc.wfRepo.GetByID(ctx, exec.WorkflowID)
	if err != nil {
		return nil, err
	}
	graph, err := wf.Graph()
	if err != nil {
		return nil, err
	}
	steps, err := graph.Steps()
	if err != nil {
		return nil, err
	}

	cp := decodeCheckpoint(exec.Checkpoint)
	start := 0
	if cp.LastCompleted != "" {
		for i, n := range steps {
			if n.ID == cp.LastCompleted {
				start = i + 1
				break
			}
		}
	}

	var deadline time.Time
	if wf.TimeoutSeconds > 0 && exec.StartedAt != nil {
		deadline = exec.StartedAt.Add(time.Duration(wf.TimeoutSeconds) * time.Second)
	}

	for i := start; i < len(steps); i++ {
		node := steps[i]

		cancelled, timedOut, err := uc.beforeStep(ctx, exec.ID, owner, node.ID, deadline)
		if err != nil {
			return nil, err
		}
		if cancelled {
			return uc.finalizeCancelled(ctx, exec.ID)
		}
		if timedOut {
			return uc.finalizeFailure(ctx, wf, exec.ID, node.ID, "execution deadline exceeded", true)
		}

		stepCtx, stepCancel := ctx, context.CancelFunc(func() {})
		if !deadline.IsZero() {
			stepCtx, stepCancel = context.WithDeadline(ctx, deadline)
		}
		result, stepErr := uc.executor.Execute(stepCtx, node, StepInput{
			ExecutionID:   exec.ID,
			CorrelationID: exec.CorrelationID,
			TriggerData:   exec.TriggerData,
			PriorOutputs:  cp.Outputs,
			Signal:        cp.Signal,
		})
		stepCancel()
		if stepErr != nil {
			timedOut := errors.Is(stepErr, context.DeadlineExceeded)
			return uc.finalizeFailure(ctx, wf, exec.ID, node.ID, stepErr.Error(), timedOut)
		}

		if result.Suspended {
			return uc.suspend(ctx, exec.ID, node.ID, cp, result)
		}

		cp.LastCompleted = node.ID
		cp.Signal = nil
		if len(result.Output) > 0 {
			cp.Outputs[node.ID] = result.Output
		}
		next := ""
		if i+1 < len(steps) {
			next = steps[i+1].ID
		}
		if err := uc.persistStep(ctx, exec.ID, owner, node.ID, next, cp); err != nil {
			return nil, err
		}
	}

	return uc.finalizeCompleted(ctx, wf, exec.ID)
}

// claimLease takes the advisory lease on a Running execution under its
// row lock. An unexpired lease held by another worker means the
// execution is already being advanced.
func (uc *AutomationUseCase) claimLease(ctx context.Context, executionID string) (*domain.WorkflowExecution, string, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return nil, "", err
	}
	if exec.Status != domain.ExecutionRunning {
		return nil, "", domain.ErrExecutionNotRunning
	}
	now := uc.clock.Now().UTC()
	if exec.LeasedBy("", now) {
		return nil, "", domain.ErrLeaseLost
	}

	owner := uc.idGen.Generate()
	expiry := now.Add(executionLeaseTTL)
	exec.LeaseOwner = owner
	exec.LeaseExpiresAt = &expiry
	exec.UpdatedAt = now
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return exec, owner, nil
}

// beforeStep checks the lease, the cancellation tombstone and the
// deadline under the execution row lock, records the step about to run
// and extends the lease.
func (uc *AutomationUseCase) beforeStep(ctx context.Context, executionID, owner, stepID string, deadline time.Time) (cancelled, timedOut bool, err error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return false, false, err
	}
	now := uc.clock.Now().UTC()
	if exec.LeaseOwner != owner {
		return false, false, domain.ErrLeaseLost
	}
	if exec.CancelRequested {
		return true, false, tx.Commit(ctx)
	}
	if !deadline.IsZero() && now.After(deadline) {
		return false, true, tx.Commit(ctx)
	}
	expiry := now.Add(executionLeaseTTL)
	exec.LeaseExpiresAt = &expiry
	exec.CurrentStep = stepID
	exec.UpdatedAt = now
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return false, false, err
	}
	return false, false, tx.Commit(ctx)
}

func (uc *AutomationUseCase) persistStep(ctx context.Context, executionID, owner, stepID, nextStep string, cp executionCheckpoint) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return err
	}
	if exec.LeaseOwner != owner {
		return domain.ErrLeaseLost
	}
	now := uc.clock.Now().UTC()
	expiry := now.Add(executionLeaseTTL)
	exec.LeaseExpiresAt = &expiry
	exec.CompletedSteps++
	exec.Checkpoint = cp.encode()
	if nextStep != "" {
		exec.CurrentStep = nextStep
	}
	exec.UpdatedAt = now
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (uc *AutomationUseCase) suspend(ctx context.Context, executionID, stepID string, cp executionCheckpoint, result StepResult) (*domain.WorkflowExecution, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return nil, err
	}
	token := result.ResumeToken
	if token == "" {
		token = uc.idGen.Generate()
	}
	exec.Status = domain.ExecutionWaiting
	exec.CurrentStep = stepID
	exec.ResumeToken = token
	exec.LeaseOwner = ""
	exec.LeaseExpiresAt = nil
	exec.Checkpoint = cp.encode()
	exec.UpdatedAt = uc.clock.Now().UTC()
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return exec, nil
}

// Resume signals a Waiting execution. The token must match the one
// issued at suspension; the signal payload becomes visible to the
// suspended step when it re-runs.
func (uc *AutomationUseCase) Resume(ctx context.Context, executionID, token string, signal json.RawMessage) (*domain.WorkflowExecution, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return nil, err
	}
	if exec.Status != domain.ExecutionWaiting {
		return nil, domain.ErrExecutionNotWaiting
	}
	if exec.ResumeToken == "" || exec.ResumeToken != token {
		return nil, domain.ErrInvalidResumeToken
	}

	cp := decodeCheckpoint(exec.Checkpoint)
	cp.Signal = signal
	exec.Status = domain.ExecutionRunning
	exec.ResumeToken = ""
	exec.Checkpoint = cp.encode()
	exec.UpdatedAt = uc.clock.Now().UTC()
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return exec, nil
}

// Cancel requests cancellation. A Pending execution cancels
// immediately; a Running one terminates when the worker observes the
// tombstone between steps.
func (uc *AutomationUseCase) Cancel(ctx context.Context, executionID string) (*domain.WorkflowExecution, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return nil, err
	}
	if exec.Status.Terminal() {
		return nil, domain.ErrNotCancellable
	}

	now := uc.clock.Now().UTC()
	if exec.Status == domain.ExecutionPending || exec.Status == domain.ExecutionWaiting || exec.Status == domain.ExecutionRetrying {
		exec.Status = domain.ExecutionCancelled
		exec.CompletedAt = &now
	} else {
		exec.CancelRequested = true
	}
	exec.UpdatedAt = now
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return exec, nil
}

// Requeue moves a Retrying execution back to Pending once its backoff
// elapsed. The runner owns the backoff sleep.
func (uc *AutomationUseCase) Requeue(ctx context.Context, executionID string) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return err
	}
	if exec.Status != domain.ExecutionRetrying {
		return domain.BusinessRule("not_retrying", "execution is not parked for retry")
	}
	exec.Status = domain.ExecutionPending
	exec.StartedAt = nil
	exec.UpdatedAt = uc.clock.Now().UTC()
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (uc *AutomationUseCase) finalizeCancelled(ctx context.Context, executionID string) (*domain.WorkflowExecution, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now().UTC()
	exec.Status = domain.ExecutionCancelled
	exec.CompletedAt = &now
	exec.LeaseOwner = ""
	exec.LeaseExpiresAt = nil
	exec.UpdatedAt = now
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return exec, nil
}

// finalizeFailure terminates or parks a failed step. Timeout and
// failure both consult the retry policy; exhausted retries are
// terminal and emit the failure event.
func (uc *AutomationUseCase) finalizeFailure(ctx context.Context, wf *domain.AutomationWorkflow, executionID, stepID, message string, timedOut bool) (*domain.WorkflowExecution, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now().UTC()
	exec.ErrorStep = stepID
	exec.ErrorMessage = message
	exec.LeaseOwner = ""
	exec.LeaseExpiresAt = nil
	exec.UpdatedAt = now

	retriable := wf.Retry != nil && exec.RetryCount < wf.Retry.MaxRetries
	if retriable {
		exec.Status = domain.ExecutionRetrying
		exec.RetryCount++
	} else {
		if timedOut {
			exec.Status = domain.ExecutionTimeout
		} else {
			exec.Status = domain.ExecutionFailed
		}
		exec.CompletedAt = &now
	}
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return nil, err
	}

	if exec.Status.Terminal() {
		wf.RecordRun(false, uc.runDuration(exec, now))
		if err := uc.wfRepo.UpdateCounters(ctx, tx, wf); err != nil {
			return nil, err
		}
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   exec.ID,
			AggregateType: domain.AggregateExecution,
			EventType:     domain.EventExecutionFailed,
			Payload: domain.ExecutionFinishedEvent{
				ExecutionID:   exec.ID,
				Number:        exec.Number,
				WorkflowID:    exec.WorkflowID,
				WorkflowCode:  exec.WorkflowCode,
				Status:        string(exec.Status),
				ErrorStep:     exec.ErrorStep,
				ErrorMessage:  exec.ErrorMessage,
				CorrelationID: exec.CorrelationID,
			},
			CreatedAt: now,
		}
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return exec, nil
}

func (uc *AutomationUseCase) finalizeCompleted(ctx context.Context, wf *domain.AutomationWorkflow, executionID string) (*domain.WorkflowExecution, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	exec, err := uc.execRepo.GetByIDForUpdate(ctx, tx, executionID)
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now().UTC()
	exec.Status = domain.ExecutionCompleted
	exec.CompletedAt = &now
	exec.CompletedSteps = exec.TotalSteps
	exec.LeaseOwner = ""
	exec.LeaseExpiresAt = nil
	exec.UpdatedAt = now
	if err := uc.execRepo.Update(ctx, tx, exec); err != nil {
		return nil, err
	}

	wf.RecordRun(true, uc.runDuration(exec, now))
	if err := uc.wfRepo.UpdateCounters(ctx, tx, wf); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   exec.ID,
		AggregateType: domain.AggregateExecution,
		EventType:     domain.EventExecutionCompleted,
		Payload: domain.ExecutionFinishedEvent{
			ExecutionID:   exec.ID,
			Number:        exec.Number,
			WorkflowID:    exec.WorkflowID,
			WorkflowCode:  exec.WorkflowCode,
			Status:        string(exec.Status),
			CorrelationID: exec.CorrelationID,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return exec, nil
}

func (uc *AutomationUseCase) runDuration(exec *domain.WorkflowExecution, now time.Time) time.Duration {
	if exec.StartedAt == nil {
		return 0
	}
	return now.Sub(*exec.StartedAt)
}

// CreateJobInput represents input for a cron scheduled job.
type CreateJobInput struct {
	Name       string
	WorkflowID string
	CronSpec   string
	Timezone   string
	Misfire    domain.MisfirePolicy
}

// CreateJob registers a cron job for a workflow.
func (uc *AutomationUseCase) CreateJob(ctx context.Context, input CreateJobInput) (*domain.ScheduledJob, error) {
	if _, err := uc.wfRepo.GetByID(ctx, input.WorkflowID); err != nil {
		return nil, err
	}
	sched, err := cronSchedule(input.CronSpec, input.Timezone)
	if err != nil {
		return nil, err
	}
	misfire := input.Misfire
	if misfire == "" {
		misfire = domain.MisfireRunImmediately
	}

	now := uc.clock.Now().UTC()
	next := sched.Next(now)
	job := &domain.ScheduledJob{
		ID:         uc.idGen.Generate(),
		Name:       input.Name,
		WorkflowID: input.WorkflowID,
		CronSpec:   input.CronSpec,
		Timezone:   input.Timezone,
		Misfire:    misfire,
		IsActive:   true,
		NextRunAt:  &next,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// FireDueJobs selects due scheduled jobs under lock, applies each
// job's misfire policy against the slots missed since next_run_at, and
// spawns executions. It returns how many executions were created.
func (uc *AutomationUseCase) FireDueJobs(ctx context.Context, now time.Time) (int, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	jobs, err := uc.jobRepo.ListDue(ctx, tx, now)
	if err != nil {
		return 0, err
	}

	type firing struct {
		workflowID string
		jobID      string
		slot       time.Time
	}
	var firings []firing
	for _, job := range jobs {
		if !job.Due(now) {
			continue
		}
		sched, err := cronSchedule(job.CronSpec, job.Timezone)
		if err != nil {
			job.FailureCount++
			job.IsActive = false
			job.UpdatedAt = now
			if err := uc.jobRepo.UpdateSchedule(ctx, tx, job); err != nil {
				return 0, err
			}
			continue
		}

		var missed []time.Time
		for t := *job.NextRunAt; !t.After(now); t = sched.Next(t) {
			missed = append(missed, t)
			if len(missed) > 1000 {
				break
			}
		}

		var fired []time.Time
		switch {
		case len(missed) <= 1 || job.Misfire == domain.MisfireRunImmediately:
			fired = []time.Time{now}
		case job.Misfire == domain.MisfireRunAll:
			fired = missed
		case job.Misfire == domain.MisfireSkip:
			// Missed slots are dropped.
		}
		for _, slot := range fired {
			firings = append(firings, firing{workflowID: job.WorkflowID, jobID: job.ID, slot: slot})
		}

		next := sched.Next(now)
		job.NextRunAt = &next
		if len(fired) > 0 {
			job.LastRunAt = &now
			job.RunCount += int64(len(fired))
		}
		job.UpdatedAt = now
		if err := uc.jobRepo.UpdateSchedule(ctx, tx, job); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	count := 0
	for _, f := range firings {
		wf, err := uc.wfRepo.GetByID(ctx, f.workflowID)
		if err != nil {
			continue
		}
		data, _ := json.Marshal(map[string]any{
			"job_id":       f.jobID,
			"scheduled_at": f.slot.Format(time.RFC3339),
		})
		if _, err := uc.Trigger(ctx, TriggerInput{
			WorkflowCode:  wf.Code,
			TriggerData:   data,
			CorrelationID: f.jobID,
		}); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// WebhookInput is one inbound webhook delivery.
type WebhookInput struct {
	Path      string
	Method    string
	Headers   map[string]string
	Body      json.RawMessage
	SourceIP  string
	RequestID string
	Signature string
}

// HandleWebhook spawns one execution per inbound delivery. The request
// id doubles as the dedup key, so replays return the original
// execution id instead of spawning twice.
func (uc *AutomationUseCase) HandleWebhook(ctx context.Context, input WebhookInput) (*domain.WorkflowExecution, error) {
	ep, err := uc.hookRepo.GetEndpointByPath(ctx, input.Path)
	if err != nil {
		return nil, err
	}
	if !ep.IsActive {
		return nil, domain.ErrEndpointInactive
	}
	if ep.Secret != "" && !verifySignature(ep.Secret, input.Body, input.Signature) {
		return nil, domain.ErrInvalidSignature
	}

	if input.RequestID != "" && uc.dedup != nil {
		exists, prior, err := uc.dedup.CheckAndSet(ctx, "webhook:"+input.RequestID, nil, WebhookDedupTTL)
		if err == nil && exists {
			if len(prior) > 0 {
				return uc.execRepo.GetByID(ctx, string(prior))
			}
			// The key is reserved but carries no execution id yet: a
			// concurrent delivery of the same request is still in
			// flight. Refuse rather than spawn a second execution.
			return nil, domain.ErrDuplicateDelivery
		}
	}

	wf, err := uc.wfRepo.GetByID(ctx, ep.WorkflowID)
	if err != nil {
		return nil, err
	}

	received := uc.clock.Now().UTC()
	req := &domain.WebhookRequest{
		ID:         uc.idGen.Generate(),
		EndpointID: ep.ID,
		Method:     input.Method,
		Headers:    input.Headers,
		Body:       input.Body,
		SourceIP:   input.SourceIP,
		ReceivedAt: received,
	}
	if err := uc.hookRepo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	exec, err := uc.Trigger(ctx, TriggerInput{
		WorkflowCode:  wf.Code,
		TriggerData:   input.Body,
		CorrelationID: input.RequestID,
	})
	if err != nil {
		req.ResponseCode = 422
		req.ProcessingTime = uc.clock.Now().Sub(received)
		_ = uc.hookRepo.UpdateRequest(ctx, req)
		return nil, err
	}

	req.ExecutionID = exec.ID
	req.ResponseCode = 202
	req.ProcessingTime = uc.clock.Now().Sub(received)
	if err := uc.hookRepo.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	if input.RequestID != "" && uc.dedup != nil {
		_ = uc.dedup.Update(ctx, "webhook:"+input.RequestID, []byte(exec.ID), WebhookDedupTTL)
	}
	return exec, nil
}

// GetWorkflow fetches a workflow by id.
func (uc *AutomationUseCase) GetWorkflow(ctx context.Context, id string) (*domain.AutomationWorkflow, error) {
	return uc.wfRepo.GetByID(ctx, id)
}

// GetExecution fetches an execution by id.
func (uc *AutomationUseCase) GetExecution(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	return uc.execRepo.GetByID(ctx, id)
}

// ListExecutions pages through a workflow's executions.
func (uc *AutomationUseCase) ListExecutions(ctx context.Context, workflowID string, page domain.Page) (domain.PageResult[*domain.WorkflowExecution], error) {
	page = page.Normalize()
	items, total, err := uc.execRepo.ListByWorkflow(ctx, workflowID, page)
	if err != nil {
		return domain.PageResult[*domain.WorkflowExecution]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}

// PendingWorkflows lists workflow ids with queued executions, for the
// runner's admission sweep.
func (uc *AutomationUseCase) PendingWorkflows(ctx context.Context) ([]string, error) {
	return uc.execRepo.ListPendingWorkflows(ctx)
}

func cronSchedule(spec, tz string) (cron.Schedule, error) {
	expr := spec
	if tz != "" {
		expr = "CRON_TZ=" + tz + " " + spec
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, domain.Validation("invalid_cron_spec", "invalid cron spec %q: %v", spec, err)
	}
	return sched, nil
}

func verifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}
