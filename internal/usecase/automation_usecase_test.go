package usecase_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/internal/usecase/mocks"
)

type automationFixture struct {
	uc         *usecase.AutomationUseCase
	workflows  *mocks.MockAutomationRepository
	executions *mocks.MockExecutionRepository
	jobs       *mocks.MockScheduledJobRepository
	hooks      *mocks.MockWebhookRepository
	outbox     *mocks.MockOutboxRepository
	dedup      *mocks.MockIdempotencyStore
	executor   *mocks.MockActionExecutor
	clock      *mocks.MockClock
}

func newAutomationFixture(now time.Time) *automationFixture {
	f := &automationFixture{
		workflows:  mocks.NewMockAutomationRepository(),
		executions: mocks.NewMockExecutionRepository(),
		jobs:       mocks.NewMockScheduledJobRepository(),
		hooks:      mocks.NewMockWebhookRepository(),
		outbox:     mocks.NewMockOutboxRepository(),
		dedup:      mocks.NewMockIdempotencyStore(),
		executor:   mocks.NewMockActionExecutor(),
		clock:      mocks.NewMockClock(now),
	}
	f.uc = usecase.NewAutomationUseCase(
		mocks.NewMockTransactionManager(),
		f.workflows,
		f.executions,
		f.jobs,
		f.hooks,
		f.outbox,
		f.dedup,
		f.executor,
		mocks.NewMockIDGenerator(),
		mocks.NewMockNumberGenerator(),
		f.clock,
	)
	return f
}

const threeStepGraph = `{
	"entry": "validate",
	"nodes": [
		{"id": "validate", "name": "Validate", "kind": "script", "next": "transform"},
		{"id": "transform", "name": "Transform", "kind": "script", "next": "notify"},
		{"id": "notify", "name": "Notify", "kind": "notification"}
	]
}`

func (f *automationFixture) activeWorkflow(t *testing.T, mutate func(*usecase.CreateWorkflowInput)) *domain.AutomationWorkflow {
	t.Helper()
	input := usecase.CreateWorkflowInput{
		Code:    "ORDER-SYNC",
		Name:    "Order synchronization",
		Trigger: domain.TriggerEventDriven,
		Actions: json.RawMessage(threeStepGraph),
		Actor:   usecase.Actor{ID: "ops"},
	}
	if mutate != nil {
		mutate(&input)
	}
	wf, err := f.uc.CreateWorkflow(context.Background(), input)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	wf, err = f.uc.SetWorkflowStatus(context.Background(), wf.ID, domain.AutomationActive)
	if err != nil {
		t.Fatalf("activate workflow: %v", err)
	}
	return wf
}

func (f *automationFixture) trigger(t *testing.T, code string) *domain.WorkflowExecution {
	t.Helper()
	exec, err := f.uc.Trigger(context.Background(), usecase.TriggerInput{
		WorkflowCode:  code,
		TriggerData:   json.RawMessage(`{"order_id":"so-1"}`),
		CorrelationID: "corr-1",
	})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	return exec
}

func (f *automationFixture) admit(t *testing.T, workflowID string) *domain.WorkflowExecution {
	t.Helper()
	exec, err := f.uc.AdmitNext(context.Background(), workflowID)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if exec == nil {
		t.Fatal("expected an admitted execution")
	}
	return exec
}

func TestAutomationUseCase_CreateWorkflow(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)
	f := newAutomationFixture(now)
	ctx := context.Background()

	wf, err := f.uc.CreateWorkflow(ctx, usecase.CreateWorkflowInput{
		Code:    "ORDER-SYNC",
		Trigger: domain.TriggerEventDriven,
		Actions: json.RawMessage(threeStepGraph),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if wf.Status != domain.AutomationDraft || wf.Version != 1 {
		t.Fatalf("expected draft v1, got %+v", wf)
	}

	_, err = f.uc.CreateWorkflow(ctx, usecase.CreateWorkflowInput{
		Code:    "ORDER-SYNC",
		Trigger: domain.TriggerManual,
		Actions: json.RawMessage(threeStepGraph),
	})
	if !errors.Is(err, domain.ErrDuplicateAutomationCode) {
		t.Fatalf("expected ErrDuplicateAutomationCode, got %v", err)
	}

	_, err = f.uc.CreateWorkflow(ctx, usecase.CreateWorkflowInput{
		Code:    "DANGLING",
		Trigger: domain.TriggerManual,
		Actions: json.RawMessage(`{"entry":"a","nodes":[{"id":"a","kind":"script","next":"ghost"}]}`),
	})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for dangling next, got %v", err)
	}

	_, err = f.uc.CreateWorkflow(ctx, usecase.CreateWorkflowInput{
		Code:    "LOOP",
		Trigger: domain.TriggerManual,
		Actions: json.RawMessage(`{"entry":"a","nodes":[{"id":"a","kind":"script","next":"b"},{"id":"b","kind":"script","next":"a"}]}`),
	})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for cycle, got %v", err)
	}
}

func TestAutomationUseCase_SetWorkflowStatus(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)
	f := newAutomationFixture(now)
	ctx := context.Background()

	wf := f.activeWorkflow(t, nil)
	if wf.Version != 2 {
		t.Fatalf("activation should bump the version, got %d", wf.Version)
	}

	wf, err := f.uc.SetWorkflowStatus(ctx, wf.ID, domain.AutomationArchived)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	_, err = f.uc.SetWorkflowStatus(ctx, wf.ID, domain.AutomationActive)
	if domain.KindOf(err) != domain.KindBusinessRule {
		t.Fatalf("archived workflows must be immutable, got %v", err)
	}
}

func TestAutomationUseCase_TriggerAndAdmit(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("queues a pending execution", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)

		exec := f.trigger(t, wf.Code)
		if exec.Status != domain.ExecutionPending || exec.CurrentStep != "validate" || exec.TotalSteps != 3 {
			t.Fatalf("unexpected execution: %+v", exec)
		}
		if exec.Number != "EXE-2025-000001" {
			t.Fatalf("unexpected number %q", exec.Number)
		}
	})

	t.Run("inactive workflows refuse triggers", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		if _, err := f.uc.SetWorkflowStatus(ctx, wf.ID, domain.AutomationPaused); err != nil {
			t.Fatalf("pause: %v", err)
		}

		_, err := f.uc.Trigger(ctx, usecase.TriggerInput{WorkflowCode: wf.Code})
		if !errors.Is(err, domain.ErrWorkflowInactive) {
			t.Fatalf("expected ErrWorkflowInactive, got %v", err)
		}
	})

	t.Run("admission honors the concurrency limit", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, func(in *usecase.CreateWorkflowInput) {
			in.MaxConcurrentRuns = 1
		})
		first := f.trigger(t, wf.Code)
		f.trigger(t, wf.Code)

		admitted := f.admit(t, wf.ID)
		if admitted.ID != first.ID || admitted.Status != domain.ExecutionRunning || admitted.StartedAt == nil {
			t.Fatalf("unexpected admission: %+v", admitted)
		}

		second, err := f.uc.AdmitNext(ctx, wf.ID)
		if err != nil {
			t.Fatalf("admit: %v", err)
		}
		if second != nil {
			t.Fatalf("slot is taken, nothing should be admitted: %+v", second)
		}
	})

	t.Run("nothing pending admits nothing", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)

		exec, err := f.uc.AdmitNext(ctx, wf.ID)
		if err != nil || exec != nil {
			t.Fatalf("expected empty admission, got %+v, %v", exec, err)
		}
	})
}

func TestAutomationUseCase_Run(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("runs every step to completion", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		f.trigger(t, wf.Code)
		exec := f.admit(t, wf.ID)

		f.executor.ByNode["validate"] = func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
			return usecase.StepResult{Output: json.RawMessage(`{"ok":true}`)}, nil
		}
		f.executor.ByNode["transform"] = func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
			if _, ok := input.PriorOutputs["validate"]; !ok {
				return usecase.StepResult{}, errors.New("missing prior output")
			}
			return usecase.StepResult{}, nil
		}

		done, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if done.Status != domain.ExecutionCompleted || done.CompletedSteps != 3 {
			t.Fatalf("unexpected final state: %+v", done)
		}
		if len(f.executor.Calls) != 3 || f.executor.Calls[2] != "notify" {
			t.Fatalf("unexpected step order: %v", f.executor.Calls)
		}
		types := f.outbox.EventTypes()
		if types[len(types)-1] != domain.EventExecutionCompleted {
			t.Fatalf("expected completion event, got %v", types)
		}

		wf, _ = f.uc.GetWorkflow(ctx, wf.ID)
		if wf.RunCount != 1 || wf.SuccessCount != 1 {
			t.Fatalf("counters not folded: runs=%d ok=%d", wf.RunCount, wf.SuccessCount)
		}
	})

	t.Run("refuses executions that are not running", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		exec := f.trigger(t, wf.Code)

		_, err := f.uc.Run(ctx, exec.ID)
		if !errors.Is(err, domain.ErrExecutionNotRunning) {
			t.Fatalf("expected ErrExecutionNotRunning, got %v", err)
		}
	})

	t.Run("suspends and resumes with a signal", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		f.trigger(t, wf.Code)
		exec := f.admit(t, wf.ID)

		f.executor.ByNode["transform"] = func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
			if len(input.Signal) == 0 {
				return usecase.StepResult{Suspended: true, ResumeToken: "tok-approve"}, nil
			}
			return usecase.StepResult{Output: input.Signal}, nil
		}

		waiting, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if waiting.Status != domain.ExecutionWaiting || waiting.ResumeToken != "tok-approve" {
			t.Fatalf("expected waiting execution: %+v", waiting)
		}

		if _, err := f.uc.Resume(ctx, exec.ID, "wrong-token", nil); !errors.Is(err, domain.ErrInvalidResumeToken) {
			t.Fatalf("expected ErrInvalidResumeToken, got %v", err)
		}

		resumed, err := f.uc.Resume(ctx, exec.ID, "tok-approve", json.RawMessage(`{"approved":true}`))
		if err != nil {
			t.Fatalf("resume: %v", err)
		}
		if resumed.Status != domain.ExecutionRunning {
			t.Fatalf("expected running after resume: %+v", resumed)
		}

		done, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("run after resume: %v", err)
		}
		if done.Status != domain.ExecutionCompleted {
			t.Fatalf("expected completion, got %s", done.Status)
		}
		// validate once, transform twice (suspend + resume), notify once.
		if len(f.executor.Calls) != 4 {
			t.Fatalf("unexpected call trail: %v", f.executor.Calls)
		}

		if _, err := f.uc.Resume(ctx, exec.ID, "tok-approve", nil); !errors.Is(err, domain.ErrExecutionNotWaiting) {
			t.Fatalf("expected ErrExecutionNotWaiting, got %v", err)
		}
	})

	t.Run("failed steps park for retry then terminate", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, func(in *usecase.CreateWorkflowInput) {
			in.Retry = &domain.RetryPolicy{MaxRetries: 1, BackoffSeconds: 5}
		})
		f.trigger(t, wf.Code)
		exec := f.admit(t, wf.ID)

		f.executor.ByNode["transform"] = func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
			return usecase.StepResult{}, errors.New("downstream unavailable")
		}

		parked, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if parked.Status != domain.ExecutionRetrying || parked.RetryCount != 1 {
			t.Fatalf("expected retrying, got %+v", parked)
		}
		if parked.ErrorStep != "transform" {
			t.Fatalf("error step not recorded: %+v", parked)
		}

		if err := f.uc.Requeue(ctx, exec.ID); err != nil {
			t.Fatalf("requeue: %v", err)
		}
		f.admit(t, wf.ID)

		failed, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("second run: %v", err)
		}
		if failed.Status != domain.ExecutionFailed {
			t.Fatalf("retries exhausted, expected Failed, got %s", failed.Status)
		}
		types := f.outbox.EventTypes()
		if types[len(types)-1] != domain.EventExecutionFailed {
			t.Fatalf("expected failure event, got %v", types)
		}
		wf, _ = f.uc.GetWorkflow(ctx, wf.ID)
		if wf.FailureCount != 1 {
			t.Fatalf("failure not counted: %+v", wf)
		}
	})

	t.Run("deadline exceeded times the execution out", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, func(in *usecase.CreateWorkflowInput) {
			in.TimeoutSeconds = 60
		})
		f.trigger(t, wf.Code)
		exec := f.admit(t, wf.ID)

		f.clock.Advance(2 * time.Minute)
		timed, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if timed.Status != domain.ExecutionTimeout {
			t.Fatalf("expected Timeout, got %s", timed.Status)
		}
		if len(f.executor.Calls) != 0 {
			t.Fatalf("no step should run past the deadline: %v", f.executor.Calls)
		}
	})
}

func TestAutomationUseCase_ExecutionLease(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("a held execution rejects a second worker", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		f.trigger(t, wf.Code)
		exec := f.admit(t, wf.ID)

		// A second worker picks up the same admitted execution while the
		// first is inside a step.
		var secondErr error
		f.executor.ByNode["transform"] = func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
			_, secondErr = f.uc.Run(ctx, exec.ID)
			return usecase.StepResult{}, nil
		}

		done, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if done.Status != domain.ExecutionCompleted {
			t.Fatalf("expected completion, got %s", done.Status)
		}
		if !errors.Is(secondErr, domain.ErrLeaseLost) {
			t.Fatalf("expected ErrLeaseLost for the second worker, got %v", secondErr)
		}
		// Every step ran exactly once despite the second claim attempt.
		if len(f.executor.Calls) != 3 {
			t.Fatalf("steps double-ran: %v", f.executor.Calls)
		}
	})

	t.Run("lease releases at completion", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		f.trigger(t, wf.Code)
		exec := f.admit(t, wf.ID)

		done, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if done.LeaseOwner != "" || done.LeaseExpiresAt != nil {
			t.Fatalf("lease should clear on completion: %+v", done)
		}
	})

	t.Run("lease releases at suspension", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		f.trigger(t, wf.Code)
		exec := f.admit(t, wf.ID)

		f.executor.ByNode["transform"] = func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
			return usecase.StepResult{Suspended: true, ResumeToken: "tok-wait"}, nil
		}

		waiting, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if waiting.Status != domain.ExecutionWaiting {
			t.Fatalf("expected waiting, got %s", waiting.Status)
		}
		if waiting.LeaseOwner != "" || waiting.LeaseExpiresAt != nil {
			t.Fatalf("lease should clear while waiting: %+v", waiting)
		}
	})

	t.Run("an expired lease can be reclaimed", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		f.trigger(t, wf.Code)
		exec := f.admit(t, wf.ID)

		// The first worker stalls inside the first step past the lease
		// TTL; a second worker may then take the execution over.
		var secondErr error
		stalled := false
		f.executor.ByNode["validate"] = func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
			if !stalled {
				stalled = true
				f.clock.Advance(2 * time.Minute)
				_, secondErr = f.uc.Run(ctx, exec.ID)
			}
			return usecase.StepResult{}, nil
		}

		if _, err := f.uc.Run(ctx, exec.ID); !errors.Is(err, domain.ErrLeaseLost) {
			t.Fatalf("stalled worker should lose its lease, got %v", err)
		}
		if secondErr != nil {
			t.Fatalf("takeover run: %v", secondErr)
		}
		got, err := f.uc.GetExecution(ctx, exec.ID)
		if err != nil {
			t.Fatalf("get execution: %v", err)
		}
		if got.Status != domain.ExecutionCompleted {
			t.Fatalf("expected takeover to finish the execution, got %s", got.Status)
		}
	})
}

func TestAutomationUseCase_Cancel(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("pending cancels immediately", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		exec := f.trigger(t, wf.Code)

		cancelled, err := f.uc.Cancel(ctx, exec.ID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.Status != domain.ExecutionCancelled {
			t.Fatalf("expected Cancelled, got %s", cancelled.Status)
		}

		_, err = f.uc.Cancel(ctx, exec.ID)
		if !errors.Is(err, domain.ErrNotCancellable) {
			t.Fatalf("expected ErrNotCancellable, got %v", err)
		}
	})

	t.Run("running cancels between steps", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		f.trigger(t, wf.Code)
		exec := f.admit(t, wf.ID)

		f.executor.ByNode["validate"] = func(c context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
			// The cancellation lands while the first step is running.
			if _, err := f.uc.Cancel(ctx, input.ExecutionID); err != nil {
				return usecase.StepResult{}, err
			}
			return usecase.StepResult{}, nil
		}

		done, err := f.uc.Run(ctx, exec.ID)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if done.Status != domain.ExecutionCancelled {
			t.Fatalf("expected Cancelled, got %s", done.Status)
		}
		if len(f.executor.Calls) != 1 {
			t.Fatalf("steps after the tombstone must not run: %v", f.executor.Calls)
		}
	})
}

func TestAutomationUseCase_ScheduledJobs(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)
	ctx := context.Background()

	newJob := func(t *testing.T, f *automationFixture, wf *domain.AutomationWorkflow, misfire domain.MisfirePolicy) *domain.ScheduledJob {
		t.Helper()
		job, err := f.uc.CreateJob(ctx, usecase.CreateJobInput{
			Name:       "hourly sync",
			WorkflowID: wf.ID,
			CronSpec:   "0 * * * *",
			Misfire:    misfire,
		})
		if err != nil {
			t.Fatalf("create job: %v", err)
		}
		return job
	}

	t.Run("create computes the next slot", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		job := newJob(t, f, wf, "")

		if job.Misfire != domain.MisfireRunImmediately {
			t.Fatalf("misfire should default, got %s", job.Misfire)
		}
		want := time.Date(2025, 8, 1, 11, 0, 0, 0, time.UTC)
		if job.NextRunAt == nil || !job.NextRunAt.Equal(want) {
			t.Fatalf("expected next run %v, got %v", want, job.NextRunAt)
		}

		_, err := f.uc.CreateJob(ctx, usecase.CreateJobInput{
			Name: "broken", WorkflowID: wf.ID, CronSpec: "every day at noon",
		})
		if domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("expected validation error for cron spec, got %v", err)
		}
	})

	t.Run("single missed slot fires once", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		job := newJob(t, f, wf, domain.MisfireRunAll)

		fired, err := f.uc.FireDueJobs(ctx, now.Add(45*time.Minute))
		if err != nil {
			t.Fatalf("fire: %v", err)
		}
		if fired != 1 {
			t.Fatalf("expected one firing, got %d", fired)
		}

		job, _ = f.jobs.GetByID(ctx, job.ID)
		want := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
		if job.NextRunAt == nil || !job.NextRunAt.Equal(want) || job.RunCount != 1 {
			t.Fatalf("schedule not advanced: %+v", job)
		}
	})

	t.Run("run-all fires one execution per missed slot", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		newJob(t, f, wf, domain.MisfireRunAll)

		// Three hourly slots elapse before the scheduler wakes up.
		fired, err := f.uc.FireDueJobs(ctx, now.Add(3*time.Hour))
		if err != nil {
			t.Fatalf("fire: %v", err)
		}
		if fired != 3 {
			t.Fatalf("expected three firings, got %d", fired)
		}
	})

	t.Run("skip drops missed slots", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		job := newJob(t, f, wf, domain.MisfireSkip)

		fired, err := f.uc.FireDueJobs(ctx, now.Add(3*time.Hour))
		if err != nil {
			t.Fatalf("fire: %v", err)
		}
		if fired != 0 {
			t.Fatalf("skip policy must not fire, got %d", fired)
		}
		job, _ = f.jobs.GetByID(ctx, job.ID)
		if job.NextRunAt == nil || !job.NextRunAt.After(now.Add(3*time.Hour)) {
			t.Fatalf("schedule must still advance: %v", job.NextRunAt)
		}
	})

	t.Run("run-immediately collapses the backlog", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, nil)
		newJob(t, f, wf, domain.MisfireRunImmediately)

		fired, err := f.uc.FireDueJobs(ctx, now.Add(3*time.Hour))
		if err != nil {
			t.Fatalf("fire: %v", err)
		}
		if fired != 1 {
			t.Fatalf("expected a single catch-up firing, got %d", fired)
		}
	})
}

func TestAutomationUseCase_HandleWebhook(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)
	ctx := context.Background()
	body := json.RawMessage(`{"event":"order.created"}`)

	sign := func(secret string, payload []byte) string {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		return hex.EncodeToString(mac.Sum(nil))
	}

	seedEndpoint := func(t *testing.T, f *automationFixture, wf *domain.AutomationWorkflow, secret string, active bool) {
		t.Helper()
		err := f.hooks.CreateEndpoint(ctx, &domain.WebhookEndpoint{
			ID:         "ep-1",
			Path:       "/hooks/orders",
			WorkflowID: wf.ID,
			Secret:     secret,
			IsActive:   active,
		})
		if err != nil {
			t.Fatalf("seed endpoint: %v", err)
		}
	}

	t.Run("spawns an execution and records the delivery", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, func(in *usecase.CreateWorkflowInput) {
			in.Trigger = domain.TriggerWebhook
		})
		seedEndpoint(t, f, wf, "s3cret", true)

		exec, err := f.uc.HandleWebhook(ctx, usecase.WebhookInput{
			Path:      "/hooks/orders",
			Method:    "POST",
			Body:      body,
			RequestID: "req-1",
			Signature: sign("s3cret", body),
		})
		if err != nil {
			t.Fatalf("handle webhook: %v", err)
		}
		if exec.Status != domain.ExecutionPending {
			t.Fatalf("expected pending execution, got %+v", exec)
		}
		if len(f.hooks.Requests) != 1 {
			t.Fatalf("expected one recorded request, got %d", len(f.hooks.Requests))
		}
		req := f.hooks.Requests[0]
		if req.ResponseCode != 202 || req.ExecutionID != exec.ID {
			t.Fatalf("unexpected request record: %+v", req)
		}
	})

	t.Run("replays return the original execution", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, func(in *usecase.CreateWorkflowInput) {
			in.Trigger = domain.TriggerWebhook
		})
		seedEndpoint(t, f, wf, "", true)

		first, err := f.uc.HandleWebhook(ctx, usecase.WebhookInput{
			Path: "/hooks/orders", Method: "POST", Body: body, RequestID: "req-1",
		})
		if err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		replay, err := f.uc.HandleWebhook(ctx, usecase.WebhookInput{
			Path: "/hooks/orders", Method: "POST", Body: body, RequestID: "req-1",
		})
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if replay.ID != first.ID {
			t.Fatalf("replay must return the original execution, got %s and %s", first.ID, replay.ID)
		}
		if len(f.hooks.Requests) != 1 {
			t.Fatalf("replay must not record a second request, got %d", len(f.hooks.Requests))
		}
	})

	t.Run("concurrent delivery of one request id spawns once", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, func(in *usecase.CreateWorkflowInput) {
			in.Trigger = domain.TriggerWebhook
		})
		seedEndpoint(t, f, wf, "", true)

		// A sibling delivery holds the reservation but has not yet
		// stored its execution id.
		if _, _, err := f.dedup.CheckAndSet(ctx, "webhook:req-1", nil, time.Hour); err != nil {
			t.Fatalf("reserve: %v", err)
		}

		_, err := f.uc.HandleWebhook(ctx, usecase.WebhookInput{
			Path: "/hooks/orders", Method: "POST", Body: body, RequestID: "req-1",
		})
		if !errors.Is(err, domain.ErrDuplicateDelivery) {
			t.Fatalf("expected ErrDuplicateDelivery, got %v", err)
		}
		if len(f.hooks.Requests) != 0 {
			t.Fatalf("in-flight duplicate must not record a request, got %d", len(f.hooks.Requests))
		}
	})

	t.Run("signature and endpoint gates", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, func(in *usecase.CreateWorkflowInput) {
			in.Trigger = domain.TriggerWebhook
		})
		seedEndpoint(t, f, wf, "s3cret", true)

		_, err := f.uc.HandleWebhook(ctx, usecase.WebhookInput{
			Path: "/hooks/orders", Method: "POST", Body: body, Signature: "deadbeef",
		})
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}

		_, err = f.uc.HandleWebhook(ctx, usecase.WebhookInput{
			Path: "/hooks/unknown", Method: "POST", Body: body,
		})
		if !errors.Is(err, domain.ErrEndpointNotFound) {
			t.Fatalf("expected ErrEndpointNotFound, got %v", err)
		}
	})

	t.Run("inactive endpoint refuses deliveries", func(t *testing.T) {
		f := newAutomationFixture(now)
		wf := f.activeWorkflow(t, func(in *usecase.CreateWorkflowInput) {
			in.Trigger = domain.TriggerWebhook
		})
		seedEndpoint(t, f, wf, "", false)

		_, err := f.uc.HandleWebhook(ctx, usecase.WebhookInput{
			Path: "/hooks/orders", Method: "POST", Body: body,
		})
		if !errors.Is(err, domain.ErrEndpointInactive) {
			t.Fatalf("expected ErrEndpointInactive, got %v", err)
		}
	})
}
