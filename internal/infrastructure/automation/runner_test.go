package automation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/internal/usecase/mocks"
)

const twoStepGraph = `{
	"entry": "fetch",
	"nodes": [
		{"id": "fetch", "name": "Fetch", "kind": "script", "next": "store"},
		{"id": "store", "name": "Store", "kind": "script"}
	]
}`

func newRunnerFixture(t *testing.T) (*Runner, *usecase.AutomationUseCase, *mocks.MockActionExecutor) {
	t.Helper()
	executor := mocks.NewMockActionExecutor()
	uc := usecase.NewAutomationUseCase(
		mocks.NewMockTransactionManager(),
		mocks.NewMockAutomationRepository(),
		mocks.NewMockExecutionRepository(),
		mocks.NewMockScheduledJobRepository(),
		mocks.NewMockWebhookRepository(),
		mocks.NewMockOutboxRepository(),
		mocks.NewMockIdempotencyStore(),
		executor,
		mocks.NewMockIDGenerator(),
		mocks.NewMockNumberGenerator(),
		mocks.NewMockClock(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)),
	)
	runner := NewRunner(Config{
		UseCase: uc,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Workers: 2,
	})
	return runner, uc, executor
}

func activeWorkflow(t *testing.T, uc *usecase.AutomationUseCase) *domain.AutomationWorkflow {
	t.Helper()
	wf, err := uc.CreateWorkflow(context.Background(), usecase.CreateWorkflowInput{
		Code:    "NIGHTLY-SYNC",
		Name:    "Nightly synchronization",
		Trigger: domain.TriggerEventDriven,
		Actions: json.RawMessage(twoStepGraph),
		Actor:   usecase.Actor{ID: "ops"},
	})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	wf, err = uc.SetWorkflowStatus(context.Background(), wf.ID, domain.AutomationActive)
	if err != nil {
		t.Fatalf("activate workflow: %v", err)
	}
	return wf
}

func TestRunnerTickDrainsQueuedExecutions(t *testing.T) {
	runner, uc, executor := newRunnerFixture(t)
	ctx := context.Background()

	wf := activeWorkflow(t, uc)

	first, err := uc.Trigger(ctx, usecase.TriggerInput{WorkflowCode: wf.Code})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	second, err := uc.Trigger(ctx, usecase.TriggerInput{WorkflowCode: wf.Code})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	runner.tick(ctx)

	for _, id := range []string{first.ID, second.ID} {
		exec, err := uc.GetExecution(ctx, id)
		if err != nil {
			t.Fatalf("get execution %s: %v", id, err)
		}
		if exec.Status != domain.ExecutionCompleted {
			t.Errorf("expected execution %s completed, got %s", id, exec.Status)
		}
	}

	if len(executor.Calls) != 4 {
		t.Errorf("expected 4 step calls across both runs, got %d", len(executor.Calls))
	}
}

func TestRunnerRequeuesRetryingExecution(t *testing.T) {
	runner, uc, executor := newRunnerFixture(t)
	runner.retryBackoff = time.Millisecond
	ctx := context.Background()

	wf, err := uc.CreateWorkflow(ctx, usecase.CreateWorkflowInput{
		Code:    "FLAKY-SYNC",
		Name:    "Flaky synchronization",
		Trigger: domain.TriggerEventDriven,
		Actions: json.RawMessage(twoStepGraph),
		Retry:   &domain.RetryPolicy{MaxRetries: 1},
	})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if _, err := uc.SetWorkflowStatus(ctx, wf.ID, domain.AutomationActive); err != nil {
		t.Fatalf("activate workflow: %v", err)
	}

	failures := 0
	executor.ByNode["store"] = func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
		if failures == 0 {
			failures++
			return usecase.StepResult{}, domain.Validation("store_failed", "store exploded")
		}
		return usecase.StepResult{}, nil
	}

	exec, err := uc.Trigger(ctx, usecase.TriggerInput{WorkflowCode: wf.Code})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	// First tick runs and fails the store step, then requeues after the
	// backoff; the second tick re-admits and completes.
	runner.tick(ctx)
	runner.tick(ctx)

	got, err := uc.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if got.Status != domain.ExecutionCompleted {
		t.Fatalf("expected completed after retry, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("expected one retry, got %d", got.RetryCount)
	}
}
