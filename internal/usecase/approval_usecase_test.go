package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/internal/usecase/mocks"
)

type approvalFixture struct {
	uc        *usecase.ApprovalUseCase
	workflows *mocks.MockWorkflowRepository
	requests  *mocks.MockRequestRepository
	directory *mocks.MockApproverDirectory
	outbox    *mocks.MockOutboxRepository
	clock     *mocks.MockClock
}

func newApprovalFixture(now time.Time) *approvalFixture {
	f := &approvalFixture{
		workflows: mocks.NewMockWorkflowRepository(),
		requests:  mocks.NewMockRequestRepository(),
		directory: mocks.NewMockApproverDirectory(),
		outbox:    mocks.NewMockOutboxRepository(),
		clock:     mocks.NewMockClock(now),
	}
	f.requests.Workflows = f.workflows
	f.uc = usecase.NewApprovalUseCase(
		mocks.NewMockTransactionManager(),
		f.workflows,
		f.requests,
		f.directory,
		f.outbox,
		mocks.NewMockIDGenerator(),
		mocks.NewMockNumberGenerator(),
		f.clock,
	)
	return f
}

func money(v int64) *domain.Money {
	m := domain.Money(v)
	return &m
}

// twoLevelWorkflow is a purchase order workflow: finance team first,
// then a director level that may be skipped for small amounts.
func (f *approvalFixture) twoLevelWorkflow(t *testing.T, mutate func(*domain.ApprovalWorkflow)) *domain.ApprovalWorkflow {
	t.Helper()
	wf := &domain.ApprovalWorkflow{
		Code:         "PO-STD",
		Name:         "Standard purchase approval",
		DocumentKind: "purchase_order",
		Policy:       domain.PolicyAnyApprover,
		Levels: []domain.ApprovalLevel{
			{
				Ordinal:       1,
				Name:          "Finance",
				Selector:      domain.SelectorRole,
				SelectorValue: "finance",
				DueHours:      24,
				EscalationTo:  "cfo",
			},
			{
				Ordinal:     2,
				Name:        "Director",
				Selector:    domain.SelectorSpecificUser,
				ApproverIDs: []string{"director"},
			},
		},
	}
	if mutate != nil {
		mutate(wf)
	}
	created, err := f.uc.CreateWorkflow(context.Background(), wf)
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return created
}

func (f *approvalFixture) startRequest(t *testing.T, amount domain.Money) *domain.ApprovalRequest {
	t.Helper()
	req, err := f.uc.StartRequest(context.Background(), usecase.StartRequestInput{
		DocumentKind:   "purchase_order",
		DocumentID:     "po-77",
		DocumentNumber: "PO-2025-000077",
		Amount:         amount,
		Currency:       "USD",
		Requester:      "alice",
	})
	if err != nil {
		t.Fatalf("start request: %v", err)
	}
	return req
}

func TestApprovalUseCase_CreateWorkflow(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	f := newApprovalFixture(now)
	ctx := context.Background()

	wf := f.twoLevelWorkflow(t, nil)
	if wf.ID == "" || wf.Status != domain.WorkflowActive {
		t.Fatalf("workflow not activated: %+v", wf)
	}
	for _, level := range wf.Levels {
		if level.WorkflowID != wf.ID {
			t.Errorf("level %q not linked to workflow", level.Name)
		}
	}

	_, err := f.uc.CreateWorkflow(ctx, &domain.ApprovalWorkflow{
		Code:         "PO-STD",
		DocumentKind: "purchase_order",
		Levels:       []domain.ApprovalLevel{{Ordinal: 1, Selector: domain.SelectorSpecificUser}},
	})
	if !errors.Is(err, domain.ErrDuplicateWorkflowCode) {
		t.Fatalf("expected ErrDuplicateWorkflowCode, got %v", err)
	}

	_, err = f.uc.CreateWorkflow(ctx, &domain.ApprovalWorkflow{Code: "EMPTY", DocumentKind: "purchase_order"})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for missing levels, got %v", err)
	}
}

func TestApprovalUseCase_StartRequest(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	t.Run("opens at first level with due date", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.twoLevelWorkflow(t, nil)

		req := f.startRequest(t, 5000_00)
		if req.Status != domain.RequestPending || req.CurrentLevel != 1 {
			t.Fatalf("unexpected request state: %+v", req)
		}
		if req.DueDate == nil || !req.DueDate.Equal(now.Add(24*time.Hour)) {
			t.Fatalf("due date not set from level hours: %v", req.DueDate)
		}
		if req.Number != "APR-2025-000001" {
			t.Fatalf("unexpected request number %q", req.Number)
		}
	})

	t.Run("auto-approves strictly below threshold", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.twoLevelWorkflow(t, func(wf *domain.ApprovalWorkflow) {
			wf.AutoApproveBelow = money(100_00)
		})

		req := f.startRequest(t, 99_99)
		if req.Status != domain.RequestApproved || req.ApprovedBy != "system" {
			t.Fatalf("expected system auto-approval, got %+v", req)
		}
		types := f.outbox.EventTypes()
		if len(types) != 1 || types[0] != domain.EventRequestApproved {
			t.Fatalf("expected approved event staged, got %v", types)
		}

		// At the threshold the request still routes through levels.
		req = f.startRequest(t, 100_00)
		if req.Status != domain.RequestPending {
			t.Fatalf("threshold amount should not auto-approve: %+v", req)
		}
	})

	t.Run("matches the amount window inclusively", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.twoLevelWorkflow(t, func(wf *domain.ApprovalWorkflow) {
			wf.MinAmount = money(1000_00)
			wf.MaxAmount = money(9000_00)
		})

		if req := f.startRequest(t, 1000_00); req.Status != domain.RequestPending {
			t.Fatalf("lower bound should match: %+v", req)
		}
		_, err := f.uc.StartRequest(context.Background(), usecase.StartRequestInput{
			DocumentKind: "purchase_order",
			DocumentID:   "po-78",
			Amount:       9000_01,
			Currency:     "USD",
			Requester:    "alice",
		})
		if !errors.Is(err, domain.ErrNoMatchingWorkflow) {
			t.Fatalf("expected ErrNoMatchingWorkflow above window, got %v", err)
		}
	})

	t.Run("no workflow for the document kind", func(t *testing.T) {
		f := newApprovalFixture(now)
		_, err := f.uc.StartRequest(context.Background(), usecase.StartRequestInput{
			DocumentKind: "expense_claim",
			DocumentID:   "ec-1",
			Amount:       10_00,
			Currency:     "USD",
			Requester:    "alice",
		})
		if !errors.Is(err, domain.ErrNoMatchingWorkflow) {
			t.Fatalf("expected ErrNoMatchingWorkflow, got %v", err)
		}
	})
}

func TestApprovalUseCase_Decide(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("rejects ineligible approvers", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.directory.Roles["finance"] = []string{"fin-1", "fin-2"}
		f.twoLevelWorkflow(t, nil)
		req := f.startRequest(t, 5000_00)

		_, err := f.uc.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "mallory",
			Action:    domain.ActionApproved,
		})
		if !errors.Is(err, domain.ErrNotEligibleApprover) {
			t.Fatalf("expected ErrNotEligibleApprover, got %v", err)
		}
	})

	t.Run("advances through both levels", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.directory.Roles["finance"] = []string{"fin-1"}
		f.twoLevelWorkflow(t, nil)
		req := f.startRequest(t, 5000_00)

		req, err := f.uc.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "fin-1",
			Action:    domain.ActionApproved,
		})
		if err != nil {
			t.Fatalf("first approval: %v", err)
		}
		if req.Status != domain.RequestPending || req.CurrentLevel != 2 {
			t.Fatalf("expected advance to level 2, got %+v", req)
		}

		req, err = f.uc.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "director",
			Action:    domain.ActionApproved,
		})
		if err != nil {
			t.Fatalf("final approval: %v", err)
		}
		if req.Status != domain.RequestApproved || req.ApprovedBy != "director" {
			t.Fatalf("expected final approval, got %+v", req)
		}
		types := f.outbox.EventTypes()
		if len(types) != 1 || types[0] != domain.EventRequestApproved {
			t.Fatalf("expected approved event, got %v", types)
		}
	})

	t.Run("all-approvers policy waits for the quorum", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.directory.Roles["finance"] = []string{"fin-1", "fin-2", "fin-3"}
		f.twoLevelWorkflow(t, func(wf *domain.ApprovalWorkflow) {
			wf.Policy = domain.PolicyAllApprovers
			wf.Levels[0].MinApprovers = 2
		})
		req := f.startRequest(t, 5000_00)

		req, err := f.uc.Decide(ctx, usecase.DecideInput{RequestID: req.ID, Approver: "fin-1", Action: domain.ActionApproved})
		if err != nil {
			t.Fatalf("first approval: %v", err)
		}
		if req.CurrentLevel != 1 {
			t.Fatalf("one approval must not satisfy min of two: %+v", req)
		}

		// The same approver voting twice still counts once.
		req, err = f.uc.Decide(ctx, usecase.DecideInput{RequestID: req.ID, Approver: "fin-1", Action: domain.ActionApproved})
		if err != nil {
			t.Fatalf("repeat approval: %v", err)
		}
		if req.CurrentLevel != 1 {
			t.Fatalf("duplicate approver should not advance the level: %+v", req)
		}

		req, err = f.uc.Decide(ctx, usecase.DecideInput{RequestID: req.ID, Approver: "fin-2", Action: domain.ActionApproved})
		if err != nil {
			t.Fatalf("second approval: %v", err)
		}
		if req.CurrentLevel != 2 {
			t.Fatalf("quorum met, expected level 2: %+v", req)
		}
	})

	t.Run("rejection is terminal", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.directory.Roles["finance"] = []string{"fin-1"}
		f.twoLevelWorkflow(t, nil)
		req := f.startRequest(t, 5000_00)

		req, err := f.uc.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "fin-1",
			Action:    domain.ActionRejected,
			Comment:   "budget exhausted",
		})
		if err != nil {
			t.Fatalf("reject: %v", err)
		}
		if req.Status != domain.RequestRejected || req.RejectedBy != "fin-1" {
			t.Fatalf("expected rejection, got %+v", req)
		}
		types := f.outbox.EventTypes()
		if len(types) != 1 || types[0] != domain.EventRequestRejected {
			t.Fatalf("expected rejected event, got %v", types)
		}

		_, err = f.uc.Decide(ctx, usecase.DecideInput{RequestID: req.ID, Approver: "fin-1", Action: domain.ActionApproved})
		if !errors.Is(err, domain.ErrRequestNotPending) {
			t.Fatalf("expected ErrRequestNotPending after rejection, got %v", err)
		}
	})

	t.Run("comment required", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.directory.Roles["finance"] = []string{"fin-1"}
		f.twoLevelWorkflow(t, func(wf *domain.ApprovalWorkflow) {
			wf.RequireComments = true
		})
		req := f.startRequest(t, 5000_00)

		_, err := f.uc.Decide(ctx, usecase.DecideInput{RequestID: req.ID, Approver: "fin-1", Action: domain.ActionApproved})
		if !errors.Is(err, domain.ErrCommentRequired) {
			t.Fatalf("expected ErrCommentRequired, got %v", err)
		}
	})

	t.Run("delegation", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.directory.Roles["finance"] = []string{"fin-1"}
		f.twoLevelWorkflow(t, nil)
		req := f.startRequest(t, 5000_00)

		_, err := f.uc.Decide(ctx, usecase.DecideInput{
			RequestID:   req.ID,
			Approver:    "fin-1",
			Action:      domain.ActionDelegated,
			DelegatedTo: "deputy",
		})
		if !errors.Is(err, domain.ErrDelegationDisabled) {
			t.Fatalf("expected ErrDelegationDisabled, got %v", err)
		}

		f = newApprovalFixture(now)
		f.directory.Roles["finance"] = []string{"fin-1"}
		f.twoLevelWorkflow(t, func(wf *domain.ApprovalWorkflow) {
			wf.AllowDelegation = true
		})
		req = f.startRequest(t, 5000_00)

		if _, err := f.uc.Decide(ctx, usecase.DecideInput{
			RequestID:   req.ID,
			Approver:    "fin-1",
			Action:      domain.ActionDelegated,
			DelegatedTo: "deputy",
		}); err != nil {
			t.Fatalf("delegate: %v", err)
		}

		// The delegate is now eligible at this level.
		req, err = f.uc.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "deputy",
			Action:    domain.ActionApproved,
		})
		if err != nil {
			t.Fatalf("delegate approval: %v", err)
		}
		if req.CurrentLevel != 2 {
			t.Fatalf("delegate approval should advance, got %+v", req)
		}
	})

	t.Run("supervisor selector", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.directory.Supervisors["alice"] = "bob"
		f.twoLevelWorkflow(t, func(wf *domain.ApprovalWorkflow) {
			wf.Levels = wf.Levels[:1]
			wf.Levels[0].Selector = domain.SelectorSupervisor
			wf.Levels[0].SelectorValue = ""
		})
		req := f.startRequest(t, 5000_00)

		req, err := f.uc.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "bob",
			Action:    domain.ActionApproved,
		})
		if err != nil {
			t.Fatalf("supervisor approval: %v", err)
		}
		if req.Status != domain.RequestApproved {
			t.Fatalf("single level should finish on approval: %+v", req)
		}
	})

	t.Run("skips levels marked skip-if-approved-above", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.twoLevelWorkflow(t, func(wf *domain.ApprovalWorkflow) {
			wf.Levels = []domain.ApprovalLevel{
				{Ordinal: 1, Name: "Senior", Selector: domain.SelectorSpecificUser, ApproverIDs: []string{"senior"}},
				{Ordinal: 2, Name: "Junior", Selector: domain.SelectorSpecificUser, ApproverIDs: []string{"junior"}, SkipIfApprovedAbove: true},
			}
		})
		req := f.startRequest(t, 5000_00)

		// Seed an approval above level 2 straight onto the trail, then
		// approve level 1; the skip rule must jump level 2 entirely.
		stored, err := f.uc.GetRequest(ctx, req.ID)
		if err != nil {
			t.Fatalf("get request: %v", err)
		}
		stored.Records = append(stored.Records, domain.ApprovalRecord{
			RequestID:  req.ID,
			Level:      3,
			ApproverID: "vp",
			Action:     domain.ActionApproved,
		})

		req, err = f.uc.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "senior",
			Action:    domain.ActionApproved,
		})
		if err != nil {
			t.Fatalf("approve: %v", err)
		}
		if req.Status != domain.RequestApproved {
			t.Fatalf("expected skip to final approval, got %+v", req)
		}
	})
}

func TestApprovalUseCase_PendingQueue(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	namedApprovers := func(wf *domain.ApprovalWorkflow) {
		wf.Levels[0].Selector = domain.SelectorSpecificUser
		wf.Levels[0].SelectorValue = ""
		wf.Levels[0].ApproverIDs = []string{"fin-1", "fin-2"}
	}

	t.Run("lists requests awaiting the approver", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.twoLevelWorkflow(t, namedApprovers)
		f.startRequest(t, 5000_00)
		f.startRequest(t, 7000_00)

		res, err := f.uc.PendingForApprover(ctx, "fin-1", domain.Page{})
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if res.Total != 2 || len(res.Items) != 2 {
			t.Fatalf("expected both requests pending, got %+v", res)
		}

		// The director's level is not current yet.
		res, err = f.uc.PendingForApprover(ctx, "director", domain.Page{})
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if res.Total != 0 {
			t.Fatalf("director queue should be empty, got %+v", res)
		}
	})

	t.Run("queue follows the current level", func(t *testing.T) {
		f := newApprovalFixture(now)
		f.twoLevelWorkflow(t, namedApprovers)
		req := f.startRequest(t, 5000_00)

		if _, err := f.uc.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "fin-1",
			Action:    domain.ActionApproved,
		}); err != nil {
			t.Fatalf("approve: %v", err)
		}

		res, err := f.uc.PendingForApprover(ctx, "director", domain.Page{})
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if res.Total != 1 {
			t.Fatalf("expected the advanced request in the director queue, got %+v", res)
		}
		res, err = f.uc.PendingForApprover(ctx, "fin-1", domain.Page{})
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if res.Total != 0 {
			t.Fatalf("approved level must leave the finance queue, got %+v", res)
		}
	})

	t.Run("requires an approver id", func(t *testing.T) {
		f := newApprovalFixture(now)
		if _, err := f.uc.PendingForApprover(ctx, "", domain.Page{}); domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, err := f.uc.PendingSummary(ctx, ""); domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestApprovalUseCase_PendingSummary(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	f := newApprovalFixture(now)
	f.twoLevelWorkflow(t, func(wf *domain.ApprovalWorkflow) {
		wf.Levels[0].Selector = domain.SelectorSpecificUser
		wf.Levels[0].ApproverIDs = []string{"fin-1"}
	})
	f.startRequest(t, 5000_00)
	f.startRequest(t, 7000_00)

	// The first level is due in 24 hours; move past it so both
	// requests count as overdue.
	f.clock.Advance(30 * time.Hour)

	summary, err := f.uc.PendingSummary(ctx, "fin-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.PendingCount != 2 || summary.TotalAmount != 12000_00 {
		t.Fatalf("unexpected totals: %+v", summary)
	}
	if summary.OverdueCount != 2 {
		t.Fatalf("expected both overdue, got %+v", summary)
	}
	if len(summary.ByDocumentKind) != 1 {
		t.Fatalf("expected one document kind, got %+v", summary.ByDocumentKind)
	}
	kind := summary.ByDocumentKind[0]
	if kind.DocumentKind != "purchase_order" || kind.Count != 2 || kind.TotalAmount != 12000_00 {
		t.Fatalf("unexpected kind tally: %+v", kind)
	}
}

func TestApprovalUseCase_EscalateOverdue(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	f := newApprovalFixture(now)
	f.directory.Roles["finance"] = []string{"fin-1"}
	f.twoLevelWorkflow(t, nil)
	req := f.startRequest(t, 5000_00)

	// Not yet overdue.
	n, err := f.uc.EscalateOverdue(ctx, now.Add(1*time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("expected no escalations, got %d, %v", n, err)
	}

	past := now.Add(25 * time.Hour)
	n, err = f.uc.EscalateOverdue(ctx, past)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one escalation, got %d", n)
	}

	req, err = f.uc.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != domain.RequestEscalated {
		t.Fatalf("expected Escalated, got %s", req.Status)
	}
	if req.DueDate == nil || !req.DueDate.Equal(past.Add(24*time.Hour)) {
		t.Fatalf("due date not reset: %v", req.DueDate)
	}
	types := f.outbox.EventTypes()
	if len(types) != 1 || types[0] != domain.EventRequestEscalated {
		t.Fatalf("expected escalated event, got %v", types)
	}

	// The escalation target can now decide even though they hold no
	// finance role.
	f.clock.Advance(25 * time.Hour)
	req, err = f.uc.Decide(ctx, usecase.DecideInput{
		RequestID: req.ID,
		Approver:  "cfo",
		Action:    domain.ActionApproved,
	})
	if err != nil {
		t.Fatalf("escalated approval: %v", err)
	}
	if req.CurrentLevel != 2 || req.Status != domain.RequestPending {
		t.Fatalf("expected advance past escalated level, got %+v", req)
	}
}

func TestApprovalUseCase_Cancel(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	f := newApprovalFixture(now)
	f.twoLevelWorkflow(t, nil)
	req := f.startRequest(t, 5000_00)

	_, err := f.uc.Cancel(ctx, req.ID, usecase.Actor{ID: "mallory"})
	if !errors.Is(err, domain.ErrNotRequester) {
		t.Fatalf("expected ErrNotRequester, got %v", err)
	}

	req, err = f.uc.Cancel(ctx, req.ID, usecase.Actor{ID: "alice"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if req.Status != domain.RequestCancelled || req.DueDate != nil {
		t.Fatalf("expected cancelled request, got %+v", req)
	}
	types := f.outbox.EventTypes()
	if len(types) != 1 || types[0] != domain.EventRequestCancelled {
		t.Fatalf("expected cancelled event, got %v", types)
	}

	_, err = f.uc.Cancel(ctx, req.ID, usecase.Actor{ID: "ops", Privileged: true})
	if !errors.Is(err, domain.ErrRequestNotPending) {
		t.Fatalf("expected ErrRequestNotPending for terminal request, got %v", err)
	}
}
