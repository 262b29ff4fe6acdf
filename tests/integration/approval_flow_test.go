package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/tests/testutil"
)

func TestApprovalRequestFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	eng := newEngines(t, testDB)
	testDB.SeedRole(ctx, "carol", "controller")

	autoApprove := domain.Money(5000)
	workflow := &domain.ApprovalWorkflow{
		Code:             "PO-STD",
		Name:             "Standard purchase approval",
		DocumentKind:     "purchase_order",
		Policy:           domain.PolicySequential,
		AutoApproveBelow: &autoApprove,
		Levels: []domain.ApprovalLevel{
			{
				Ordinal:       1,
				Name:          "Controller review",
				Selector:      domain.SelectorRole,
				SelectorValue: "controller",
				MinApprovers:  1,
			},
		},
	}
	if _, err := eng.Approval.CreateWorkflow(ctx, workflow); err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	t.Run("below threshold auto-approves", func(t *testing.T) {
		req, err := eng.Approval.StartRequest(ctx, usecase.StartRequestInput{
			DocumentKind:   "purchase_order",
			DocumentID:     testutil.GenerateID(),
			DocumentNumber: "PO-2025-000001",
			Amount:         3000,
			Currency:       "EUR",
			Requester:      "dave",
		})
		if err != nil {
			t.Fatalf("start request: %v", err)
		}
		if req.Status != domain.RequestApproved || req.ApprovedBy != "system" {
			t.Fatalf("expected system auto-approval, got %+v", req)
		}
	})

	t.Run("at threshold routes through the level", func(t *testing.T) {
		req, err := eng.Approval.StartRequest(ctx, usecase.StartRequestInput{
			DocumentKind:   "purchase_order",
			DocumentID:     testutil.GenerateID(),
			DocumentNumber: "PO-2025-000002",
			Amount:         9000,
			Currency:       "EUR",
			Requester:      "dave",
		})
		if err != nil {
			t.Fatalf("start request: %v", err)
		}
		if req.Status != domain.RequestPending || req.CurrentLevel != 1 {
			t.Fatalf("expected pending at level 1, got %+v", req)
		}

		_, err = eng.Approval.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "mallory",
			Action:    domain.ActionApproved,
		})
		if !errors.Is(err, domain.ErrNotEligibleApprover) {
			t.Fatalf("expected ErrNotEligibleApprover, got %v", err)
		}

		decided, err := eng.Approval.Decide(ctx, usecase.DecideInput{
			RequestID: req.ID,
			Approver:  "carol",
			Action:    domain.ActionApproved,
			Comment:   "within budget",
		})
		if err != nil {
			t.Fatalf("decide: %v", err)
		}
		if decided.Status != domain.RequestApproved {
			t.Fatalf("expected approved request, got %+v", decided)
		}
		if len(decided.Records) != 1 || decided.Records[0].ApproverID != "carol" {
			t.Fatalf("decision trail missing: %+v", decided.Records)
		}
	})
}
