package integration

import (
	"context"
	"testing"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/tests/testutil"
)

func TestCreditHoldLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	eng := newEngines(t, testDB)

	profile, err := eng.Credit.CreateProfile(ctx, usecase.CreateProfileInput{
		CustomerID:      "cust-001",
		Currency:        "EUR",
		CreditLimit:     10000,
		AutoHoldEnabled: true,
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	// An order within the limit leaves the customer unblocked.
	updated, err := eng.Credit.ApplyTransaction(ctx, usecase.ApplyTransactionInput{
		CustomerID:  "cust-001",
		Kind:        domain.CreditTxOrder,
		Delta:       4000,
		ReferenceID: "so-100",
		Actor:       usecase.Actor{ID: "erin"},
	})
	if err != nil {
		t.Fatalf("apply transaction: %v", err)
	}
	if updated.CreditUsed != 4000 {
		t.Fatalf("expected used 4000, got %d", updated.CreditUsed)
	}

	var holds int
	if err := testDB.Pool.QueryRow(ctx,
		`SELECT count(*) FROM credit_holds WHERE profile_id = $1`, profile.ID,
	).Scan(&holds); err != nil {
		t.Fatalf("count holds: %v", err)
	}
	if holds != 0 {
		t.Fatalf("expected no holds within limit, got %d", holds)
	}

	// Redelivering the same reference must not double-count.
	updated, err = eng.Credit.ApplyTransaction(ctx, usecase.ApplyTransactionInput{
		CustomerID:  "cust-001",
		Kind:        domain.CreditTxOrder,
		Delta:       4000,
		ReferenceID: "so-100",
		Actor:       usecase.Actor{ID: "erin"},
	})
	if err != nil {
		t.Fatalf("reapply transaction: %v", err)
	}
	if updated.CreditUsed != 4000 {
		t.Fatalf("redelivered reference changed used amount: %d", updated.CreditUsed)
	}

	// Breaching the limit places an automatic hold.
	if _, err := eng.Credit.ApplyTransaction(ctx, usecase.ApplyTransactionInput{
		CustomerID:  "cust-001",
		Kind:        domain.CreditTxOrder,
		Delta:       8000,
		ReferenceID: "so-101",
		Actor:       usecase.Actor{ID: "erin"},
	}); err != nil {
		t.Fatalf("apply breaching transaction: %v", err)
	}

	var holdID, holdStatus string
	if err := testDB.Pool.QueryRow(ctx,
		`SELECT id, status FROM credit_holds WHERE profile_id = $1`, profile.ID,
	).Scan(&holdID, &holdStatus); err != nil {
		t.Fatalf("expected an automatic hold: %v", err)
	}
	if holdStatus != string(domain.HoldActive) {
		t.Fatalf("expected active hold, got %s", holdStatus)
	}

	released, err := eng.Credit.ReleaseHold(ctx, holdID, usecase.Actor{ID: "frank"}, "payment received")
	if err != nil {
		t.Fatalf("release hold: %v", err)
	}
	if released.Status != domain.HoldReleased || released.ReleasedBy != "frank" {
		t.Fatalf("hold not released: %+v", released)
	}
}
