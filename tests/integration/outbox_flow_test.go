package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/infrastructure/eventbus"
	"github.com/quorvia/erpcore/internal/infrastructure/eventpublisher"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/tests/testutil"
)

// Posting an entry stages an outbox event; the publisher drains it onto
// the bus and marks it published.
func TestOutboxDrainsToEventBus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	eng := newEngines(t, testDB)

	testDB.SeedOpenPeriod(ctx, "FY2025", date(2025, 1, 1), date(2025, 12, 31))
	cash := testDB.SeedAccount(ctx, "1000", "Cash", domain.AccountAsset)
	sales := testDB.SeedAccount(ctx, "4000", "Sales", domain.AccountRevenue)

	msgs, err := eng.Bus.Subscribe(ctx, domain.EventEntryPosted)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	entry, err := eng.Ledger.CreateEntry(ctx, usecase.CreateEntryInput{
		Date:     date(2025, 6, 10),
		Currency: "EUR",
		Lines: []domain.JournalLine{
			{AccountID: cash.ID, Debit: 2500},
			{AccountID: sales.ID, Credit: 2500},
		},
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := eng.Ledger.PostEntry(ctx, entry.ID, usecase.Actor{ID: "erin"}); err != nil {
		t.Fatalf("post entry: %v", err)
	}

	pubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: eng.Outbox,
		Publisher:  eventbus.NewOutboxPublisher(eng.Bus),
		Interval:   50 * time.Millisecond,
	})
	go publisher.Start(pubCtx)

	select {
	case msg := <-msgs:
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["entry_id"] != entry.ID {
			t.Fatalf("unexpected event payload: %v", payload)
		}
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the posted event")
	}

	// The row must be flagged so a restart does not republish it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var published bool
		err := testDB.Pool.QueryRow(ctx,
			`SELECT published FROM outbox_events WHERE aggregate_id = $1`, entry.ID,
		).Scan(&published)
		if err == nil && published {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("outbox event never marked published (err=%v)", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
