package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, "ledger.entry.posted")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	payload := map[string]any{"entry_id": "je-1", "total_amount": float64(1500)}
	if err := bus.Publish(ctx, "ledger.entry.posted", payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-msgs:
		var got map[string]any
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if got["entry_id"] != "je-1" {
			t.Errorf("unexpected payload: %v", got)
		}
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("message never arrived")
	}
}

func TestOutboxPublisherUsesEventTypeAsTopic(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, "credit.hold.placed")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	pub := NewOutboxPublisher(bus)
	event := &domain.OutboxEvent{
		ID:        "evt-1",
		EventType: "credit.hold.placed",
		Payload:   map[string]any{"customer_id": "cust-1"},
	}
	if err := pub.Publish(ctx, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-msgs:
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("outbox event never reached the bus")
	}
}
