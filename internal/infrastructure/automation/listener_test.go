package automation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/internal/usecase/mocks"
)

type stubSubscriber struct {
	chans map[string]chan *message.Message
}

func newStubSubscriber() *stubSubscriber {
	return &stubSubscriber{chans: make(map[string]chan *message.Message)}
}

func (s *stubSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message, 4)
	s.chans[topic] = ch
	return ch, nil
}

func newListenerFixture(t *testing.T) (*Listener, *usecase.AutomationUseCase, *stubSubscriber) {
	t.Helper()
	uc := usecase.NewAutomationUseCase(
		mocks.NewMockTransactionManager(),
		mocks.NewMockAutomationRepository(),
		mocks.NewMockExecutionRepository(),
		mocks.NewMockScheduledJobRepository(),
		mocks.NewMockWebhookRepository(),
		mocks.NewMockOutboxRepository(),
		mocks.NewMockIdempotencyStore(),
		mocks.NewMockActionExecutor(),
		mocks.NewMockIDGenerator(),
		mocks.NewMockNumberGenerator(),
		mocks.NewMockClock(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)),
	)
	sub := newStubSubscriber()
	listener := NewListener(ListenerConfig{
		UseCase:    uc,
		Subscriber: sub,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return listener, uc, sub
}

func eventWorkflow(t *testing.T, uc *usecase.AutomationUseCase, code string, topics ...string) *domain.AutomationWorkflow {
	t.Helper()
	cfg, err := json.Marshal(domain.EventTriggerConfig{Topics: topics})
	if err != nil {
		t.Fatalf("marshal trigger config: %v", err)
	}
	wf, err := uc.CreateWorkflow(context.Background(), usecase.CreateWorkflowInput{
		Code:          code,
		Name:          "On " + topics[0],
		Trigger:       domain.TriggerEventDriven,
		TriggerConfig: cfg,
		Actions:       json.RawMessage(twoStepGraph),
		Actor:         usecase.Actor{ID: "ops"},
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

func TestListenerTriggersOnBusDelivery(t *testing.T) {
	listener, uc, sub := newListenerFixture(t)
	ctx := context.Background()

	wf := eventWorkflow(t, uc, "ON-ENTRY-POSTED", domain.EventEntryPosted)

	subscribed := make(map[string]struct{})
	if err := listener.sync(ctx, subscribed); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if _, ok := subscribed[domain.EventEntryPosted]; !ok {
		t.Fatalf("expected a subscription on %s", domain.EventEntryPosted)
	}

	payload := []byte(`{"entry_id":"je-1","total_amount":150000}`)
	msg := message.NewMessage("evt-1", payload)
	sub.chans[domain.EventEntryPosted] <- msg

	select {
	case <-msg.Acked():
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was never acked")
	}

	res, err := uc.ListExecutions(ctx, wf.ID, domain.Page{})
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected one triggered execution, got %d", len(res.Items))
	}
	exec := res.Items[0]
	if string(exec.TriggerData) != string(payload) {
		t.Errorf("trigger data should carry the event payload, got %s", exec.TriggerData)
	}
	if exec.CorrelationID != "evt-1" {
		t.Errorf("expected correlation id evt-1, got %s", exec.CorrelationID)
	}
}

func TestListenerDropsRoutesOfDeactivatedWorkflows(t *testing.T) {
	listener, uc, sub := newListenerFixture(t)
	ctx := context.Background()

	wf := eventWorkflow(t, uc, "ON-HOLD-PLACED", domain.EventHoldPlaced)

	subscribed := make(map[string]struct{})
	if err := listener.sync(ctx, subscribed); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if _, err := uc.SetWorkflowStatus(ctx, wf.ID, domain.AutomationPaused); err != nil {
		t.Fatalf("pause workflow: %v", err)
	}
	if err := listener.sync(ctx, subscribed); err != nil {
		t.Fatalf("resync: %v", err)
	}

	msg := message.NewMessage("evt-2", []byte(`{"customer_id":"cust-1"}`))
	sub.chans[domain.EventHoldPlaced] <- msg

	select {
	case <-msg.Acked():
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was never acked")
	}

	res, err := uc.ListExecutions(ctx, wf.ID, domain.Page{})
	if err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if len(res.Items) != 0 {
		t.Fatalf("paused workflow must not trigger, got %d executions", len(res.Items))
	}
}
