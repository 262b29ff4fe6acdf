package automation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/internal/usecase/mocks"
)

type stubBus struct {
	topics   []string
	payloads []any
	err      error
}

func (b *stubBus) Publish(ctx context.Context, topic string, payload any) error {
	if b.err != nil {
		return b.err
	}
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload)
	return nil
}

type stubEvaluator struct {
	result *usecase.SetResult
	err    error

	entityKind string
	entity     map[string]any
}

func (s *stubEvaluator) EvaluateForEntity(ctx context.Context, entityKind, entityID string, entity map[string]any) (*usecase.SetResult, error) {
	s.entityKind = entityKind
	s.entity = entity
	return s.result, s.err
}

func newExecutor(bus usecase.EventBus, rules RuleEvaluator) *Executor {
	return NewExecutor(ExecutorConfig{
		Bus:   bus,
		Rules: rules,
		IDGen: mocks.NewMockIDGenerator(),
	})
}

func TestExecutorHTTPNode(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ex := newExecutor(&stubBus{}, &stubEvaluator{})
	node := domain.ActionNode{
		ID:     "call",
		Kind:   "http",
		Config: json.RawMessage(`{"url":"` + srv.URL + `"}`),
	}

	res, err := ex.Execute(context.Background(), node, usecase.StepInput{
		ExecutionID: "exe-1",
		TriggerData: json.RawMessage(`{"order_id":"so-9"}`),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(res.Output) != `{"ok":true}` {
		t.Errorf("unexpected output: %s", res.Output)
	}
	if received["execution_id"] != "exe-1" {
		t.Errorf("server never saw the step envelope: %v", received)
	}
}

func TestExecutorHTTPNodeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ex := newExecutor(&stubBus{}, &stubEvaluator{})
	node := domain.ActionNode{
		ID:     "call",
		Kind:   "http",
		Config: json.RawMessage(`{"url":"` + srv.URL + `"}`),
	}

	_, err := ex.Execute(context.Background(), node, usecase.StepInput{ExecutionID: "exe-1"})
	if domain.KindOf(err) != domain.KindDependency {
		t.Fatalf("expected dependency error for 502, got %v", err)
	}
}

func TestExecutorPublishNodeBusFailure(t *testing.T) {
	bus := &stubBus{err: errors.New("bus closed")}
	ex := newExecutor(bus, &stubEvaluator{})
	node := domain.ActionNode{
		ID:     "announce",
		Kind:   "publish",
		Config: json.RawMessage(`{"topic":"orders.synced"}`),
	}

	_, err := ex.Execute(context.Background(), node, usecase.StepInput{ExecutionID: "exe-1"})
	if domain.KindOf(err) != domain.KindDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if domain.ErrorCode(err) != "action_publish_failed" {
		t.Errorf("code = %q", domain.ErrorCode(err))
	}
}

func TestExecutorPublishNode(t *testing.T) {
	bus := &stubBus{}
	ex := newExecutor(bus, &stubEvaluator{})
	node := domain.ActionNode{
		ID:     "announce",
		Kind:   "publish",
		Config: json.RawMessage(`{"topic":"orders.synced"}`),
	}

	if _, err := ex.Execute(context.Background(), node, usecase.StepInput{ExecutionID: "exe-1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(bus.topics) != 1 || bus.topics[0] != "orders.synced" {
		t.Errorf("expected publish on orders.synced, got %v", bus.topics)
	}
}

func TestExecutorRuleNode(t *testing.T) {
	eval := &stubEvaluator{
		result: &usecase.SetResult{
			Results: []*usecase.ExecutionResult{
				{RuleCode: "R1", Matched: true},
				{RuleCode: "R2", Matched: false},
			},
		},
	}
	ex := newExecutor(&stubBus{}, eval)
	node := domain.ActionNode{
		ID:     "check",
		Kind:   "rule",
		Config: json.RawMessage(`{"entity_kind":"sales_order"}`),
	}

	res, err := ex.Execute(context.Background(), node, usecase.StepInput{
		ExecutionID: "exe-1",
		TriggerData: json.RawMessage(`{"total":900}`),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eval.entityKind != "sales_order" || eval.entity["total"] != float64(900) {
		t.Errorf("evaluator saw wrong input: kind=%s entity=%v", eval.entityKind, eval.entity)
	}

	var out map[string]int
	if err := json.Unmarshal(res.Output, &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out["evaluated"] != 2 || out["matched"] != 1 {
		t.Errorf("unexpected summary: %v", out)
	}
}

func TestExecutorWaitNode(t *testing.T) {
	ex := newExecutor(&stubBus{}, &stubEvaluator{})
	node := domain.ActionNode{ID: "gate", Kind: "wait", Suspending: true}

	res, err := ex.Execute(context.Background(), node, usecase.StepInput{ExecutionID: "exe-1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Suspended || res.ResumeToken == "" {
		t.Fatalf("expected suspension with a token, got %+v", res)
	}

	res, err = ex.Execute(context.Background(), node, usecase.StepInput{
		ExecutionID: "exe-1",
		Signal:      json.RawMessage(`{"approved":true}`),
	})
	if err != nil {
		t.Fatalf("execute with signal: %v", err)
	}
	if res.Suspended {
		t.Error("signalled wait node should not suspend again")
	}
	if string(res.Output) != `{"approved":true}` {
		t.Errorf("expected signal echo, got %s", res.Output)
	}
}

func TestExecutorUnknownKind(t *testing.T) {
	ex := newExecutor(&stubBus{}, &stubEvaluator{})
	node := domain.ActionNode{ID: "x", Kind: "teleport"}

	_, err := ex.Execute(context.Background(), node, usecase.StepInput{})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}
}
