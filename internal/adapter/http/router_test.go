package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quorvia/erpcore/internal/adapter/http/handler"
	apimiddleware "github.com/quorvia/erpcore/internal/adapter/http/middleware"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/internal/usecase/mocks"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"code":"1000","name":"Cash","class":"Asset"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if !store.checkCalled {
		t.Fatalf("expected idempotency store to be used")
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"POST /api/v1/accounts/",
		"GET /api/v1/accounts/",
		"POST /api/v1/journal-entries/{id}/post",
		"GET /api/v1/reports/trial-balance",
		"POST /api/v1/approval-requests/{id}/decisions",
		"POST /api/v1/rules/{id}/evaluate",
		"POST /api/v1/decision-tables/{id}/lookup",
		"POST /api/v1/automations/trigger",
		"POST /api/v1/executions/{id}/resume",
		"POST /api/v1/costing/issues",
		"POST /api/v1/credit-transactions/",
		"POST /api/v1/credit-holds/{id}/release",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func TestNewRouter_WebhookMountedOutsideAPIPrefix(t *testing.T) {
	router := NewRouter(newRouterConfig())

	// No endpoint is registered for this path, so the handler reports 404
	// rather than the router: it still proves the mount bypasses auth.
	req := httptest.NewRequest(http.MethodPost, "/hooks/orders", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected unknown hook path to return 404, got %d", rec.Code)
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	clock := mocks.NewMockClock(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	tx := mocks.NewMockTransactionManager()
	outbox := mocks.NewMockOutboxRepository()
	idGen := mocks.NewMockIDGenerator()
	numGen := mocks.NewMockNumberGenerator()

	ledgerUC := usecase.NewLedgerUseCase(
		tx,
		mocks.NewMockAccountRepository(),
		mocks.NewMockJournalRepository(),
		mocks.NewMockPeriodRepository(),
		mocks.NewMockRecurringRepository(),
		outbox, idGen, numGen, clock,
	)
	approvalUC := usecase.NewApprovalUseCase(
		tx,
		mocks.NewMockWorkflowRepository(),
		mocks.NewMockRequestRepository(),
		mocks.NewMockApproverDirectory(),
		outbox, idGen, numGen, clock,
	)
	ruleUC := usecase.NewRuleUseCase(
		mocks.NewMockRuleRepository(),
		mocks.NewMockDecisionTableRepository(),
		idGen, clock,
	)
	automationUC := usecase.NewAutomationUseCase(
		tx,
		mocks.NewMockAutomationRepository(),
		mocks.NewMockExecutionRepository(),
		mocks.NewMockScheduledJobRepository(),
		mocks.NewMockWebhookRepository(),
		outbox,
		mocks.NewMockIdempotencyStore(),
		mocks.NewMockActionExecutor(),
		idGen, numGen, clock,
	)
	costingUC := usecase.NewCostingUseCase(
		tx,
		mocks.NewMockValuationRepository(),
		mocks.NewMockLayerRepository(),
		mocks.NewMockAdjustmentRepository(),
		outbox, nil, idGen, numGen, clock,
		"1400", "5900",
	)
	creditUC := usecase.NewCreditUseCase(
		tx,
		mocks.NewMockCreditProfileRepository(),
		mocks.NewMockCreditLedgerRepository(),
		outbox, idGen, clock,
	)

	cfg := RouterConfig{
		HealthHandler:     &handler.HealthHandler{},
		LedgerHandler:     handler.NewLedgerHandler(ledgerUC),
		ApprovalHandler:   handler.NewApprovalHandler(approvalUC),
		RuleHandler:       handler.NewRuleHandler(ruleUC),
		AutomationHandler: handler.NewAutomationHandler(automationUC),
		CostingHandler:    handler.NewCostingHandler(costingUC),
		CreditHandler:     handler.NewCreditHandler(creditUC),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubIdempotencyStore struct {
	checkCalled bool
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return nil
}
