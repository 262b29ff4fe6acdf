package integration

import (
	"testing"
	"time"

	adaptershttp "github.com/quorvia/erpcore/internal/adapter/http"
	"github.com/quorvia/erpcore/internal/adapter/http/handler"
	postgresrepo "github.com/quorvia/erpcore/internal/adapter/repository/postgres"
	"github.com/quorvia/erpcore/internal/infrastructure/automation"
	"github.com/quorvia/erpcore/internal/infrastructure/clock"
	"github.com/quorvia/erpcore/internal/infrastructure/eventbus"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/tests/testutil"
)

// engines bundles the fully wired use cases backing a test server.
type engines struct {
	Ledger     *usecase.LedgerUseCase
	Approval   *usecase.ApprovalUseCase
	Rules      *usecase.RuleUseCase
	Automation *usecase.AutomationUseCase
	Costing    *usecase.CostingUseCase
	Credit     *usecase.CreditUseCase

	Outbox *postgresrepo.OutboxRepository
	Bus    *eventbus.Bus
}

// newEngines wires every engine against the real database.
func newEngines(t *testing.T, db *testutil.TestDB) *engines {
	t.Helper()

	pool := db.Pool
	txManager := postgresrepo.NewTxManager(pool)
	outboxRepo := postgresrepo.NewOutboxRepository(pool)
	idGen := postgresrepo.NewULIDGenerator()
	numGen := postgresrepo.NewDocumentNumberGenerator()
	sysClock := clock.System{}

	bus := eventbus.New(nil)
	t.Cleanup(func() { bus.Close() })

	ledgerUC := usecase.NewLedgerUseCase(
		txManager,
		postgresrepo.NewAccountRepository(pool),
		postgresrepo.NewJournalRepository(pool),
		postgresrepo.NewPeriodRepository(pool),
		postgresrepo.NewRecurringRepository(pool),
		outboxRepo, idGen, numGen, sysClock)
	approvalUC := usecase.NewApprovalUseCase(
		txManager,
		postgresrepo.NewWorkflowRepository(pool),
		postgresrepo.NewRequestRepository(pool),
		postgresrepo.NewApproverDirectory(pool),
		outboxRepo, idGen, numGen, sysClock)
	ruleUC := usecase.NewRuleUseCase(
		postgresrepo.NewRuleRepository(pool),
		postgresrepo.NewDecisionTableRepository(pool),
		idGen, sysClock)
	costingUC := usecase.NewCostingUseCase(
		txManager,
		postgresrepo.NewValuationRepository(pool),
		postgresrepo.NewLayerRepository(pool),
		postgresrepo.NewAdjustmentRepository(pool),
		outboxRepo, ledgerUC, idGen, numGen, sysClock,
		"1400", "5900")
	creditUC := usecase.NewCreditUseCase(
		txManager,
		postgresrepo.NewCreditProfileRepository(pool),
		postgresrepo.NewCreditLedgerRepository(pool),
		outboxRepo, idGen, sysClock)

	executor := automation.NewExecutor(automation.ExecutorConfig{
		Bus:   bus,
		Rules: ruleUC,
		IDGen: idGen,
	})
	automationUC := usecase.NewAutomationUseCase(
		txManager,
		postgresrepo.NewAutomationRepository(pool),
		postgresrepo.NewExecutionRepository(pool),
		postgresrepo.NewScheduledJobRepository(pool),
		postgresrepo.NewWebhookRepository(pool),
		outboxRepo, nil, executor, idGen, numGen, sysClock)

	return &engines{
		Ledger:     ledgerUC,
		Approval:   approvalUC,
		Rules:      ruleUC,
		Automation: automationUC,
		Costing:    costingUC,
		Credit:     creditUC,
		Outbox:     outboxRepo,
		Bus:        bus,
	}
}

// newTestRouter builds the HTTP stack over the wired engines. Auth,
// rate limiting and idempotency are off so tests hit handlers directly.
func newTestRouter(t *testing.T, db *testutil.TestDB, eng *engines) *adaptershttp.RouterConfig {
	t.Helper()

	return &adaptershttp.RouterConfig{
		LedgerHandler:     handler.NewLedgerHandler(eng.Ledger),
		ApprovalHandler:   handler.NewApprovalHandler(eng.Approval),
		RuleHandler:       handler.NewRuleHandler(eng.Rules),
		AutomationHandler: handler.NewAutomationHandler(eng.Automation),
		CostingHandler:    handler.NewCostingHandler(eng.Costing),
		CreditHandler:     handler.NewCreditHandler(eng.Credit),
		HealthHandler:     handler.NewHealthHandler(db.Pool, nil),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
