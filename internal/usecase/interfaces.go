package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quorvia/erpcore/internal/domain"
)

// AccountRepository defines data access for ledger accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByCode(ctx context.Context, code string) (*domain.Account, error)
	List(ctx context.Context, page domain.Page) ([]*domain.Account, int64, error)
	Update(ctx context.Context, account *domain.Account) error
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, updatedAt time.Time) error
}

// BalanceRow is one account's aggregated posted activity.
type BalanceRow struct {
	AccountID   string
	AccountCode string
	AccountName string
	Class       domain.AccountClass
	Debits      domain.Money
	Credits     domain.Money
}

// JournalRepository defines data access for journal entries.
type JournalRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.JournalEntry) error
	GetByID(ctx context.Context, id string) (*domain.JournalEntry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.JournalEntry, error)
	MarkPosted(ctx context.Context, tx Transaction, id string, postedAt time.Time) error
	List(ctx context.Context, page domain.Page) ([]*domain.JournalEntry, int64, error)
	// BalancesThrough aggregates posted lines per account, dates in (from, asOf].
	// A zero from means from the beginning of time.
	BalancesThrough(ctx context.Context, from, asOf time.Time) ([]BalanceRow, error)
	NextSequence(ctx context.Context, tx Transaction, year int) (int64, error)
}

// PeriodRepository defines data access for fiscal years and periods.
type PeriodRepository interface {
	CreateFiscalYear(ctx context.Context, year *domain.FiscalYear) error
	GetFiscalYear(ctx context.Context, id string) (*domain.FiscalYear, error)
	ListFiscalYears(ctx context.Context) ([]*domain.FiscalYear, error)
	CreatePeriod(ctx context.Context, period *domain.AccountingPeriod) error
	GetPeriod(ctx context.Context, id string) (*domain.AccountingPeriod, error)
	// FindByDate resolves the period containing a date, locking the row
	// so posting races with period closes serialize.
	FindByDate(ctx context.Context, tx Transaction, date time.Time) (*domain.AccountingPeriod, error)
	GetPeriodForUpdate(ctx context.Context, tx Transaction, id string) (*domain.AccountingPeriod, error)
	UpdateLock(ctx context.Context, tx Transaction, id string, lock domain.PeriodLock, updatedAt time.Time) error
}

// RecurringRepository defines data access for recurring journals.
type RecurringRepository interface {
	Create(ctx context.Context, rj *domain.RecurringJournal) error
	GetByID(ctx context.Context, id string) (*domain.RecurringJournal, error)
	ListDue(ctx context.Context, tx Transaction, now time.Time) ([]*domain.RecurringJournal, error)
	UpdateSchedule(ctx context.Context, tx Transaction, id string, nextRun time.Time, lastRun time.Time) error
	List(ctx context.Context, page domain.Page) ([]*domain.RecurringJournal, int64, error)
}

// WorkflowRepository defines data access for approval workflows.
type WorkflowRepository interface {
	Create(ctx context.Context, wf *domain.ApprovalWorkflow) error
	GetByID(ctx context.Context, id string) (*domain.ApprovalWorkflow, error)
	GetByCode(ctx context.Context, code string) (*domain.ApprovalWorkflow, error)
	// ListForDocumentKind returns active workflows for a kind; the
	// caller picks the one whose amount window matches.
	ListForDocumentKind(ctx context.Context, kind string) ([]*domain.ApprovalWorkflow, error)
	List(ctx context.Context, page domain.Page) ([]*domain.ApprovalWorkflow, int64, error)
	Update(ctx context.Context, wf *domain.ApprovalWorkflow) error
}

// RequestRepository defines data access for approval requests.
type RequestRepository interface {
	Create(ctx context.Context, tx Transaction, req *domain.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.ApprovalRequest, error)
	Update(ctx context.Context, tx Transaction, req *domain.ApprovalRequest) error
	AddRecord(ctx context.Context, tx Transaction, rec *domain.ApprovalRecord) error
	ListOverdue(ctx context.Context, tx Transaction, now time.Time) ([]*domain.ApprovalRequest, error)
	List(ctx context.Context, page domain.Page) ([]*domain.ApprovalRequest, int64, error)
	// ListPendingForApprover returns pending requests whose current
	// level names the approver directly or resolves by supervisor.
	ListPendingForApprover(ctx context.Context, approverID string, page domain.Page) ([]*domain.ApprovalRequest, int64, error)
	NextSequence(ctx context.Context, tx Transaction, year int) (int64, error)
}

// ApproverDirectory resolves eligible approvers for a level selector.
// Role and department membership live outside the engine; the directory
// is the lookup seam.
type ApproverDirectory interface {
	UsersInRole(ctx context.Context, role string) ([]string, error)
	UsersInDepartment(ctx context.Context, department string) ([]string, error)
	SupervisorOf(ctx context.Context, userID string) (string, error)
}

// RuleRepository defines data access for business rules and rule sets.
type RuleRepository interface {
	Create(ctx context.Context, rule *domain.Rule) error
	GetByID(ctx context.Context, id string) (*domain.Rule, error)
	GetByCode(ctx context.Context, code string) (*domain.Rule, error)
	ListByEntityKind(ctx context.Context, entityKind string) ([]*domain.Rule, error)
	Update(ctx context.Context, rule *domain.Rule) error
	GetSet(ctx context.Context, id string) (*domain.RuleSet, error)
	CreateSet(ctx context.Context, set *domain.RuleSet) error
	RulesInSet(ctx context.Context, set *domain.RuleSet) ([]*domain.Rule, error)
	ListVariables(ctx context.Context) ([]*domain.RuleVariable, error)
	ListFunctions(ctx context.Context) ([]*domain.RuleFunction, error)
	CreateFunction(ctx context.Context, fn *domain.RuleFunction) error
	CreateExecution(ctx context.Context, exec *domain.RuleExecution) error
	ListExecutions(ctx context.Context, ruleID string, page domain.Page) ([]*domain.RuleExecution, int64, error)
}

// DecisionTableRepository defines data access for decision tables.
type DecisionTableRepository interface {
	Create(ctx context.Context, table *domain.DecisionTable) error
	GetByID(ctx context.Context, id string) (*domain.DecisionTable, error)
	GetByCode(ctx context.Context, code string) (*domain.DecisionTable, error)
	Update(ctx context.Context, table *domain.DecisionTable) error
	List(ctx context.Context, page domain.Page) ([]*domain.DecisionTable, int64, error)
}

// AutomationRepository defines data access for automation workflows.
type AutomationRepository interface {
	Create(ctx context.Context, wf *domain.AutomationWorkflow) error
	GetByID(ctx context.Context, id string) (*domain.AutomationWorkflow, error)
	GetByCode(ctx context.Context, code string) (*domain.AutomationWorkflow, error)
	ListByTrigger(ctx context.Context, trigger domain.TriggerKind) ([]*domain.AutomationWorkflow, error)
	Update(ctx context.Context, wf *domain.AutomationWorkflow) error
	UpdateCounters(ctx context.Context, tx Transaction, wf *domain.AutomationWorkflow) error
	List(ctx context.Context, page domain.Page) ([]*domain.AutomationWorkflow, int64, error)
}

// ExecutionRepository defines data access for workflow executions.
type ExecutionRepository interface {
	Create(ctx context.Context, tx Transaction, exec *domain.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*domain.WorkflowExecution, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.WorkflowExecution, error)
	Update(ctx context.Context, tx Transaction, exec *domain.WorkflowExecution) error
	// CountRunning counts executions holding a slot for a workflow,
	// inside the admitting transaction.
	CountRunning(ctx context.Context, tx Transaction, workflowID string) (int, error)
	// NextAdmissible picks the pending execution with the highest
	// priority, FIFO within a priority, locking it for admission.
	NextAdmissible(ctx context.Context, tx Transaction, workflowID string) (*domain.WorkflowExecution, error)
	ListPendingWorkflows(ctx context.Context) ([]string, error)
	RequestCancel(ctx context.Context, id string) error
	ListByWorkflow(ctx context.Context, workflowID string, page domain.Page) ([]*domain.WorkflowExecution, int64, error)
	NextSequence(ctx context.Context, tx Transaction, year int) (int64, error)
}

// ScheduledJobRepository defines data access for scheduled jobs.
type ScheduledJobRepository interface {
	Create(ctx context.Context, job *domain.ScheduledJob) error
	GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error)
	ListDue(ctx context.Context, tx Transaction, now time.Time) ([]*domain.ScheduledJob, error)
	UpdateSchedule(ctx context.Context, tx Transaction, job *domain.ScheduledJob) error
	List(ctx context.Context, page domain.Page) ([]*domain.ScheduledJob, int64, error)
}

// WebhookRepository defines data access for webhook endpoints and
// received requests.
type WebhookRepository interface {
	GetEndpointByPath(ctx context.Context, path string) (*domain.WebhookEndpoint, error)
	CreateEndpoint(ctx context.Context, ep *domain.WebhookEndpoint) error
	CreateRequest(ctx context.Context, req *domain.WebhookRequest) error
	UpdateRequest(ctx context.Context, req *domain.WebhookRequest) error
}

// ValuationRepository defines data access for product valuations.
type ValuationRepository interface {
	Create(ctx context.Context, tx Transaction, v *domain.ProductValuation) error
	Get(ctx context.Context, productID, warehouseID string) (*domain.ProductValuation, error)
	GetForUpdate(ctx context.Context, tx Transaction, productID, warehouseID string) (*domain.ProductValuation, error)
	Update(ctx context.Context, tx Transaction, v *domain.ProductValuation) error
	List(ctx context.Context, page domain.Page) ([]*domain.ProductValuation, int64, error)
}

// LayerRepository defines data access for inventory cost layers.
type LayerRepository interface {
	Create(ctx context.Context, tx Transaction, layer *domain.InventoryCostLayer) error
	// OpenLayers returns layers with stock remaining, oldest-first when
	// asc, newest-first otherwise, locked for consumption.
	OpenLayers(ctx context.Context, tx Transaction, valuationID string, asc bool) ([]*domain.InventoryCostLayer, error)
	UpdateRemaining(ctx context.Context, tx Transaction, layerID string, remaining decimal.Decimal) error
	ListByValuation(ctx context.Context, valuationID string) ([]*domain.InventoryCostLayer, error)
}

// AdjustmentRepository defines data access for cost adjustments.
type AdjustmentRepository interface {
	Create(ctx context.Context, adj *domain.CostAdjustment) error
	GetByID(ctx context.Context, id string) (*domain.CostAdjustment, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.CostAdjustment, error)
	MarkPosted(ctx context.Context, tx Transaction, id, journalEntryID string, postedAt time.Time) error
}

// CreditProfileRepository defines data access for credit profiles.
type CreditProfileRepository interface {
	Create(ctx context.Context, p *domain.CustomerCreditProfile) error
	GetByCustomer(ctx context.Context, customerID string) (*domain.CustomerCreditProfile, error)
	GetByCustomerForUpdate(ctx context.Context, tx Transaction, customerID string) (*domain.CustomerCreditProfile, error)
	Update(ctx context.Context, tx Transaction, p *domain.CustomerCreditProfile) error
	List(ctx context.Context, page domain.Page) ([]*domain.CustomerCreditProfile, int64, error)
	// ListOnHold returns profiles with an active hold.
	ListOnHold(ctx context.Context, page domain.Page) ([]*domain.CustomerCreditProfile, int64, error)
	// ListHighRisk returns profiles at High or Critical risk, most
	// overdue first.
	ListHighRisk(ctx context.Context, page domain.Page) ([]*domain.CustomerCreditProfile, int64, error)
	Summary(ctx context.Context) (*domain.CreditSummary, error)
}

// CreditLedgerRepository defines data access for credit transactions,
// holds and alerts.
type CreditLedgerRepository interface {
	CreateTransaction(ctx context.Context, tx Transaction, ct *domain.CreditTransaction) error
	TransactionExists(ctx context.Context, tx Transaction, profileID, referenceID string) (bool, error)
	ListTransactions(ctx context.Context, profileID string, page domain.Page) ([]*domain.CreditTransaction, int64, error)
	CreateHold(ctx context.Context, tx Transaction, hold *domain.CreditHold) error
	GetHold(ctx context.Context, id string) (*domain.CreditHold, error)
	GetActiveHold(ctx context.Context, tx Transaction, profileID string) (*domain.CreditHold, error)
	ReleaseHold(ctx context.Context, tx Transaction, id, releasedBy, reason string, releasedAt time.Time) error
	CreateAlert(ctx context.Context, tx Transaction, alert *domain.CreditAlert) error
	ListAlerts(ctx context.Context, profileID string, page domain.Page) ([]*domain.CreditAlert, int64, error)
	AcknowledgeAlert(ctx context.Context, alertID, userID string, at time.Time) error
	CreateLimitChange(ctx context.Context, tx Transaction, change *domain.CreditLimitChange) error
	ListLimitChanges(ctx context.Context, profileID string, page domain.Page) ([]*domain.CreditLimitChange, int64, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// NumberGenerator issues sortable document numbers like JE-2025-000042.
type NumberGenerator interface {
	Format(prefix string, year int, seq int64) string
}

// Clock abstracts wall-clock time for scheduling and escalation.
type Clock interface {
	Now() time.Time
}

// Retrier retries an operation on transient database errors such as
// deadlocks and serialization failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// EventBus publishes domain events to in-process subscribers.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
