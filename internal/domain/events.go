package domain

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventEntryPosted        = "ledger.entry.posted"
	EventEntryReversed      = "ledger.entry.reversed"
	EventPeriodClosed       = "ledger.period.closed"
	EventRequestApproved    = "approval.request.approved"
	EventRequestRejected    = "approval.request.rejected"
	EventRequestCancelled   = "approval.request.cancelled"
	EventRequestEscalated   = "approval.request.escalated"
	EventInventoryReceipt   = "inventory.receipt"
	EventInventoryIssue     = "inventory.issue"
	EventCostAdjusted       = "inventory.cost.adjusted"
	EventHoldPlaced         = "credit.hold.placed"
	EventHoldReleased       = "credit.hold.released"
	EventCreditAlertRaised  = "credit.alert.raised"
	EventExecutionCompleted = "automation.execution.completed"
	EventExecutionFailed    = "automation.execution.failed"
)

// Aggregate types
const (
	AggregateJournalEntry    = "journal_entry"
	AggregateApprovalRequest = "approval_request"
	AggregateValuation       = "product_valuation"
	AggregateCreditProfile   = "credit_profile"
	AggregateExecution       = "workflow_execution"
)

// OutboxEvent is an event staged in the same transaction as the state
// change it describes, published later by the outbox poller.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// EntryPostedEvent payload
type EntryPostedEvent struct {
	EntryID     string `json:"entry_id"`
	EntryNumber string `json:"entry_number"`
	Date        string `json:"date"`
	Currency    string `json:"currency"`
	TotalAmount int64  `json:"total_amount"`
}

// EntryReversedEvent payload
type EntryReversedEvent struct {
	ReversalEntryID string `json:"reversal_entry_id"`
	OriginalEntryID string `json:"original_entry_id"`
	Date            string `json:"date"`
}

// PeriodClosedEvent payload
type PeriodClosedEvent struct {
	PeriodID string `json:"period_id"`
	Lock     string `json:"lock"`
}

// RequestDecidedEvent payload for approved/rejected/cancelled/escalated
type RequestDecidedEvent struct {
	RequestID     string `json:"request_id"`
	RequestNumber string `json:"request_number"`
	DocumentKind  string `json:"document_kind"`
	DocumentID    string `json:"document_id"`
	Status        string `json:"status"`
	DecidedBy     string `json:"decided_by,omitempty"`
	Level         int    `json:"level,omitempty"`
}

// StockMovementEvent payload for receipts and issues
type StockMovementEvent struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    string `json:"quantity"`
	UnitCost    string `json:"unit_cost"`
	Value       int64  `json:"value"`
}

// CostAdjustedEvent payload
type CostAdjustedEvent struct {
	AdjustmentID   string `json:"adjustment_id"`
	JournalEntryID string `json:"journal_entry_id"`
	TotalDelta     int64  `json:"total_delta"`
}

// HoldEvent payload for placed/released
type HoldEvent struct {
	CustomerID string `json:"customer_id"`
	HoldID     string `json:"hold_id"`
	HoldType   string `json:"hold_type"`
	Reason     string `json:"reason,omitempty"`
}

// CreditAlertEvent payload
type CreditAlertEvent struct {
	CustomerID  string `json:"customer_id"`
	AlertID     string `json:"alert_id"`
	Severity    string `json:"severity"`
	AlertType   string `json:"alert_type"`
	ActualValue int64  `json:"actual_value"`
}

// ExecutionFinishedEvent payload for completed/failed
type ExecutionFinishedEvent struct {
	ExecutionID   string `json:"execution_id"`
	Number        string `json:"number"`
	WorkflowID    string `json:"workflow_id"`
	WorkflowCode  string `json:"workflow_code"`
	Status        string `json:"status"`
	ErrorStep     string `json:"error_step,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// BusEvent is the envelope carried on the in-process event bus.
type BusEvent struct {
	ID            string          `json:"id"`
	Topic         string          `json:"topic"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
