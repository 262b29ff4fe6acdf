package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// WebhookDedupTTL is how long webhook request IDs are remembered
	WebhookDedupTTL = 6 * time.Hour

	// OutboxBatchSize is how many events one publisher poll drains
	OutboxBatchSize = 100
)

// Document number prefixes
const (
	PrefixJournalEntry = "JE"
	PrefixApproval     = "APR"
	PrefixExecution    = "EXE"
	PrefixAdjustment   = "ADJ"
)

// Actor is the principal performing an operation.
type Actor struct {
	ID         string
	Privileged bool
}
