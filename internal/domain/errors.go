package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that map domain failures onto
// transport semantics. Engines return errors verbatim; the HTTP layer
// uses KindOf to pick a status code.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindBusinessRule
	KindConflict
	KindUnauthorized
	KindDependency
)

// Error is a classified domain error with a stable machine code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is lets sentinel comparisons match classified errors carrying the
// same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error for the given entity.
func NotFound(code, entity string) *Error {
	return newError(KindNotFound, code, "%s not found", entity)
}

// Validation builds a KindValidation error.
func Validation(code, format string, args ...any) *Error {
	return newError(KindValidation, code, format, args...)
}

// BusinessRule builds a KindBusinessRule error with a specific code.
func BusinessRule(code, format string, args ...any) *Error {
	return newError(KindBusinessRule, code, format, args...)
}

// Conflict builds a KindConflict error.
func Conflict(code, format string, args ...any) *Error {
	return newError(KindConflict, code, format, args...)
}

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(code, format string, args ...any) *Error {
	return newError(KindUnauthorized, code, format, args...)
}

// Dependency builds a KindDependency error for a store or
// external-system failure.
func Dependency(code, format string, args ...any) *Error {
	return newError(KindDependency, code, format, args...)
}

// KindOf extracts the Kind from err, walking the wrap chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// ErrorCode extracts the stable machine code from err, or "internal".
func ErrorCode(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal"
}

// Sentinel errors shared across engines.
var (
	// Auth
	ErrInvalidToken = Unauthorized("invalid_token", "token is malformed or its signature does not verify")
	ErrExpiredToken = Unauthorized("expired_token", "token has expired")

	// Ledger
	ErrAccountNotFound      = NotFound("account_not_found", "account")
	ErrDuplicateAccountCode = BusinessRule("duplicate_code", "account code already exists")
	ErrCyclicParent         = BusinessRule("cyclic_parent", "account parent chain forms a cycle")
	ErrEntryNotFound        = NotFound("entry_not_found", "journal entry")
	ErrEntryNotDraft        = BusinessRule("entry_not_draft", "journal entry is not in draft status")
	ErrEntryUnbalanced      = BusinessRule("unbalanced", "journal entry debits and credits are unequal")
	ErrLineBothSides        = BusinessRule("line_both_sides", "journal line carries both a debit and a credit")
	ErrEntryNotPosted       = BusinessRule("entry_not_posted", "journal entry is not posted")
	ErrEmptyEntry           = Validation("empty_entry", "journal entry requires at least one line")
	ErrPeriodNotFound       = NotFound("period_not_found", "accounting period")
	ErrPeriodOutsideYear    = Validation("period_outside_year", "period dates fall outside the fiscal year")
	ErrPeriodCloseForbidden = Unauthorized("period_close_forbidden", "only a privileged user may change a period lock")
	ErrPeriodLockRegression = BusinessRule("period_lock_regression", "period locks only tighten")
	ErrReportWindowInvalid  = Validation("report_window_invalid", "report window end precedes start")
	ErrReportInClosedPeriod = BusinessRule("report_in_closed_period", "report date falls inside a hard-closed period")
	ErrPeriodLocked         = BusinessRule("period_locked", "accounting period is hard closed")
	ErrPeriodSoftClosed     = BusinessRule("period_soft_closed", "accounting period is soft closed")
	ErrFiscalYearNotFound   = NotFound("fiscal_year_not_found", "fiscal year")
	ErrFiscalYearOverlap    = BusinessRule("fiscal_year_overlap", "fiscal year overlaps an existing year")
	ErrRecurringNotFound    = NotFound("recurring_not_found", "recurring journal")

	// Approval
	ErrWorkflowNotFound      = NotFound("workflow_not_found", "approval workflow")
	ErrDuplicateWorkflowCode = BusinessRule("duplicate_workflow_code", "workflow code already exists")
	ErrNoMatchingWorkflow    = BusinessRule("no_workflow", "no active approval workflow matches the document")
	ErrRequestNotFound       = NotFound("request_not_found", "approval request")
	ErrRequestNotPending     = BusinessRule("request_not_pending", "approval request is not pending")
	ErrNotEligibleApprover   = Unauthorized("not_eligible_approver", "caller is not an eligible approver at the current level")
	ErrNotRequester          = Unauthorized("not_requester", "only the requester or a privileged user can cancel")
	ErrCommentRequired       = BusinessRule("comment_required", "workflow requires a comment on every decision")
	ErrDelegationDisabled    = BusinessRule("delegation_disabled", "workflow does not allow delegation")

	// Rules
	ErrRuleNotFound     = NotFound("rule_not_found", "business rule")
	ErrRuleSetNotFound  = NotFound("ruleset_not_found", "rule set")
	ErrTableNotFound    = NotFound("table_not_found", "decision table")
	ErrAmbiguousMatch   = BusinessRule("ambiguous_match", "unique hit policy matched more than one row")
	ErrRuleNotEffective = BusinessRule("rule_not_effective", "rule is inactive or outside its effective window")

	// Automation
	ErrAutomationNotFound      = NotFound("automation_not_found", "automation workflow")
	ErrDuplicateAutomationCode = BusinessRule("duplicate_automation_code", "automation workflow code already exists")
	ErrExecutionNotFound       = NotFound("execution_not_found", "workflow execution")
	ErrWorkflowInactive        = BusinessRule("workflow_inactive", "automation workflow is not active")
	ErrExecutionNotRunning     = BusinessRule("execution_not_running", "execution is not running")
	ErrExecutionNotWaiting     = BusinessRule("execution_not_waiting", "execution is not waiting for a signal")
	ErrInvalidResumeToken      = Unauthorized("invalid_resume_token", "resume token does not match the waiting execution")
	ErrLeaseLost               = Conflict("lease_lost", "execution lease is held by another worker")
	ErrJobNotFound             = NotFound("job_not_found", "scheduled job")
	ErrInvalidCronSpec         = Validation("invalid_cron_spec", "invalid cron specification")
	ErrNotCancellable          = BusinessRule("not_cancellable", "execution is already terminal")
	ErrEndpointNotFound        = NotFound("endpoint_not_found", "webhook endpoint")
	ErrEndpointInactive        = BusinessRule("endpoint_inactive", "webhook endpoint is disabled")
	ErrDuplicateDelivery       = Conflict("duplicate_delivery", "a delivery with this request id is already in flight")
	ErrInvalidSignature        = Unauthorized("invalid_signature", "webhook signature verification failed")

	// Costing
	ErrValuationNotFound    = NotFound("valuation_not_found", "product valuation")
	ErrInsufficientStock    = BusinessRule("insufficient_stock", "issue quantity exceeds on-hand quantity")
	ErrAdjustmentNotFound   = NotFound("adjustment_not_found", "cost adjustment")
	ErrAdjustmentNotDraft   = BusinessRule("adjustment_not_draft", "cost adjustment is not in draft status")
	ErrInvalidQuantity      = Validation("invalid_quantity", "quantity must be positive")
	ErrInvalidCostingMethod = Validation("invalid_costing_method", "unknown costing method")

	// Credit
	ErrProfileNotFound = NotFound("profile_not_found", "credit profile")
	ErrHoldNotFound    = NotFound("hold_not_found", "credit hold")
	ErrAlertNotFound   = NotFound("alert_not_found", "credit alert")
	ErrHoldActive      = BusinessRule("hold_active", "customer already has an active credit hold")
	ErrHoldNotActive   = BusinessRule("hold_not_active", "credit hold is not active")
)
