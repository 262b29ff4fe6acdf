package domain

import (
	"strings"
	"time"
)

// ApprovalPolicy decides how approvals at a level advance the request.
type ApprovalPolicy string

const (
	PolicyAnyApprover  ApprovalPolicy = "AnyApprover"
	PolicyAllApprovers ApprovalPolicy = "AllApprovers"
	PolicySequential   ApprovalPolicy = "Sequential"
)

// ApproverSelector decides who may approve at a level.
type ApproverSelector string

const (
	SelectorRole         ApproverSelector = "Role"
	SelectorDepartment   ApproverSelector = "Department"
	SelectorSupervisor   ApproverSelector = "Supervisor"
	SelectorAmountBased  ApproverSelector = "AmountBased"
	SelectorSpecificUser ApproverSelector = "SpecificUser"
)

// WorkflowStatus is the lifecycle state of an approval workflow.
type WorkflowStatus string

const (
	WorkflowActive   WorkflowStatus = "Active"
	WorkflowInactive WorkflowStatus = "Inactive"
)

// ApprovalLevel is one stage of an approval workflow.
type ApprovalLevel struct {
	ID         string
	WorkflowID string
	Ordinal    int
	Name       string
	Selector   ApproverSelector
	// SelectorValue is the role or department name for those selectors.
	SelectorValue       string
	ApproverIDs         []string
	MinApprovers        int
	SkipIfApprovedAbove bool
	DueHours            int
	EscalationTo        string
}

// ApprovalWorkflow routes documents of one kind through ordered levels.
type ApprovalWorkflow struct {
	ID               string
	Code             string
	Name             string
	Description      string
	DocumentKind     string
	Policy           ApprovalPolicy
	MinAmount        *Money
	MaxAmount        *Money
	AutoApproveBelow *Money
	AllowDelegation  bool
	RequireComments  bool
	Status           WorkflowStatus
	Levels           []ApprovalLevel
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks workflow shape.
func (w *ApprovalWorkflow) Validate() error {
	if strings.TrimSpace(w.Code) == "" {
		return Validation("workflow_code_required", "workflow code is required")
	}
	if strings.TrimSpace(w.DocumentKind) == "" {
		return Validation("document_kind_required", "document kind is required")
	}
	if len(w.Levels) == 0 {
		return Validation("levels_required", "at least one approval level is required")
	}
	return nil
}

// Matches reports whether the workflow applies to a document amount.
// The amount window is inclusive on both ends.
func (w *ApprovalWorkflow) Matches(amount Money) bool {
	if w.Status != WorkflowActive {
		return false
	}
	if w.MinAmount != nil && amount < *w.MinAmount {
		return false
	}
	if w.MaxAmount != nil && amount > *w.MaxAmount {
		return false
	}
	return true
}

// AutoApproves reports whether the amount is strictly below the
// auto-approve threshold.
func (w *ApprovalWorkflow) AutoApproves(amount Money) bool {
	return w.AutoApproveBelow != nil && amount < *w.AutoApproveBelow
}

// LevelAt returns the level with the given ordinal.
func (w *ApprovalWorkflow) LevelAt(ordinal int) *ApprovalLevel {
	for i := range w.Levels {
		if w.Levels[i].Ordinal == ordinal {
			return &w.Levels[i]
		}
	}
	return nil
}

// NextLevel returns the first level with an ordinal above the given one,
// or nil if the given level is final.
func (w *ApprovalWorkflow) NextLevel(after int) *ApprovalLevel {
	var next *ApprovalLevel
	for i := range w.Levels {
		l := &w.Levels[i]
		if l.Ordinal > after && (next == nil || l.Ordinal < next.Ordinal) {
			next = l
		}
	}
	return next
}

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "Pending"
	RequestApproved  RequestStatus = "Approved"
	RequestRejected  RequestStatus = "Rejected"
	RequestCancelled RequestStatus = "Cancelled"
	RequestEscalated RequestStatus = "Escalated"
)

// Terminal reports whether a request status is final.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected || s == RequestCancelled
}

// ApprovalAction is a single decision kind.
type ApprovalAction string

const (
	ActionApproved        ApprovalAction = "Approved"
	ActionRejected        ApprovalAction = "Rejected"
	ActionDelegated       ApprovalAction = "Delegated"
	ActionReturnedForInfo ApprovalAction = "ReturnedForInfo"
)

// ApprovalRecord is one decision in a request's trail.
type ApprovalRecord struct {
	ID          string
	RequestID   string
	Level       int
	ApproverID  string
	Action      ApprovalAction
	Comment     string
	DelegatedTo string
	CreatedAt   time.Time
}

// ApprovalRequest is a document instance moving through a workflow.
type ApprovalRequest struct {
	ID             string
	Number         string
	WorkflowID     string
	DocumentKind   string
	DocumentID     string
	DocumentNumber string
	RequestedBy    string
	Amount         Money
	Currency       string
	Status         RequestStatus
	CurrentLevel   int
	DueDate        *time.Time
	ApprovedAt     *time.Time
	ApprovedBy     string
	RejectedAt     *time.Time
	RejectedBy     string
	Records        []ApprovalRecord
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ApprovalsAtLevel counts distinct approvers who approved at a level,
// in trail order.
func (r *ApprovalRequest) ApprovalsAtLevel(level int) []string {
	seen := make(map[string]bool)
	var approvers []string
	for _, rec := range r.Records {
		if rec.Level == level && rec.Action == ActionApproved && !seen[rec.ApproverID] {
			seen[rec.ApproverID] = true
			approvers = append(approvers, rec.ApproverID)
		}
	}
	return approvers
}

// DelegatesAtLevel returns approvers added through delegation at a level.
func (r *ApprovalRequest) DelegatesAtLevel(level int) []string {
	var out []string
	for _, rec := range r.Records {
		if rec.Level == level && rec.Action == ActionDelegated && rec.DelegatedTo != "" {
			out = append(out, rec.DelegatedTo)
		}
	}
	return out
}

// HasApprovalAbove reports whether any level above the given one has an
// approval on the trail. Used for skip_if_approved_above.
func (r *ApprovalRequest) HasApprovalAbove(level int) bool {
	for _, rec := range r.Records {
		if rec.Level > level && rec.Action == ActionApproved {
			return true
		}
	}
	return false
}

// DocumentKindTally aggregates pending requests of one document kind.
type DocumentKindTally struct {
	DocumentKind string
	Count        int64
	TotalAmount  Money
}

// PendingSummary is an approver's open workload: every pending request
// sitting at a level the approver can decide.
type PendingSummary struct {
	ApproverID     string
	PendingCount   int64
	TotalAmount    Money
	OverdueCount   int64
	ByDocumentKind []DocumentKindTally
}
