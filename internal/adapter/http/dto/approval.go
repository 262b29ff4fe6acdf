package dto

import (
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// ApprovalLevelRequest describes one level of an approval chain.
type ApprovalLevelRequest struct {
	Ordinal             int      `json:"ordinal"`
	Name                string   `json:"name"`
	Selector            string   `json:"selector"`
	SelectorValue       string   `json:"selector_value,omitempty"`
	ApproverIDs         []string `json:"approver_ids,omitempty"`
	MinApprovers        int      `json:"min_approvers,omitempty"`
	SkipIfApprovedAbove bool     `json:"skip_if_approved_above,omitempty"`
	DueHours            int      `json:"due_hours,omitempty"`
	EscalationTo        string   `json:"escalation_to,omitempty"`
}

// CreateApprovalWorkflowRequest represents a request to create an approval workflow.
type CreateApprovalWorkflowRequest struct {
	Code             string                 `json:"code"`
	Name             string                 `json:"name"`
	Description      string                 `json:"description,omitempty"`
	DocumentKind     string                 `json:"document_kind"`
	Policy           string                 `json:"policy"`
	MinAmount        *int64                 `json:"min_amount,omitempty"`
	MaxAmount        *int64                 `json:"max_amount,omitempty"`
	AutoApproveBelow *int64                 `json:"auto_approve_below,omitempty"`
	AllowDelegation  bool                   `json:"allow_delegation,omitempty"`
	RequireComments  bool                   `json:"require_comments,omitempty"`
	Levels           []ApprovalLevelRequest `json:"levels"`
}

// ToDomain converts the request to a domain workflow.
func (r *CreateApprovalWorkflowRequest) ToDomain() *domain.ApprovalWorkflow {
	levels := make([]domain.ApprovalLevel, len(r.Levels))
	for i, l := range r.Levels {
		levels[i] = domain.ApprovalLevel{
			Ordinal:             l.Ordinal,
			Name:                l.Name,
			Selector:            domain.ApproverSelector(l.Selector),
			SelectorValue:       l.SelectorValue,
			ApproverIDs:         l.ApproverIDs,
			MinApprovers:        l.MinApprovers,
			SkipIfApprovedAbove: l.SkipIfApprovedAbove,
			DueHours:            l.DueHours,
			EscalationTo:        l.EscalationTo,
		}
	}
	return &domain.ApprovalWorkflow{
		Code:             r.Code,
		Name:             r.Name,
		Description:      r.Description,
		DocumentKind:     r.DocumentKind,
		Policy:           domain.ApprovalPolicy(r.Policy),
		MinAmount:        r.MinAmount,
		MaxAmount:        r.MaxAmount,
		AutoApproveBelow: r.AutoApproveBelow,
		AllowDelegation:  r.AllowDelegation,
		RequireComments:  r.RequireComments,
		Levels:           levels,
	}
}

// StartRequestRequest represents a request to start an approval request.
type StartRequestRequest struct {
	DocumentKind   string `json:"document_kind"`
	DocumentID     string `json:"document_id"`
	DocumentNumber string `json:"document_number,omitempty"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// ToUseCaseInput converts to use case input.
func (r *StartRequestRequest) ToUseCaseInput(requester string) usecase.StartRequestInput {
	return usecase.StartRequestInput{
		DocumentKind:   r.DocumentKind,
		DocumentID:     r.DocumentID,
		DocumentNumber: r.DocumentNumber,
		Amount:         r.Amount,
		Currency:       r.Currency,
		Requester:      requester,
	}
}

// DecideRequest records an approval decision.
type DecideRequest struct {
	Action      string `json:"action"`
	Comment     string `json:"comment,omitempty"`
	DelegatedTo string `json:"delegated_to,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *DecideRequest) ToUseCaseInput(requestID, approver string) usecase.DecideInput {
	return usecase.DecideInput{
		RequestID:   requestID,
		Approver:    approver,
		Action:      domain.ApprovalAction(r.Action),
		Comment:     r.Comment,
		DelegatedTo: r.DelegatedTo,
	}
}

// ApprovalLevelResponse represents one level of an approval chain.
type ApprovalLevelResponse struct {
	ID                  string   `json:"id"`
	Ordinal             int      `json:"ordinal"`
	Name                string   `json:"name"`
	Selector            string   `json:"selector"`
	SelectorValue       string   `json:"selector_value,omitempty"`
	ApproverIDs         []string `json:"approver_ids,omitempty"`
	MinApprovers        int      `json:"min_approvers"`
	SkipIfApprovedAbove bool     `json:"skip_if_approved_above"`
	DueHours            int      `json:"due_hours,omitempty"`
	EscalationTo        string   `json:"escalation_to,omitempty"`
}

// ApprovalWorkflowResponse represents an approval workflow.
type ApprovalWorkflowResponse struct {
	ID               string                  `json:"id"`
	Code             string                  `json:"code"`
	Name             string                  `json:"name"`
	Description      string                  `json:"description,omitempty"`
	DocumentKind     string                  `json:"document_kind"`
	Policy           string                  `json:"policy"`
	MinAmount        *int64                  `json:"min_amount,omitempty"`
	MaxAmount        *int64                  `json:"max_amount,omitempty"`
	AutoApproveBelow *int64                  `json:"auto_approve_below,omitempty"`
	AllowDelegation  bool                    `json:"allow_delegation"`
	RequireComments  bool                    `json:"require_comments"`
	Status           string                  `json:"status"`
	Levels           []ApprovalLevelResponse `json:"levels"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// ApprovalWorkflowFromDomain converts a domain workflow to a response.
func ApprovalWorkflowFromDomain(wf *domain.ApprovalWorkflow) ApprovalWorkflowResponse {
	levels := make([]ApprovalLevelResponse, len(wf.Levels))
	for i, l := range wf.Levels {
		levels[i] = ApprovalLevelResponse{
			ID:                  l.ID,
			Ordinal:             l.Ordinal,
			Name:                l.Name,
			Selector:            string(l.Selector),
			SelectorValue:       l.SelectorValue,
			ApproverIDs:         l.ApproverIDs,
			MinApprovers:        l.MinApprovers,
			SkipIfApprovedAbove: l.SkipIfApprovedAbove,
			DueHours:            l.DueHours,
			EscalationTo:        l.EscalationTo,
		}
	}
	return ApprovalWorkflowResponse{
		ID:               wf.ID,
		Code:             wf.Code,
		Name:             wf.Name,
		Description:      wf.Description,
		DocumentKind:     wf.DocumentKind,
		Policy:           string(wf.Policy),
		MinAmount:        wf.MinAmount,
		MaxAmount:        wf.MaxAmount,
		AutoApproveBelow: wf.AutoApproveBelow,
		AllowDelegation:  wf.AllowDelegation,
		RequireComments:  wf.RequireComments,
		Status:           string(wf.Status),
		Levels:           levels,
		CreatedAt:        wf.CreatedAt,
		UpdatedAt:        wf.UpdatedAt,
	}
}

// ApprovalRecordResponse represents one recorded decision.
type ApprovalRecordResponse struct {
	ID          string    `json:"id"`
	Level       int       `json:"level"`
	ApproverID  string    `json:"approver_id"`
	Action      string    `json:"action"`
	Comment     string    `json:"comment,omitempty"`
	DelegatedTo string    `json:"delegated_to,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ApprovalRequestResponse represents an approval request.
type ApprovalRequestResponse struct {
	ID             string                   `json:"id"`
	Number         string                   `json:"number"`
	WorkflowID     string                   `json:"workflow_id"`
	DocumentKind   string                   `json:"document_kind"`
	DocumentID     string                   `json:"document_id"`
	DocumentNumber string                   `json:"document_number,omitempty"`
	RequestedBy    string                   `json:"requested_by"`
	Amount         int64                    `json:"amount"`
	Currency       string                   `json:"currency"`
	Status         string                   `json:"status"`
	CurrentLevel   int                      `json:"current_level"`
	DueDate        *time.Time               `json:"due_date,omitempty"`
	ApprovedAt     *time.Time               `json:"approved_at,omitempty"`
	ApprovedBy     string                   `json:"approved_by,omitempty"`
	RejectedAt     *time.Time               `json:"rejected_at,omitempty"`
	RejectedBy     string                   `json:"rejected_by,omitempty"`
	Records        []ApprovalRecordResponse `json:"records"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// ApprovalRequestFromDomain converts a domain request to a response.
func ApprovalRequestFromDomain(req *domain.ApprovalRequest) ApprovalRequestResponse {
	records := make([]ApprovalRecordResponse, len(req.Records))
	for i, rec := range req.Records {
		records[i] = ApprovalRecordResponse{
			ID:          rec.ID,
			Level:       rec.Level,
			ApproverID:  rec.ApproverID,
			Action:      string(rec.Action),
			Comment:     rec.Comment,
			DelegatedTo: rec.DelegatedTo,
			CreatedAt:   rec.CreatedAt,
		}
	}
	return ApprovalRequestResponse{
		ID:             req.ID,
		Number:         req.Number,
		WorkflowID:     req.WorkflowID,
		DocumentKind:   req.DocumentKind,
		DocumentID:     req.DocumentID,
		DocumentNumber: req.DocumentNumber,
		RequestedBy:    req.RequestedBy,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         string(req.Status),
		CurrentLevel:   req.CurrentLevel,
		DueDate:        req.DueDate,
		ApprovedAt:     req.ApprovedAt,
		ApprovedBy:     req.ApprovedBy,
		RejectedAt:     req.RejectedAt,
		RejectedBy:     req.RejectedBy,
		Records:        records,
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
	}
}

// DocumentKindTallyResponse is one document-kind slice of a pending summary.
type DocumentKindTallyResponse struct {
	DocumentKind string       `json:"document_kind"`
	Count        int64        `json:"count"`
	TotalAmount  domain.Money `json:"total_amount"`
}

// PendingSummaryResponse is an approver's pending workload.
type PendingSummaryResponse struct {
	ApproverID     string                      `json:"approver_id"`
	PendingCount   int64                       `json:"pending_count"`
	TotalAmount    domain.Money                `json:"total_amount"`
	OverdueCount   int64                       `json:"overdue_count"`
	ByDocumentKind []DocumentKindTallyResponse `json:"by_document_kind"`
}

// PendingSummaryFromDomain converts a domain pending summary to a response.
func PendingSummaryFromDomain(s *domain.PendingSummary) PendingSummaryResponse {
	byKind := make([]DocumentKindTallyResponse, len(s.ByDocumentKind))
	for i, tally := range s.ByDocumentKind {
		byKind[i] = DocumentKindTallyResponse{
			DocumentKind: tally.DocumentKind,
			Count:        tally.Count,
			TotalAmount:  tally.TotalAmount,
		}
	}
	return PendingSummaryResponse{
		ApproverID:     s.ApproverID,
		PendingCount:   s.PendingCount,
		TotalAmount:    s.TotalAmount,
		OverdueCount:   s.OverdueCount,
		ByDocumentKind: byKind,
	}
}
