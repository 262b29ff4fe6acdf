package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quorvia/erpcore/internal/adapter/http/dto"
	"github.com/quorvia/erpcore/internal/usecase"
)

// ApprovalHandler handles approval workflow and request endpoints.
type ApprovalHandler struct {
	approvalUC *usecase.ApprovalUseCase
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(approvalUC *usecase.ApprovalUseCase) *ApprovalHandler {
	return &ApprovalHandler{approvalUC: approvalUC}
}

// CreateWorkflow creates an approval workflow.
func (h *ApprovalHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateApprovalWorkflowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	wf, err := h.approvalUC.CreateWorkflow(r.Context(), req.ToDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ApprovalWorkflowFromDomain(wf))
}

// GetWorkflow returns one workflow by ID.
func (h *ApprovalHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.approvalUC.GetWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ApprovalWorkflowFromDomain(wf))
}

// ListWorkflows lists approval workflows.
func (h *ApprovalHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	res, err := h.approvalUC.ListWorkflows(r.Context(), parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.ApprovalWorkflowFromDomain))
}

// StartRequest routes a document into approval.
func (h *ApprovalHandler) StartRequest(w http.ResponseWriter, r *http.Request) {
	var req dto.StartRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	request, err := h.approvalUC.StartRequest(r.Context(), req.ToUseCaseInput(requestActor(r).ID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ApprovalRequestFromDomain(request))
}

// GetRequest returns one approval request by ID.
func (h *ApprovalHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	request, err := h.approvalUC.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ApprovalRequestFromDomain(request))
}

// ListRequests lists approval requests.
func (h *ApprovalHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	res, err := h.approvalUC.ListRequests(r.Context(), parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.ApprovalRequestFromDomain))
}

// PendingRequests lists the caller's pending approval queue.
func (h *ApprovalHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	res, err := h.approvalUC.PendingForApprover(r.Context(), requestActor(r).ID, parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.ApprovalRequestFromDomain))
}

// PendingSummary returns the caller's pending workload totals.
func (h *ApprovalHandler) PendingSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.approvalUC.PendingSummary(r.Context(), requestActor(r).ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PendingSummaryFromDomain(summary))
}

// Decide records an approve, reject or delegate decision.
func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req dto.DecideRequest
	if !decodeBody(w, r, &req) {
		return
	}

	request, err := h.approvalUC.Decide(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id"), requestActor(r).ID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ApprovalRequestFromDomain(request))
}

// CancelRequest cancels a pending request.
func (h *ApprovalHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	request, err := h.approvalUC.Cancel(r.Context(), chi.URLParam(r, "id"), requestActor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ApprovalRequestFromDomain(request))
}

// EscalateOverdue escalates every overdue pending request.
func (h *ApprovalHandler) EscalateOverdue(w http.ResponseWriter, r *http.Request) {
	count, err := h.approvalUC.EscalateOverdue(r.Context(), time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"escalated": count})
}
