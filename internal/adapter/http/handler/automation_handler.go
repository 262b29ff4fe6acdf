package handler

import (
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quorvia/erpcore/internal/adapter/http/dto"
	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

const (
	// WebhookSignatureHeader carries the HMAC-SHA256 hex digest of the body.
	WebhookSignatureHeader = "X-Signature"
	// WebhookRequestIDHeader carries the caller's delivery ID for dedup.
	WebhookRequestIDHeader = "X-Request-ID"
)

// AutomationHandler handles automation workflow, execution, job and
// webhook endpoints.
type AutomationHandler struct {
	automationUC *usecase.AutomationUseCase
}

// NewAutomationHandler creates a new AutomationHandler.
func NewAutomationHandler(automationUC *usecase.AutomationUseCase) *AutomationHandler {
	return &AutomationHandler{automationUC: automationUC}
}

// CreateWorkflow creates an automation workflow.
func (h *AutomationHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAutomationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	wf, err := h.automationUC.CreateWorkflow(r.Context(), req.ToUseCaseInput(requestActor(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AutomationFromDomain(wf))
}

// GetWorkflow returns one workflow by ID.
func (h *AutomationHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.automationUC.GetWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AutomationFromDomain(wf))
}

// SetWorkflowStatus activates, pauses or archives a workflow.
func (h *AutomationHandler) SetWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.SetAutomationStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	wf, err := h.automationUC.SetWorkflowStatus(r.Context(), chi.URLParam(r, "id"), domain.AutomationStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AutomationFromDomain(wf))
}

// Trigger enqueues an execution of a workflow.
func (h *AutomationHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req dto.TriggerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	exec, err := h.automationUC.Trigger(r.Context(), req.ToUseCaseInput(requestActor(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, dto.ExecutionFromDomain(exec))
}

// GetExecution returns one execution by ID.
func (h *AutomationHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.automationUC.GetExecution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ExecutionFromDomain(exec))
}

// ListExecutions lists executions of a workflow.
func (h *AutomationHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	res, err := h.automationUC.ListExecutions(r.Context(), chi.URLParam(r, "id"), parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.ExecutionFromDomain))
}

// Resume resumes a waiting execution with its resume token.
func (h *AutomationHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req dto.ResumeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	exec, err := h.automationUC.Resume(r.Context(), chi.URLParam(r, "id"), req.Token, req.Signal)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ExecutionFromDomain(exec))
}

// CancelExecution requests cancellation of an execution.
func (h *AutomationHandler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.automationUC.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ExecutionFromDomain(exec))
}

// CreateJob schedules a cron-driven workflow run.
func (h *AutomationHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateJobRequest
	if !decodeBody(w, r, &req) {
		return
	}

	job, err := h.automationUC.CreateJob(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.JobFromDomain(job))
}

// ReceiveWebhook accepts an inbound webhook delivery and enqueues the
// bound workflow.
func (h *AutomationHandler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_body", err.Error())
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	sourceIP := r.RemoteAddr
	if host, _, splitErr := net.SplitHostPort(sourceIP); splitErr == nil {
		sourceIP = host
	}

	// Senders that omit a delivery ID get a synthetic one, so the
	// request is still recorded but never deduplicated.
	requestID := r.Header.Get(WebhookRequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	exec, err := h.automationUC.HandleWebhook(r.Context(), usecase.WebhookInput{
		Path:      r.URL.Path,
		Method:    r.Method,
		Headers:   headers,
		Body:      body,
		SourceIP:  sourceIP,
		RequestID: requestID,
		Signature: r.Header.Get(WebhookSignatureHeader),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, dto.WebhookAccepted{
		ExecutionID: exec.ID,
		Status:      string(exec.Status),
	})
}
