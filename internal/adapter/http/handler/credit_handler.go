package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quorvia/erpcore/internal/adapter/http/dto"
	"github.com/quorvia/erpcore/internal/usecase"
)

// CreditHandler handles customer credit endpoints.
type CreditHandler struct {
	creditUC *usecase.CreditUseCase
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(creditUC *usecase.CreditUseCase) *CreditHandler {
	return &CreditHandler{creditUC: creditUC}
}

// CreateProfile opens a credit profile for a customer.
func (h *CreditHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := h.creditUC.CreateProfile(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ProfileFromDomain(profile))
}

// GetProfile returns a profile by customer ID.
func (h *CreditHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.creditUC.GetProfile(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileFromDomain(profile))
}

// ApplyTransaction moves a customer's credit exposure.
func (h *CreditHandler) ApplyTransaction(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := h.creditUC.ApplyTransaction(r.Context(), req.ToUseCaseInput(requestActor(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileFromDomain(profile))
}

// ListTransactions lists a customer's credit ledger.
func (h *CreditHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	profile, err := h.creditUC.GetProfile(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.creditUC.ListTransactions(r.Context(), profile.ID, parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.CreditTransactionFromDomain))
}

// UpdateLimit revises a customer's credit limit.
func (h *CreditHandler) UpdateLimit(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateLimitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := h.creditUC.UpdateCreditLimit(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "customerID"), requestActor(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileFromDomain(profile))
}

// PlaceManualHold blocks a customer by hand.
func (h *CreditHandler) PlaceManualHold(w http.ResponseWriter, r *http.Request) {
	var req dto.ManualHoldRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hold, err := h.creditUC.PlaceManualHold(r.Context(), chi.URLParam(r, "customerID"), req.Reason, requestActor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.HoldFromDomain(hold))
}

// ListLimitChanges lists a customer's limit revision history.
func (h *CreditHandler) ListLimitChanges(w http.ResponseWriter, r *http.Request) {
	profile, err := h.creditUC.GetProfile(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.creditUC.ListLimitChanges(r.Context(), profile.ID, parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.CreditLimitChangeFromDomain))
}

// ListOnHold lists customers with an active credit hold.
func (h *CreditHandler) ListOnHold(w http.ResponseWriter, r *http.Request) {
	res, err := h.creditUC.ListOnHold(r.Context(), parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.ProfileFromDomain))
}

// ListHighRisk lists High and Critical risk customers.
func (h *CreditHandler) ListHighRisk(w http.ResponseWriter, r *http.Request) {
	res, err := h.creditUC.ListHighRisk(r.Context(), parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.ProfileFromDomain))
}

// Summary aggregates exposure across the credit book.
func (h *CreditHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.creditUC.Summary(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CreditSummaryFromDomain(summary))
}

// AcknowledgeAlert marks a credit alert as read.
func (h *CreditHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.creditUC.AcknowledgeAlert(r.Context(), chi.URLParam(r, "id"), requestActor(r)); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EvaluateHold re-evaluates the auto-hold rules for a customer.
func (h *CreditHandler) EvaluateHold(w http.ResponseWriter, r *http.Request) {
	profile, err := h.creditUC.EvaluateHold(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileFromDomain(profile))
}

// ReleaseHold releases an active credit hold.
func (h *CreditHandler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	var req dto.ReleaseHoldRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hold, err := h.creditUC.ReleaseHold(r.Context(), chi.URLParam(r, "id"), requestActor(r), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.HoldFromDomain(hold))
}

// RefreshRisk feeds fresh exposure figures into risk scoring.
func (h *CreditHandler) RefreshRisk(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRiskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := h.creditUC.RefreshRisk(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "customerID")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileFromDomain(profile))
}
