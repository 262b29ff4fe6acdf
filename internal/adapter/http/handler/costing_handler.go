package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quorvia/erpcore/internal/adapter/http/dto"
	"github.com/quorvia/erpcore/internal/usecase"
)

// CostingHandler handles inventory valuation and cost adjustment endpoints.
type CostingHandler struct {
	costingUC *usecase.CostingUseCase
}

// NewCostingHandler creates a new CostingHandler.
func NewCostingHandler(costingUC *usecase.CostingUseCase) *CostingHandler {
	return &CostingHandler{costingUC: costingUC}
}

// CreateValuation opens a valuation for a product/warehouse pair.
func (h *CostingHandler) CreateValuation(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateValuationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	val, err := h.costingUC.CreateValuation(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ValuationFromDomain(val))
}

// GetValuation returns a valuation by product and warehouse.
func (h *CostingHandler) GetValuation(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	warehouseID := r.URL.Query().Get("warehouse_id")
	if productID == "" || warehouseID == "" {
		writeError(w, http.StatusBadRequest, "missing_key", "product_id and warehouse_id are required")
		return
	}

	val, err := h.costingUC.GetValuation(r.Context(), productID, warehouseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ValuationFromDomain(val))
}

// ListValuations lists valuations.
func (h *CostingHandler) ListValuations(w http.ResponseWriter, r *http.Request) {
	res, err := h.costingUC.ListValuations(r.Context(), parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.ValuationFromDomain))
}

// RecordReceipt records a stock receipt at cost.
func (h *CostingHandler) RecordReceipt(w http.ResponseWriter, r *http.Request) {
	var req dto.ReceiptRequest
	if !decodeBody(w, r, &req) {
		return
	}

	layer, err := h.costingUC.RecordReceipt(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.LayerFromDomain(layer))
}

// RecordIssue records a stock issue and returns its costed outcome.
func (h *CostingHandler) RecordIssue(w http.ResponseWriter, r *http.Request) {
	var req dto.IssueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.costingUC.RecordIssue(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.IssueFromUseCase(res))
}

// CreateAdjustment drafts a cost adjustment.
func (h *CostingHandler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAdjustmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	adj, err := h.costingUC.CreateAdjustment(r.Context(), req.ToUseCaseInput(requestActor(r)))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AdjustmentFromDomain(adj))
}

// PostAdjustment posts a drafted adjustment to the ledger.
func (h *CostingHandler) PostAdjustment(w http.ResponseWriter, r *http.Request) {
	var req dto.PostAdjustmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	adj, err := h.costingUC.PostAdjustment(r.Context(), chi.URLParam(r, "id"), req.Date, requestActor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AdjustmentFromDomain(adj))
}
