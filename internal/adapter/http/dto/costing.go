package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// CreateValuationRequest represents a request to open a product valuation.
type CreateValuationRequest struct {
	ProductID    string          `json:"product_id"`
	WarehouseID  string          `json:"warehouse_id"`
	Method       string          `json:"method"`
	Currency     string          `json:"currency"`
	StandardCost decimal.Decimal `json:"standard_cost,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateValuationRequest) ToUseCaseInput() usecase.CreateValuationInput {
	return usecase.CreateValuationInput{
		ProductID:    r.ProductID,
		WarehouseID:  r.WarehouseID,
		Method:       r.Method,
		Currency:     r.Currency,
		StandardCost: r.StandardCost,
	}
}

// ReceiptRequest records a stock receipt at cost.
type ReceiptRequest struct {
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	SourceRef   string          `json:"source_ref,omitempty"`
	Date        time.Time       `json:"date"`
}

// ToUseCaseInput converts to use case input.
func (r *ReceiptRequest) ToUseCaseInput() usecase.ReceiptInput {
	return usecase.ReceiptInput{
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		SourceRef:   r.SourceRef,
		Date:        r.Date,
	}
}

// IssueRequest records a stock issue.
type IssueRequest struct {
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	SourceRef   string          `json:"source_ref,omitempty"`
	Date        time.Time       `json:"date"`
}

// ToUseCaseInput converts to use case input.
func (r *IssueRequest) ToUseCaseInput() usecase.IssueInput {
	return usecase.IssueInput{
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		Quantity:    r.Quantity,
		SourceRef:   r.SourceRef,
		Date:        r.Date,
	}
}

// AdjustmentLineRequest revalues one product/warehouse pair.
type AdjustmentLineRequest struct {
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	NewUnitCost decimal.Decimal `json:"new_unit_cost"`
}

// CreateAdjustmentRequest represents a request to create a cost adjustment.
type CreateAdjustmentRequest struct {
	Description string                  `json:"description,omitempty"`
	Currency    string                  `json:"currency"`
	Lines       []AdjustmentLineRequest `json:"lines"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAdjustmentRequest) ToUseCaseInput(actor usecase.Actor) usecase.CreateAdjustmentInput {
	lines := make([]usecase.AdjustmentLineInput, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = usecase.AdjustmentLineInput{
			ProductID:   l.ProductID,
			WarehouseID: l.WarehouseID,
			NewUnitCost: l.NewUnitCost,
		}
	}
	return usecase.CreateAdjustmentInput{
		Description: r.Description,
		Currency:    r.Currency,
		Lines:       lines,
		Actor:       actor,
	}
}

// PostAdjustmentRequest posts an adjustment to the ledger on a date.
type PostAdjustmentRequest struct {
	Date time.Time `json:"date"`
}

// ValuationResponse represents a product valuation.
type ValuationResponse struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id"`
	WarehouseID     string          `json:"warehouse_id"`
	Method          string          `json:"method"`
	Currency        string          `json:"currency"`
	StandardCost    decimal.Decimal `json:"standard_cost"`
	CurrentUnitCost decimal.Decimal `json:"current_unit_cost"`
	TotalQuantity   decimal.Decimal `json:"total_quantity"`
	TotalValue      int64           `json:"total_value"`
	LastReceiptCost decimal.Decimal `json:"last_receipt_cost"`
	LastReceiptAt   *time.Time      `json:"last_receipt_at,omitempty"`
	LastIssueCost   decimal.Decimal `json:"last_issue_cost"`
	LastIssueAt     *time.Time      `json:"last_issue_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ValuationFromDomain converts a domain valuation to a response.
func ValuationFromDomain(v *domain.ProductValuation) ValuationResponse {
	return ValuationResponse{
		ID:              v.ID,
		ProductID:       v.ProductID,
		WarehouseID:     v.WarehouseID,
		Method:          string(v.Method),
		Currency:        v.Currency,
		StandardCost:    v.StandardCost,
		CurrentUnitCost: v.CurrentUnitCost,
		TotalQuantity:   v.TotalQuantity,
		TotalValue:      v.TotalValue,
		LastReceiptCost: v.LastReceiptCost,
		LastReceiptAt:   v.LastReceiptAt,
		LastIssueCost:   v.LastIssueCost,
		LastIssueAt:     v.LastIssueAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

// LayerResponse represents an inventory cost layer.
type LayerResponse struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	WarehouseID  string          `json:"warehouse_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	RemainingQty decimal.Decimal `json:"remaining_qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	TotalValue   int64           `json:"total_value"`
	LayerDate    time.Time       `json:"layer_date"`
	SourceRef    string          `json:"source_ref,omitempty"`
}

// LayerFromDomain converts a domain cost layer to a response.
func LayerFromDomain(l *domain.InventoryCostLayer) LayerResponse {
	return LayerResponse{
		ID:           l.ID,
		ProductID:    l.ProductID,
		WarehouseID:  l.WarehouseID,
		Quantity:     l.Quantity,
		RemainingQty: l.RemainingQty,
		UnitCost:     l.UnitCost,
		TotalValue:   l.TotalValue,
		LayerDate:    l.LayerDate,
		SourceRef:    l.SourceRef,
	}
}

// ConsumptionResponse is one layer drawn down by an issue.
type ConsumptionResponse struct {
	LayerID  string          `json:"layer_id"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Value    int64           `json:"value"`
}

// IssueResponse represents the costed outcome of a stock issue.
type IssueResponse struct {
	Cost        int64                 `json:"cost"`
	UnitCost    decimal.Decimal       `json:"unit_cost"`
	Consumption []ConsumptionResponse `json:"consumption"`
}

// IssueFromUseCase converts an issue result to a response.
func IssueFromUseCase(res *usecase.IssueResult) IssueResponse {
	consumption := make([]ConsumptionResponse, len(res.Consumption))
	for i, c := range res.Consumption {
		consumption[i] = ConsumptionResponse{
			LayerID:  c.LayerID,
			Quantity: c.Quantity,
			UnitCost: c.UnitCost,
			Value:    c.Value,
		}
	}
	return IssueResponse{
		Cost:        res.Cost,
		UnitCost:    res.UnitCost,
		Consumption: consumption,
	}
}

// AdjustmentLineResponse is one revalued line of an adjustment.
type AdjustmentLineResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	OldUnitCost decimal.Decimal `json:"old_unit_cost"`
	NewUnitCost decimal.Decimal `json:"new_unit_cost"`
	Quantity    decimal.Decimal `json:"quantity"`
	DeltaValue  int64           `json:"delta_value"`
}

// AdjustmentResponse represents a cost adjustment.
type AdjustmentResponse struct {
	ID             string                   `json:"id"`
	Number         string                   `json:"number"`
	Description    string                   `json:"description,omitempty"`
	Status         string                   `json:"status"`
	Currency       string                   `json:"currency"`
	Lines          []AdjustmentLineResponse `json:"lines"`
	JournalEntryID string                   `json:"journal_entry_id,omitempty"`
	PostedAt       *time.Time               `json:"posted_at,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
}

// AdjustmentFromDomain converts a domain adjustment to a response.
func AdjustmentFromDomain(adj *domain.CostAdjustment) AdjustmentResponse {
	lines := make([]AdjustmentLineResponse, len(adj.Lines))
	for i, l := range adj.Lines {
		lines[i] = AdjustmentLineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			WarehouseID: l.WarehouseID,
			OldUnitCost: l.OldUnitCost,
			NewUnitCost: l.NewUnitCost,
			Quantity:    l.Quantity,
			DeltaValue:  l.DeltaValue,
		}
	}
	return AdjustmentResponse{
		ID:             adj.ID,
		Number:         adj.Number,
		Description:    adj.Description,
		Status:         string(adj.Status),
		Currency:       adj.Currency,
		Lines:          lines,
		JournalEntryID: adj.JournalEntryID,
		PostedAt:       adj.PostedAt,
		CreatedAt:      adj.CreatedAt,
	}
}
