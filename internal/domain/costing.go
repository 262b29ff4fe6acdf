package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostingMethod decides how unit cost is derived from cost layers.
type CostingMethod string

const (
	CostFIFO          CostingMethod = "FIFO"
	CostLIFO          CostingMethod = "LIFO"
	CostWAvg          CostingMethod = "WAvg"
	CostStandard      CostingMethod = "Standard"
	CostMovingAverage CostingMethod = "MovingAverage"
)

// ParseCostingMethod parses a textual costing method.
func ParseCostingMethod(s string) (CostingMethod, error) {
	switch CostingMethod(s) {
	case CostFIFO, CostLIFO, CostWAvg, CostStandard, CostMovingAverage:
		return CostingMethod(s), nil
	default:
		return "", Validation("invalid_costing_method", "invalid costing method: %q", s)
	}
}

// ProductValuation is the per (product, warehouse) cost position.
// Quantities and unit costs are decimals; total value is minor units.
type ProductValuation struct {
	ID              string
	ProductID       string
	WarehouseID     string
	Method          CostingMethod
	Currency        string
	StandardCost    decimal.Decimal
	CurrentUnitCost decimal.Decimal
	TotalQuantity   decimal.Decimal
	TotalValue      Money
	LastReceiptCost decimal.Decimal
	LastReceiptAt   *time.Time
	LastIssueCost   decimal.Decimal
	LastIssueAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Recompute derives current unit cost from totals per method.
func (v *ProductValuation) Recompute() {
	switch v.Method {
	case CostWAvg, CostMovingAverage:
		if v.TotalQuantity.IsPositive() {
			v.CurrentUnitCost = MinorUnitsToDecimal(v.TotalValue).Div(v.TotalQuantity)
		}
	case CostFIFO, CostLIFO:
		if !v.LastReceiptCost.IsZero() {
			v.CurrentUnitCost = v.LastReceiptCost
		}
	case CostStandard:
		v.CurrentUnitCost = v.StandardCost
	}
}

// InventoryCostLayer is one receipt's remaining stock at its cost.
type InventoryCostLayer struct {
	ID           string
	ValuationID  string
	ProductID    string
	WarehouseID  string
	Quantity     decimal.Decimal
	RemainingQty decimal.Decimal
	UnitCost     decimal.Decimal
	TotalValue   Money
	LayerDate    time.Time
	SourceRef    string
	CreatedAt    time.Time
}

// Exhausted reports whether the layer has no stock left.
func (l *InventoryCostLayer) Exhausted() bool {
	return !l.RemainingQty.IsPositive()
}

// LayerConsumption is one layer's contribution to an issue.
type LayerConsumption struct {
	LayerID  string
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
	Value    Money
}

// AdjustmentStatus gates cost adjustments through posting.
type AdjustmentStatus string

const (
	AdjustmentDraft  AdjustmentStatus = "Draft"
	AdjustmentPosted AdjustmentStatus = "Posted"
	AdjustmentVoid   AdjustmentStatus = "Void"
)

// CostAdjustmentLine revalues one (product, warehouse) tuple.
type CostAdjustmentLine struct {
	ID           string
	AdjustmentID string
	ProductID    string
	WarehouseID  string
	OldUnitCost  decimal.Decimal
	NewUnitCost  decimal.Decimal
	Quantity     decimal.Decimal
	DeltaValue   Money
}

// CostAdjustment revalues stock and posts the delta to the ledger.
type CostAdjustment struct {
	ID             string
	Number         string
	Description    string
	Status         AdjustmentStatus
	Currency       string
	Lines          []CostAdjustmentLine
	JournalEntryID string
	PostedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CreatedBy      string
}

// Validate checks adjustment shape.
func (a *CostAdjustment) Validate() error {
	if len(a.Lines) == 0 {
		return Validation("adjustment_lines_required", "adjustment requires at least one line")
	}
	if err := ValidateCurrency(a.Currency); err != nil {
		return err
	}
	for _, l := range a.Lines {
		if l.ProductID == "" || l.WarehouseID == "" {
			return Validation("adjustment_line_ref_required", "adjustment line requires product and warehouse")
		}
		if l.NewUnitCost.IsNegative() {
			return Validation("adjustment_cost_negative", "new unit cost must not be negative")
		}
	}
	return nil
}

// TotalDelta is the signed sum of line value deltas.
func (a *CostAdjustment) TotalDelta() Money {
	var total Money
	for _, l := range a.Lines {
		total += l.DeltaValue
	}
	return total
}
