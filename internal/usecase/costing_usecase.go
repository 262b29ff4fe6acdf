package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quorvia/erpcore/internal/domain"
)

// LedgerPoster is the slice of the ledger engine the costing engine
// needs to post adjustment journals.
type LedgerPoster interface {
	CreateEntry(ctx context.Context, input CreateEntryInput) (*domain.JournalEntry, error)
	PostEntry(ctx context.Context, id string, actor Actor) (*domain.JournalEntry, error)
}

// CostingUseCase maintains per (product, warehouse) unit cost and value.
type CostingUseCase struct {
	txManager       TransactionManager
	valuationRepo   ValuationRepository
	layerRepo       LayerRepository
	adjustmentRepo  AdjustmentRepository
	outboxRepo      OutboxRepository
	ledger          LedgerPoster
	idGen           IDGenerator
	numGen          NumberGenerator
	clock           Clock
	inventoryAcct   string
	revaluationAcct string
}

// NewCostingUseCase creates a new CostingUseCase. inventoryAcct and
// revaluationAcct are the account IDs adjustment journals post against.
func NewCostingUseCase(
	txManager TransactionManager,
	valuationRepo ValuationRepository,
	layerRepo LayerRepository,
	adjustmentRepo AdjustmentRepository,
	outboxRepo OutboxRepository,
	ledger LedgerPoster,
	idGen IDGenerator,
	numGen NumberGenerator,
	clock Clock,
	inventoryAcct, revaluationAcct string,
) *CostingUseCase {
	return &CostingUseCase{
		txManager:       txManager,
		valuationRepo:   valuationRepo,
		layerRepo:       layerRepo,
		adjustmentRepo:  adjustmentRepo,
		outboxRepo:      outboxRepo,
		ledger:          ledger,
		idGen:           idGen,
		numGen:          numGen,
		clock:           clock,
		inventoryAcct:   inventoryAcct,
		revaluationAcct: revaluationAcct,
	}
}

// CreateValuationInput represents input for declaring a valuation.
type CreateValuationInput struct {
	ProductID    string
	WarehouseID  string
	Method       string
	Currency     string
	StandardCost decimal.Decimal
}

// CreateValuation declares the costing method for a (product, warehouse).
func (uc *CostingUseCase) CreateValuation(ctx context.Context, input CreateValuationInput) (*domain.ProductValuation, error) {
	method, err := domain.ParseCostingMethod(input.Method)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	v := &domain.ProductValuation{
		ID:              uc.idGen.Generate(),
		ProductID:       input.ProductID,
		WarehouseID:     input.WarehouseID,
		Method:          method,
		Currency:        input.Currency,
		StandardCost:    input.StandardCost,
		CurrentUnitCost: input.StandardCost,
		TotalQuantity:   decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.valuationRepo.Create(ctx, tx, v); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// ReceiptInput represents a stock receipt.
type ReceiptInput struct {
	ProductID   string
	WarehouseID string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	SourceRef   string
	Date        time.Time
}

// RecordReceipt creates a cost layer and rolls the valuation forward.
func (uc *CostingUseCase) RecordReceipt(ctx context.Context, input ReceiptInput) (*domain.InventoryCostLayer, error) {
	if !input.Quantity.IsPositive() {
		return nil, domain.ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() {
		return nil, domain.Validation("invalid_unit_cost", "unit cost must not be negative")
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	v, err := uc.valuationRepo.GetForUpdate(ctx, tx, input.ProductID, input.WarehouseID)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	value := domain.DecimalToMinorUnits(input.Quantity.Mul(input.UnitCost))
	layer := &domain.InventoryCostLayer{
		ID:           uc.idGen.Generate(),
		ValuationID:  v.ID,
		ProductID:    input.ProductID,
		WarehouseID:  input.WarehouseID,
		Quantity:     input.Quantity,
		RemainingQty: input.Quantity,
		UnitCost:     input.UnitCost,
		TotalValue:   value,
		LayerDate:    input.Date,
		SourceRef:    input.SourceRef,
		CreatedAt:    now,
	}
	if err := uc.layerRepo.Create(ctx, tx, layer); err != nil {
		return nil, err
	}

	v.TotalQuantity = v.TotalQuantity.Add(input.Quantity)
	v.TotalValue += value
	v.LastReceiptCost = input.UnitCost
	v.LastReceiptAt = &input.Date
	v.Recompute()
	v.UpdatedAt = now
	if err := uc.valuationRepo.Update(ctx, tx, v); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   v.ID,
		AggregateType: domain.AggregateValuation,
		EventType:     domain.EventInventoryReceipt,
		Payload: domain.StockMovementEvent{
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			Quantity:    input.Quantity.String(),
			UnitCost:    input.UnitCost.String(),
			Value:       value,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return layer, nil
}

// IssueInput represents a stock issue.
type IssueInput struct {
	ProductID   string
	WarehouseID string
	Quantity    decimal.Decimal
	SourceRef   string
	Date        time.Time
}

// IssueResult reports the cost of an issue and the layers it consumed.
type IssueResult struct {
	Cost        domain.Money
	UnitCost    decimal.Decimal
	Consumption []domain.LayerConsumption
}

// RecordIssue consumes layers per the valuation method and computes the
// issue's cost.
func (uc *CostingUseCase) RecordIssue(ctx context.Context, input IssueInput) (*IssueResult, error) {
	if !input.Quantity.IsPositive() {
		return nil, domain.ErrInvalidQuantity
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	v, err := uc.valuationRepo.GetForUpdate(ctx, tx, input.ProductID, input.WarehouseID)
	if err != nil {
		return nil, err
	}
	if v.TotalQuantity.LessThan(input.Quantity) {
		return nil, domain.ErrInsufficientStock
	}

	now := uc.clock.Now().UTC()
	result := &IssueResult{}

	switch v.Method {
	case domain.CostFIFO, domain.CostLIFO:
		asc := v.Method == domain.CostFIFO
		layers, err := uc.layerRepo.OpenLayers(ctx, tx, v.ID, asc)
		if err != nil {
			return nil, err
		}
		remaining := input.Quantity
		for _, layer := range layers {
			if !remaining.IsPositive() {
				break
			}
			take := decimal.Min(remaining, layer.RemainingQty)
			value := domain.DecimalToMinorUnits(take.Mul(layer.UnitCost))
			result.Consumption = append(result.Consumption, domain.LayerConsumption{
				LayerID:  layer.ID,
				Quantity: take,
				UnitCost: layer.UnitCost,
				Value:    value,
			})
			result.Cost += value
			left := layer.RemainingQty.Sub(take)
			if err := uc.layerRepo.UpdateRemaining(ctx, tx, layer.ID, left); err != nil {
				return nil, err
			}
			remaining = remaining.Sub(take)
		}
		if remaining.IsPositive() {
			return nil, domain.ErrInsufficientStock
		}
	default:
		// WAvg, MovingAverage and Standard issue at the current unit
		// cost; layer bookkeeping still burns oldest-first so the
		// remaining-quantity invariant holds.
		result.Cost = domain.DecimalToMinorUnits(input.Quantity.Mul(v.CurrentUnitCost))
		layers, err := uc.layerRepo.OpenLayers(ctx, tx, v.ID, true)
		if err != nil {
			return nil, err
		}
		remaining := input.Quantity
		for _, layer := range layers {
			if !remaining.IsPositive() {
				break
			}
			take := decimal.Min(remaining, layer.RemainingQty)
			left := layer.RemainingQty.Sub(take)
			if err := uc.layerRepo.UpdateRemaining(ctx, tx, layer.ID, left); err != nil {
				return nil, err
			}
			remaining = remaining.Sub(take)
		}
	}

	v.TotalQuantity = v.TotalQuantity.Sub(input.Quantity)
	v.TotalValue -= result.Cost
	if v.TotalValue < 0 && v.Method != domain.CostStandard {
		v.TotalValue = 0
	}
	if input.Quantity.IsPositive() {
		result.UnitCost = domain.MinorUnitsToDecimal(result.Cost).Div(input.Quantity)
	}
	v.LastIssueCost = result.UnitCost
	v.LastIssueAt = &input.Date
	v.Recompute()
	v.UpdatedAt = now
	if err := uc.valuationRepo.Update(ctx, tx, v); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   v.ID,
		AggregateType: domain.AggregateValuation,
		EventType:     domain.EventInventoryIssue,
		Payload: domain.StockMovementEvent{
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			Quantity:    input.Quantity.String(),
			UnitCost:    result.UnitCost.String(),
			Value:       result.Cost,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateAdjustmentInput represents a draft cost adjustment.
type CreateAdjustmentInput struct {
	Description string
	Currency    string
	Lines       []AdjustmentLineInput
	Actor       Actor
}

// AdjustmentLineInput revalues one (product, warehouse).
type AdjustmentLineInput struct {
	ProductID   string
	WarehouseID string
	NewUnitCost decimal.Decimal
}

// CreateAdjustment drafts a cost adjustment, computing each line's
// value delta from the current valuation.
func (uc *CostingUseCase) CreateAdjustment(ctx context.Context, input CreateAdjustmentInput) (*domain.CostAdjustment, error) {
	now := uc.clock.Now().UTC()
	adj := &domain.CostAdjustment{
		ID:          uc.idGen.Generate(),
		Description: input.Description,
		Currency:    input.Currency,
		Status:      domain.AdjustmentDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   input.Actor.ID,
	}
	for _, li := range input.Lines {
		v, err := uc.valuationRepo.Get(ctx, li.ProductID, li.WarehouseID)
		if err != nil {
			return nil, err
		}
		oldValue := v.TotalValue
		newValue := domain.DecimalToMinorUnits(v.TotalQuantity.Mul(li.NewUnitCost))
		adj.Lines = append(adj.Lines, domain.CostAdjustmentLine{
			ID:           uc.idGen.Generate(),
			AdjustmentID: adj.ID,
			ProductID:    li.ProductID,
			WarehouseID:  li.WarehouseID,
			OldUnitCost:  v.CurrentUnitCost,
			NewUnitCost:  li.NewUnitCost,
			Quantity:     v.TotalQuantity,
			DeltaValue:   newValue - oldValue,
		})
	}
	if err := adj.Validate(); err != nil {
		return nil, err
	}
	adj.Number = uc.numGen.Format(PrefixAdjustment, now.Year(), int64(now.UnixMilli()%1_000_000))
	if err := uc.adjustmentRepo.Create(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

// PostAdjustment posts the adjustment journal through the ledger and
// applies the new unit costs. The journal balances by construction:
// inventory takes each line's delta, revaluation takes the offset.
func (uc *CostingUseCase) PostAdjustment(ctx context.Context, adjustmentID string, date time.Time, actor Actor) (*domain.CostAdjustment, error) {
	adj, err := uc.adjustmentRepo.GetByID(ctx, adjustmentID)
	if err != nil {
		return nil, err
	}
	if adj.Status != domain.AdjustmentDraft {
		return nil, domain.ErrAdjustmentNotDraft
	}

	var lines []domain.JournalLine
	for _, li := range adj.Lines {
		if li.DeltaValue == 0 {
			continue
		}
		memo := "revaluation " + li.ProductID
		if li.DeltaValue > 0 {
			lines = append(lines,
				domain.JournalLine{AccountID: uc.inventoryAcct, Debit: li.DeltaValue, Memo: memo},
				domain.JournalLine{AccountID: uc.revaluationAcct, Credit: li.DeltaValue, Memo: memo},
			)
		} else {
			lines = append(lines,
				domain.JournalLine{AccountID: uc.revaluationAcct, Debit: -li.DeltaValue, Memo: memo},
				domain.JournalLine{AccountID: uc.inventoryAcct, Credit: -li.DeltaValue, Memo: memo},
			)
		}
	}
	if len(lines) == 0 {
		return nil, domain.BusinessRule("adjustment_no_delta", "adjustment changes no values")
	}

	entry, err := uc.ledger.CreateEntry(ctx, CreateEntryInput{
		Date:        date,
		Description: "cost adjustment " + adj.Number,
		Reference:   adj.Number,
		Currency:    adj.Currency,
		Lines:       lines,
		Actor:       actor,
	})
	if err != nil {
		return nil, err
	}
	if _, err := uc.ledger.PostEntry(ctx, entry.ID, actor); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := uc.clock.Now().UTC()
	for _, li := range adj.Lines {
		v, err := uc.valuationRepo.GetForUpdate(ctx, tx, li.ProductID, li.WarehouseID)
		if err != nil {
			return nil, err
		}
		v.CurrentUnitCost = li.NewUnitCost
		if v.Method == domain.CostStandard {
			v.StandardCost = li.NewUnitCost
		}
		v.TotalValue += li.DeltaValue
		v.UpdatedAt = now
		if err := uc.valuationRepo.Update(ctx, tx, v); err != nil {
			return nil, err
		}
	}

	if err := uc.adjustmentRepo.MarkPosted(ctx, tx, adj.ID, entry.ID, now); err != nil {
		return nil, err
	}
	adj.Status = domain.AdjustmentPosted
	adj.JournalEntryID = entry.ID
	adj.PostedAt = &now

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   adj.ID,
		AggregateType: domain.AggregateValuation,
		EventType:     domain.EventCostAdjusted,
		Payload: domain.CostAdjustedEvent{
			AdjustmentID:   adj.ID,
			JournalEntryID: entry.ID,
			TotalDelta:     adj.TotalDelta(),
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return adj, nil
}

// GetValuation fetches a valuation snapshot.
func (uc *CostingUseCase) GetValuation(ctx context.Context, productID, warehouseID string) (*domain.ProductValuation, error) {
	return uc.valuationRepo.Get(ctx, productID, warehouseID)
}

// ListValuations pages through valuations.
func (uc *CostingUseCase) ListValuations(ctx context.Context, page domain.Page) (domain.PageResult[*domain.ProductValuation], error) {
	page = page.Normalize()
	items, total, err := uc.valuationRepo.List(ctx, page)
	if err != nil {
		return domain.PageResult[*domain.ProductValuation]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}
