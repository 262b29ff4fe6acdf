package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// ValuationRepository implements usecase.ValuationRepository.
type ValuationRepository struct {
	pool *pgxpool.Pool
}

// NewValuationRepository creates a new ValuationRepository.
func NewValuationRepository(pool *pgxpool.Pool) *ValuationRepository {
	return &ValuationRepository{pool: pool}
}

const valuationColumns = `id, product_id, warehouse_id, method, currency, standard_cost, current_unit_cost, total_quantity, total_value, last_receipt_cost, last_receipt_at, last_issue_cost, last_issue_at, created_at, updated_at`

// Create persists a valuation inside the caller's transaction.
func (r *ValuationRepository) Create(ctx context.Context, tx usecase.Transaction, v *domain.ProductValuation) error {
	_, err := txq(tx).Exec(ctx, `
		INSERT INTO product_valuations (`+valuationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		v.ID, v.ProductID, v.WarehouseID, string(v.Method), v.Currency,
		decimalToNumeric(v.StandardCost), decimalToNumeric(v.CurrentUnitCost),
		decimalToNumeric(v.TotalQuantity), int64(v.TotalValue),
		decimalToNumeric(v.LastReceiptCost), tszPtr(v.LastReceiptAt),
		decimalToNumeric(v.LastIssueCost), tszPtr(v.LastIssueAt),
		tsz(v.CreatedAt), tsz(v.UpdatedAt),
	)
	return err
}

// Get retrieves the valuation for a product at a warehouse.
func (r *ValuationRepository) Get(ctx context.Context, productID, warehouseID string) (*domain.ProductValuation, error) {
	return r.getValuation(ctx, r.pool, "", productID, warehouseID)
}

// GetForUpdate locks a valuation row so stock movements serialize.
func (r *ValuationRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, productID, warehouseID string) (*domain.ProductValuation, error) {
	return r.getValuation(ctx, txq(tx), " FOR UPDATE", productID, warehouseID)
}

func (r *ValuationRepository) getValuation(ctx context.Context, q querier, suffix, productID, warehouseID string) (*domain.ProductValuation, error) {
	v, err := scanValuation(q.QueryRow(ctx, `
		SELECT `+valuationColumns+` FROM product_valuations
		WHERE product_id = $1 AND warehouse_id = $2`+suffix,
		productID, warehouseID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrValuationNotFound
		}
		return nil, err
	}
	return v, nil
}

// Update rewrites a valuation's running figures.
func (r *ValuationRepository) Update(ctx context.Context, tx usecase.Transaction, v *domain.ProductValuation) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE product_valuations
		SET standard_cost = $2, current_unit_cost = $3, total_quantity = $4,
		    total_value = $5, last_receipt_cost = $6, last_receipt_at = $7,
		    last_issue_cost = $8, last_issue_at = $9, updated_at = $10
		WHERE id = $1`,
		v.ID, decimalToNumeric(v.StandardCost), decimalToNumeric(v.CurrentUnitCost),
		decimalToNumeric(v.TotalQuantity), int64(v.TotalValue),
		decimalToNumeric(v.LastReceiptCost), tszPtr(v.LastReceiptAt),
		decimalToNumeric(v.LastIssueCost), tszPtr(v.LastIssueAt), tsz(v.UpdatedAt),
	)
	return err
}

// List lists valuations with pagination.
func (r *ValuationRepository) List(ctx context.Context, page domain.Page) ([]*domain.ProductValuation, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM product_valuations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+valuationColumns+` FROM product_valuations
		ORDER BY product_id, warehouse_id
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	valuations := make([]*domain.ProductValuation, 0, page.PerPage)
	for rows.Next() {
		v, err := scanValuation(rows)
		if err != nil {
			return nil, 0, err
		}
		valuations = append(valuations, v)
	}
	return valuations, total, rows.Err()
}

func scanValuation(row pgx.Row) (*domain.ProductValuation, error) {
	var (
		v                                                  domain.ProductValuation
		method                                             string
		standardCost, unitCost, quantity, receiptC, issueC pgtype.Numeric
		totalValue                                         int64
		receiptAt, issueAt                                 *time.Time
	)
	err := row.Scan(
		&v.ID, &v.ProductID, &v.WarehouseID, &method, &v.Currency,
		&standardCost, &unitCost, &quantity, &totalValue, &receiptC, &receiptAt,
		&issueC, &issueAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Method = domain.CostingMethod(method)
	v.StandardCost = numericToDecimal(standardCost)
	v.CurrentUnitCost = numericToDecimal(unitCost)
	v.TotalQuantity = numericToDecimal(quantity)
	v.TotalValue = domain.Money(totalValue)
	v.LastReceiptCost = numericToDecimal(receiptC)
	v.LastIssueCost = numericToDecimal(issueC)
	v.LastReceiptAt = receiptAt
	v.LastIssueAt = issueAt
	return &v, nil
}

// LayerRepository implements usecase.LayerRepository.
type LayerRepository struct {
	pool *pgxpool.Pool
}

// NewLayerRepository creates a new LayerRepository.
func NewLayerRepository(pool *pgxpool.Pool) *LayerRepository {
	return &LayerRepository{pool: pool}
}

const layerColumns = `id, valuation_id, product_id, warehouse_id, quantity, remaining_qty, unit_cost, total_value, layer_date, source_ref, created_at`

// Create persists a cost layer inside the caller's transaction.
func (r *LayerRepository) Create(ctx context.Context, tx usecase.Transaction, layer *domain.InventoryCostLayer) error {
	_, err := txq(tx).Exec(ctx, `
		INSERT INTO inventory_cost_layers (`+layerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		layer.ID, layer.ValuationID, layer.ProductID, layer.WarehouseID,
		decimalToNumeric(layer.Quantity), decimalToNumeric(layer.RemainingQty),
		decimalToNumeric(layer.UnitCost), int64(layer.TotalValue),
		tsz(layer.LayerDate), layer.SourceRef, tsz(layer.CreatedAt),
	)
	return err
}

// OpenLayers returns layers with stock remaining, oldest-first when asc,
// newest-first otherwise, locked for consumption.
func (r *LayerRepository) OpenLayers(ctx context.Context, tx usecase.Transaction, valuationID string, asc bool) ([]*domain.InventoryCostLayer, error) {
	order := "layer_date, created_at"
	if !asc {
		order = "layer_date DESC, created_at DESC"
	}

	rows, err := txq(tx).Query(ctx, `
		SELECT `+layerColumns+` FROM inventory_cost_layers
		WHERE valuation_id = $1 AND remaining_qty > 0
		ORDER BY `+order+`
		FOR UPDATE`,
		valuationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLayers(rows)
}

// UpdateRemaining rewrites a layer's remaining quantity after consumption.
func (r *LayerRepository) UpdateRemaining(ctx context.Context, tx usecase.Transaction, layerID string, remaining decimal.Decimal) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE inventory_cost_layers SET remaining_qty = $2 WHERE id = $1`,
		layerID, decimalToNumeric(remaining),
	)
	return err
}

// ListByValuation returns all layers for a valuation, oldest-first.
func (r *LayerRepository) ListByValuation(ctx context.Context, valuationID string) ([]*domain.InventoryCostLayer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+layerColumns+` FROM inventory_cost_layers
		WHERE valuation_id = $1
		ORDER BY layer_date, created_at`,
		valuationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLayers(rows)
}

func collectLayers(rows pgx.Rows) ([]*domain.InventoryCostLayer, error) {
	var layers []*domain.InventoryCostLayer
	for rows.Next() {
		var (
			layer                         domain.InventoryCostLayer
			quantity, remaining, unitCost pgtype.Numeric
			totalValue                    int64
		)
		err := rows.Scan(
			&layer.ID, &layer.ValuationID, &layer.ProductID, &layer.WarehouseID,
			&quantity, &remaining, &unitCost, &totalValue, &layer.LayerDate,
			&layer.SourceRef, &layer.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		layer.Quantity = numericToDecimal(quantity)
		layer.RemainingQty = numericToDecimal(remaining)
		layer.UnitCost = numericToDecimal(unitCost)
		layer.TotalValue = domain.Money(totalValue)
		layers = append(layers, &layer)
	}
	return layers, rows.Err()
}

// AdjustmentRepository implements usecase.AdjustmentRepository.
type AdjustmentRepository struct {
	pool *pgxpool.Pool
}

// NewAdjustmentRepository creates a new AdjustmentRepository.
func NewAdjustmentRepository(pool *pgxpool.Pool) *AdjustmentRepository {
	return &AdjustmentRepository{pool: pool}
}

const adjustmentColumns = `id, number, description, status, currency, journal_entry_id, posted_at, created_at, updated_at, created_by`

// Create persists an adjustment with its lines.
func (r *AdjustmentRepository) Create(ctx context.Context, adj *domain.CostAdjustment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cost_adjustments (`+adjustmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		adj.ID, adj.Number, adj.Description, string(adj.Status), adj.Currency,
		adj.JournalEntryID, tszPtr(adj.PostedAt), tsz(adj.CreatedAt),
		tsz(adj.UpdatedAt), adj.CreatedBy,
	)
	if err != nil {
		return err
	}

	for i := range adj.Lines {
		line := &adj.Lines[i]
		_, err := r.pool.Exec(ctx, `
			INSERT INTO cost_adjustment_lines (id, adjustment_id, product_id, warehouse_id, old_unit_cost, new_unit_cost, quantity, delta_value, ordinal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			line.ID, adj.ID, line.ProductID, line.WarehouseID,
			decimalToNumeric(line.OldUnitCost), decimalToNumeric(line.NewUnitCost),
			decimalToNumeric(line.Quantity), int64(line.DeltaValue), i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves an adjustment with its lines.
func (r *AdjustmentRepository) GetByID(ctx context.Context, id string) (*domain.CostAdjustment, error) {
	return r.getAdjustment(ctx, r.pool, id, "")
}

// GetByIDForUpdate locks an adjustment row so posting serializes.
func (r *AdjustmentRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.CostAdjustment, error) {
	return r.getAdjustment(ctx, txq(tx), id, " FOR UPDATE")
}

func (r *AdjustmentRepository) getAdjustment(ctx context.Context, q querier, id, suffix string) (*domain.CostAdjustment, error) {
	var (
		adj      domain.CostAdjustment
		status   string
		postedAt *time.Time
	)
	err := q.QueryRow(ctx, `SELECT `+adjustmentColumns+` FROM cost_adjustments WHERE id = $1`+suffix, id).Scan(
		&adj.ID, &adj.Number, &adj.Description, &status, &adj.Currency,
		&adj.JournalEntryID, &postedAt, &adj.CreatedAt, &adj.UpdatedAt,
		&adj.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAdjustmentNotFound
		}
		return nil, err
	}
	adj.Status = domain.AdjustmentStatus(status)
	adj.PostedAt = postedAt

	rows, err := q.Query(ctx, `
		SELECT id, adjustment_id, product_id, warehouse_id, old_unit_cost, new_unit_cost, quantity, delta_value
		FROM cost_adjustment_lines
		WHERE adjustment_id = $1
		ORDER BY ordinal`,
		adj.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line                       domain.CostAdjustmentLine
			oldCost, newCost, quantity pgtype.Numeric
			delta                      int64
		)
		err := rows.Scan(
			&line.ID, &line.AdjustmentID, &line.ProductID, &line.WarehouseID,
			&oldCost, &newCost, &quantity, &delta,
		)
		if err != nil {
			return nil, err
		}
		line.OldUnitCost = numericToDecimal(oldCost)
		line.NewUnitCost = numericToDecimal(newCost)
		line.Quantity = numericToDecimal(quantity)
		line.DeltaValue = domain.Money(delta)
		adj.Lines = append(adj.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &adj, nil
}

// MarkPosted stamps an adjustment with its journal entry.
func (r *AdjustmentRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id, journalEntryID string, postedAt time.Time) error {
	_, err := txq(tx).Exec(ctx, `
		UPDATE cost_adjustments
		SET status = $2, journal_entry_id = $3, posted_at = $4, updated_at = $4
		WHERE id = $1`,
		id, string(domain.AdjustmentPosted), journalEntryID, tsz(postedAt),
	)
	return err
}
