package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// MockValuationRepository is a mock implementation of ValuationRepository.
type MockValuationRepository struct {
	mu         sync.RWMutex
	valuations map[string]*domain.ProductValuation
}

func NewMockValuationRepository() *MockValuationRepository {
	return &MockValuationRepository{
		valuations: make(map[string]*domain.ProductValuation),
	}
}

func key(productID, warehouseID string) string {
	return productID + "/" + warehouseID
}

func (m *MockValuationRepository) Create(ctx context.Context, tx usecase.Transaction, v *domain.ProductValuation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valuations[key(v.ProductID, v.WarehouseID)] = v
	return nil
}

func (m *MockValuationRepository) Get(ctx context.Context, productID, warehouseID string) (*domain.ProductValuation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.valuations[key(productID, warehouseID)]; ok {
		return v, nil
	}
	return nil, domain.ErrValuationNotFound
}

func (m *MockValuationRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, productID, warehouseID string) (*domain.ProductValuation, error) {
	return m.Get(ctx, productID, warehouseID)
}

func (m *MockValuationRepository) Update(ctx context.Context, tx usecase.Transaction, v *domain.ProductValuation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valuations[key(v.ProductID, v.WarehouseID)] = v
	return nil
}

func (m *MockValuationRepository) List(ctx context.Context, page domain.Page) ([]*domain.ProductValuation, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.ProductValuation, 0, len(m.valuations))
	for _, v := range m.valuations {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	items, total := paginate(all, page)
	return items, total, nil
}

// MockLayerRepository is a mock implementation of LayerRepository.
type MockLayerRepository struct {
	mu     sync.RWMutex
	layers []*domain.InventoryCostLayer
}

func NewMockLayerRepository() *MockLayerRepository {
	return &MockLayerRepository{}
}

func (m *MockLayerRepository) Create(ctx context.Context, tx usecase.Transaction, layer *domain.InventoryCostLayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers = append(m.layers, layer)
	return nil
}

func (m *MockLayerRepository) OpenLayers(ctx context.Context, tx usecase.Transaction, valuationID string, asc bool) ([]*domain.InventoryCostLayer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.InventoryCostLayer
	for _, l := range m.layers {
		if l.ValuationID == valuationID && !l.Exhausted() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].LayerDate.Before(out[j].LayerDate)
		}
		return out[i].LayerDate.After(out[j].LayerDate)
	})
	return out, nil
}

func (m *MockLayerRepository) UpdateRemaining(ctx context.Context, tx usecase.Transaction, layerID string, remaining decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.layers {
		if l.ID == layerID {
			l.RemainingQty = remaining
		}
	}
	return nil
}

func (m *MockLayerRepository) ListByValuation(ctx context.Context, valuationID string) ([]*domain.InventoryCostLayer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.InventoryCostLayer
	for _, l := range m.layers {
		if l.ValuationID == valuationID {
			out = append(out, l)
		}
	}
	return out, nil
}

// MockAdjustmentRepository is a mock implementation of AdjustmentRepository.
type MockAdjustmentRepository struct {
	mu          sync.RWMutex
	adjustments map[string]*domain.CostAdjustment
}

func NewMockAdjustmentRepository() *MockAdjustmentRepository {
	return &MockAdjustmentRepository{
		adjustments: make(map[string]*domain.CostAdjustment),
	}
}

func (m *MockAdjustmentRepository) Create(ctx context.Context, adj *domain.CostAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments[adj.ID] = adj
	return nil
}

func (m *MockAdjustmentRepository) GetByID(ctx context.Context, id string) (*domain.CostAdjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.adjustments[id]; ok {
		return a, nil
	}
	return nil, domain.ErrAdjustmentNotFound
}

func (m *MockAdjustmentRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.CostAdjustment, error) {
	return m.GetByID(ctx, id)
}

func (m *MockAdjustmentRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id, journalEntryID string, postedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.adjustments[id]; ok {
		a.Status = domain.AdjustmentPosted
		a.JournalEntryID = journalEntryID
		a.PostedAt = &postedAt
	}
	return nil
}
