package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// MockCreditProfileRepository is a mock implementation of CreditProfileRepository.
// Ledger, when set, backs the hold-aware queries.
type MockCreditProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*domain.CustomerCreditProfile

	Ledger *MockCreditLedgerRepository
}

func NewMockCreditProfileRepository() *MockCreditProfileRepository {
	return &MockCreditProfileRepository{
		profiles: make(map[string]*domain.CustomerCreditProfile),
	}
}

func (m *MockCreditProfileRepository) Create(ctx context.Context, p *domain.CustomerCreditProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.CustomerID] = p
	return nil
}

func (m *MockCreditProfileRepository) GetByCustomer(ctx context.Context, customerID string) (*domain.CustomerCreditProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[customerID]; ok {
		return p, nil
	}
	return nil, domain.ErrProfileNotFound
}

func (m *MockCreditProfileRepository) GetByCustomerForUpdate(ctx context.Context, tx usecase.Transaction, customerID string) (*domain.CustomerCreditProfile, error) {
	return m.GetByCustomer(ctx, customerID)
}

func (m *MockCreditProfileRepository) Update(ctx context.Context, tx usecase.Transaction, p *domain.CustomerCreditProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.CustomerID] = p
	return nil
}

func (m *MockCreditProfileRepository) List(ctx context.Context, page domain.Page) ([]*domain.CustomerCreditProfile, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.CustomerCreditProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CustomerID < all[j].CustomerID })
	items, total := paginate(all, page)
	return items, total, nil
}

func (m *MockCreditProfileRepository) ListOnHold(ctx context.Context, page domain.Page) ([]*domain.CustomerCreditProfile, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.CustomerCreditProfile
	for _, p := range m.profiles {
		if m.Ledger == nil {
			continue
		}
		if _, err := m.Ledger.GetActiveHold(ctx, nil, p.ID); err == nil {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	items, total := paginate(all, page)
	return items, total, nil
}

func (m *MockCreditProfileRepository) ListHighRisk(ctx context.Context, page domain.Page) ([]*domain.CustomerCreditProfile, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.CustomerCreditProfile
	for _, p := range m.profiles {
		if p.RiskLevel == domain.RiskHigh || p.RiskLevel == domain.RiskCritical {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OverdueAmount > all[j].OverdueAmount })
	items, total := paginate(all, page)
	return items, total, nil
}

func (m *MockCreditProfileRepository) Summary(ctx context.Context) (*domain.CreditSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &domain.CreditSummary{}
	for _, p := range m.profiles {
		s.TotalCustomers++
		s.TotalCreditLimit += p.CreditLimit
		s.TotalCreditUsed += p.CreditUsed
		s.TotalAvailable += p.CreditLimit - p.CreditUsed
		s.TotalOverdue += p.OverdueAmount
		if p.RiskLevel == domain.RiskHigh || p.RiskLevel == domain.RiskCritical {
			s.HighRiskCustomers++
		}
		if m.Ledger != nil {
			if _, err := m.Ledger.GetActiveHold(ctx, nil, p.ID); err == nil {
				s.CustomersOnHold++
			}
		}
	}
	if s.TotalCreditLimit > 0 {
		s.AvgUtilizationPct = float64(s.TotalCreditUsed) / float64(s.TotalCreditLimit) * 100
	}
	return s, nil
}

// MockCreditLedgerRepository is a mock implementation of CreditLedgerRepository.
type MockCreditLedgerRepository struct {
	mu           sync.RWMutex
	Transactions []*domain.CreditTransaction
	Holds        map[string]*domain.CreditHold
	Alerts       []*domain.CreditAlert
	LimitChanges []*domain.CreditLimitChange
}

func NewMockCreditLedgerRepository() *MockCreditLedgerRepository {
	return &MockCreditLedgerRepository{
		Holds: make(map[string]*domain.CreditHold),
	}
}

func (m *MockCreditLedgerRepository) CreateTransaction(ctx context.Context, tx usecase.Transaction, ct *domain.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transactions = append(m.Transactions, ct)
	return nil
}

func (m *MockCreditLedgerRepository) TransactionExists(ctx context.Context, tx usecase.Transaction, profileID, referenceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ct := range m.Transactions {
		if ct.ProfileID == profileID && ct.ReferenceID == referenceID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockCreditLedgerRepository) ListTransactions(ctx context.Context, profileID string, page domain.Page) ([]*domain.CreditTransaction, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.CreditTransaction
	for _, ct := range m.Transactions {
		if ct.ProfileID == profileID {
			all = append(all, ct)
		}
	}
	items, total := paginate(all, page)
	return items, total, nil
}

func (m *MockCreditLedgerRepository) CreateHold(ctx context.Context, tx usecase.Transaction, hold *domain.CreditHold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Holds[hold.ID] = hold
	return nil
}

func (m *MockCreditLedgerRepository) GetHold(ctx context.Context, id string) (*domain.CreditHold, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if h, ok := m.Holds[id]; ok {
		return h, nil
	}
	return nil, domain.ErrHoldNotFound
}

func (m *MockCreditLedgerRepository) GetActiveHold(ctx context.Context, tx usecase.Transaction, profileID string) (*domain.CreditHold, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.Holds {
		if h.ProfileID == profileID && h.Status == domain.HoldActive {
			return h, nil
		}
	}
	return nil, domain.ErrHoldNotFound
}

func (m *MockCreditLedgerRepository) ReleaseHold(ctx context.Context, tx usecase.Transaction, id, releasedBy, reason string, releasedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.Holds[id]; ok {
		h.Status = domain.HoldReleased
		h.ReleasedBy = releasedBy
		h.OverrideReason = reason
		h.ReleasedAt = &releasedAt
		h.UpdatedAt = releasedAt
	}
	return nil
}

func (m *MockCreditLedgerRepository) CreateAlert(ctx context.Context, tx usecase.Transaction, alert *domain.CreditAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, alert)
	return nil
}

func (m *MockCreditLedgerRepository) ListAlerts(ctx context.Context, profileID string, page domain.Page) ([]*domain.CreditAlert, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.CreditAlert
	for _, a := range m.Alerts {
		if a.ProfileID == profileID {
			all = append(all, a)
		}
	}
	items, total := paginate(all, page)
	return items, total, nil
}

func (m *MockCreditLedgerRepository) AcknowledgeAlert(ctx context.Context, alertID, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Alerts {
		if a.ID == alertID {
			a.Acknowledged = true
			a.AcknowledgedBy = userID
			a.AcknowledgedAt = &at
			return nil
		}
	}
	return domain.ErrAlertNotFound
}

func (m *MockCreditLedgerRepository) CreateLimitChange(ctx context.Context, tx usecase.Transaction, change *domain.CreditLimitChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LimitChanges = append(m.LimitChanges, change)
	return nil
}

func (m *MockCreditLedgerRepository) ListLimitChanges(ctx context.Context, profileID string, page domain.Page) ([]*domain.CreditLimitChange, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.CreditLimitChange
	for _, lc := range m.LimitChanges {
		if lc.ProfileID == profileID {
			all = append(all, lc)
		}
	}
	items, total := paginate(all, page)
	return items, total, nil
}
