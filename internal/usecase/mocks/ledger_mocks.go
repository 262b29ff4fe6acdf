package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc       func(ctx context.Context, account *domain.Account) error
	GetByIDFunc      func(ctx context.Context, id string) (*domain.Account, error)
	GetByCodeFunc    func(ctx context.Context, code string) (*domain.Account, error)
	ListFunc         func(ctx context.Context, page domain.Page) ([]*domain.Account, int64, error)
	UpdateFunc       func(ctx context.Context, account *domain.Account) error
	UpdateStatusFunc func(ctx context.Context, id string, status domain.AccountStatus, updatedAt time.Time) error
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		return acc, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByCode(ctx context.Context, code string) (*domain.Account, error) {
	if m.GetByCodeFunc != nil {
		return m.GetByCodeFunc(ctx, code)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acc := range m.accounts {
		if acc.Code == code {
			return acc, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) List(ctx context.Context, page domain.Page) ([]*domain.Account, int64, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, page)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		all = append(all, acc)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	items, total := paginate(all, page)
	return items, total, nil
}

func (m *MockAccountRepository) Update(ctx context.Context, account *domain.Account) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, updatedAt time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[id]; ok {
		acc.Status = status
		acc.UpdatedAt = updatedAt
	}
	return nil
}

// MockJournalRepository is a mock implementation of JournalRepository.
type MockJournalRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.JournalEntry
	order   []string
	seq     int64

	CreateFunc           func(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.JournalEntry, error)
	GetByIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error)
	MarkPostedFunc       func(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error
	BalancesThroughFunc  func(ctx context.Context, from, asOf time.Time) ([]usecase.BalanceRow, error)
	NextSequenceFunc     func(ctx context.Context, tx usecase.Transaction, year int) (int64, error)
}

func NewMockJournalRepository() *MockJournalRepository {
	return &MockJournalRepository{
		entries: make(map[string]*domain.JournalEntry),
	}
}

func (m *MockJournalRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
	m.order = append(m.order, entry.ID)
	return nil
}

func (m *MockJournalRepository) GetByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return e, nil
	}
	return nil, domain.ErrEntryNotFound
}

func (m *MockJournalRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockJournalRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	if m.MarkPostedFunc != nil {
		return m.MarkPostedFunc(ctx, tx, id, postedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.Status = domain.EntryPosted
		e.PostedAt = &postedAt
	}
	return nil
}

func (m *MockJournalRepository) List(ctx context.Context, page domain.Page) ([]*domain.JournalEntry, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.JournalEntry, 0, len(m.order))
	for _, id := range m.order {
		all = append(all, m.entries[id])
	}
	items, total := paginate(all, page)
	return items, total, nil
}

// BalancesThrough aggregates posted entries held in memory. Account
// code, name and class come back empty; tests stub the func field when
// they need classed rows.
func (m *MockJournalRepository) BalancesThrough(ctx context.Context, from, asOf time.Time) ([]usecase.BalanceRow, error) {
	if m.BalancesThroughFunc != nil {
		return m.BalancesThroughFunc(ctx, from, asOf)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	agg := make(map[string]*usecase.BalanceRow)
	var ids []string
	for _, id := range m.order {
		e := m.entries[id]
		if e.Status != domain.EntryPosted {
			continue
		}
		if !from.IsZero() && !e.Date.After(from) {
			continue
		}
		if e.Date.After(asOf) {
			continue
		}
		for _, l := range e.Lines {
			row, ok := agg[l.AccountID]
			if !ok {
				row = &usecase.BalanceRow{AccountID: l.AccountID}
				agg[l.AccountID] = row
				ids = append(ids, l.AccountID)
			}
			row.Debits += l.Debit
			row.Credits += l.Credit
		}
	}
	out := make([]usecase.BalanceRow, 0, len(ids))
	for _, id := range ids {
		out = append(out, *agg[id])
	}
	return out, nil
}

func (m *MockJournalRepository) NextSequence(ctx context.Context, tx usecase.Transaction, year int) (int64, error) {
	if m.NextSequenceFunc != nil {
		return m.NextSequenceFunc(ctx, tx, year)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

// MockPeriodRepository is a mock implementation of PeriodRepository.
type MockPeriodRepository struct {
	mu      sync.RWMutex
	years   map[string]*domain.FiscalYear
	periods map[string]*domain.AccountingPeriod

	FindByDateFunc func(ctx context.Context, tx usecase.Transaction, date time.Time) (*domain.AccountingPeriod, error)
	UpdateLockFunc func(ctx context.Context, tx usecase.Transaction, id string, lock domain.PeriodLock, updatedAt time.Time) error
}

func NewMockPeriodRepository() *MockPeriodRepository {
	return &MockPeriodRepository{
		years:   make(map[string]*domain.FiscalYear),
		periods: make(map[string]*domain.AccountingPeriod),
	}
}

func (m *MockPeriodRepository) CreateFiscalYear(ctx context.Context, year *domain.FiscalYear) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.years[year.ID] = year
	return nil
}

func (m *MockPeriodRepository) GetFiscalYear(ctx context.Context, id string) (*domain.FiscalYear, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if y, ok := m.years[id]; ok {
		return y, nil
	}
	return nil, domain.ErrFiscalYearNotFound
}

func (m *MockPeriodRepository) ListFiscalYears(ctx context.Context) ([]*domain.FiscalYear, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.FiscalYear, 0, len(m.years))
	for _, y := range m.years {
		out = append(out, y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *MockPeriodRepository) CreatePeriod(ctx context.Context, period *domain.AccountingPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[period.ID] = period
	return nil
}

func (m *MockPeriodRepository) GetPeriod(ctx context.Context, id string) (*domain.AccountingPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.periods[id]; ok {
		return p, nil
	}
	return nil, domain.ErrPeriodNotFound
}

func (m *MockPeriodRepository) FindByDate(ctx context.Context, tx usecase.Transaction, date time.Time) (*domain.AccountingPeriod, error) {
	if m.FindByDateFunc != nil {
		return m.FindByDateFunc(ctx, tx, date)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.periods {
		if p.Contains(date) {
			return p, nil
		}
	}
	return nil, domain.ErrPeriodNotFound
}

func (m *MockPeriodRepository) GetPeriodForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.AccountingPeriod, error) {
	return m.GetPeriod(ctx, id)
}

func (m *MockPeriodRepository) UpdateLock(ctx context.Context, tx usecase.Transaction, id string, lock domain.PeriodLock, updatedAt time.Time) error {
	if m.UpdateLockFunc != nil {
		return m.UpdateLockFunc(ctx, tx, id, lock, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.periods[id]; ok {
		p.Lock = lock
		p.LockedAt = &updatedAt
		p.UpdatedAt = updatedAt
	}
	return nil
}

// MockRecurringRepository is a mock implementation of RecurringRepository.
type MockRecurringRepository struct {
	mu       sync.RWMutex
	journals map[string]*domain.RecurringJournal

	ListDueFunc func(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.RecurringJournal, error)
}

func NewMockRecurringRepository() *MockRecurringRepository {
	return &MockRecurringRepository{
		journals: make(map[string]*domain.RecurringJournal),
	}
}

func (m *MockRecurringRepository) Create(ctx context.Context, rj *domain.RecurringJournal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journals[rj.ID] = rj
	return nil
}

func (m *MockRecurringRepository) GetByID(ctx context.Context, id string) (*domain.RecurringJournal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rj, ok := m.journals[id]; ok {
		return rj, nil
	}
	return nil, domain.ErrRecurringNotFound
}

func (m *MockRecurringRepository) ListDue(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.RecurringJournal, error) {
	if m.ListDueFunc != nil {
		return m.ListDueFunc(ctx, tx, now)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.RecurringJournal
	for _, rj := range m.journals {
		if rj.Active && !rj.NextRun.After(now) {
			out = append(out, rj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRun.Before(out[j].NextRun) })
	return out, nil
}

func (m *MockRecurringRepository) UpdateSchedule(ctx context.Context, tx usecase.Transaction, id string, nextRun, lastRun time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rj, ok := m.journals[id]; ok {
		rj.NextRun = nextRun
		rj.LastRun = &lastRun
	}
	return nil
}

func (m *MockRecurringRepository) List(ctx context.Context, page domain.Page) ([]*domain.RecurringJournal, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.RecurringJournal, 0, len(m.journals))
	for _, rj := range m.journals {
		all = append(all, rj)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	items, total := paginate(all, page)
	return items, total, nil
}
