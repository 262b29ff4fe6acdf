package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/quorvia/erpcore/internal/domain"
)

// MockRuleRepository is a mock implementation of RuleRepository.
type MockRuleRepository struct {
	mu         sync.RWMutex
	rules      map[string]*domain.Rule
	sets       map[string]*domain.RuleSet
	variables  []*domain.RuleVariable
	functions  []*domain.RuleFunction
	Executions []*domain.RuleExecution

	ListByEntityKindFunc func(ctx context.Context, entityKind string) ([]*domain.Rule, error)
	CreateExecutionFunc  func(ctx context.Context, exec *domain.RuleExecution) error
}

func NewMockRuleRepository() *MockRuleRepository {
	return &MockRuleRepository{
		rules: make(map[string]*domain.Rule),
		sets:  make(map[string]*domain.RuleSet),
	}
}

func (m *MockRuleRepository) Create(ctx context.Context, rule *domain.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *MockRuleRepository) GetByID(ctx context.Context, id string) (*domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.rules[id]; ok {
		return r, nil
	}
	return nil, domain.ErrRuleNotFound
}

func (m *MockRuleRepository) GetByCode(ctx context.Context, code string) (*domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.Code == code {
			return r, nil
		}
	}
	return nil, domain.ErrRuleNotFound
}

func (m *MockRuleRepository) ListByEntityKind(ctx context.Context, entityKind string) ([]*domain.Rule, error) {
	if m.ListByEntityKindFunc != nil {
		return m.ListByEntityKindFunc(ctx, entityKind)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Rule
	for _, r := range m.rules {
		if r.EntityKind == entityKind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (m *MockRuleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *MockRuleRepository) GetSet(ctx context.Context, id string) (*domain.RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sets[id]; ok {
		return s, nil
	}
	return nil, domain.ErrRuleSetNotFound
}

func (m *MockRuleRepository) CreateSet(ctx context.Context, set *domain.RuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[set.ID] = set
	return nil
}

func (m *MockRuleRepository) RulesInSet(ctx context.Context, set *domain.RuleSet) ([]*domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Rule, 0, len(set.RuleIDs))
	for _, id := range set.RuleIDs {
		if r, ok := m.rules[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRuleRepository) ListVariables(ctx context.Context) ([]*domain.RuleVariable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.variables, nil
}

func (m *MockRuleRepository) ListFunctions(ctx context.Context) ([]*domain.RuleFunction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.functions, nil
}

func (m *MockRuleRepository) CreateFunction(ctx context.Context, fn *domain.RuleFunction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.functions = append(m.functions, fn)
	return nil
}

// AddVariable seeds a reusable expression fragment.
func (m *MockRuleRepository) AddVariable(v *domain.RuleVariable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variables = append(m.variables, v)
}

func (m *MockRuleRepository) CreateExecution(ctx context.Context, exec *domain.RuleExecution) error {
	if m.CreateExecutionFunc != nil {
		return m.CreateExecutionFunc(ctx, exec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Executions = append(m.Executions, exec)
	return nil
}

func (m *MockRuleRepository) ListExecutions(ctx context.Context, ruleID string, page domain.Page) ([]*domain.RuleExecution, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.RuleExecution
	for _, e := range m.Executions {
		if e.RuleID == ruleID {
			all = append(all, e)
		}
	}
	items, total := paginate(all, page)
	return items, total, nil
}

// MockDecisionTableRepository is a mock implementation of DecisionTableRepository.
type MockDecisionTableRepository struct {
	mu     sync.RWMutex
	tables map[string]*domain.DecisionTable
}

func NewMockDecisionTableRepository() *MockDecisionTableRepository {
	return &MockDecisionTableRepository{
		tables: make(map[string]*domain.DecisionTable),
	}
}

func (m *MockDecisionTableRepository) Create(ctx context.Context, table *domain.DecisionTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table.ID] = table
	return nil
}

func (m *MockDecisionTableRepository) GetByID(ctx context.Context, id string) (*domain.DecisionTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tables[id]; ok {
		return t, nil
	}
	return nil, domain.ErrTableNotFound
}

func (m *MockDecisionTableRepository) GetByCode(ctx context.Context, code string) (*domain.DecisionTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tables {
		if t.Code == code {
			return t, nil
		}
	}
	return nil, domain.ErrTableNotFound
}

func (m *MockDecisionTableRepository) Update(ctx context.Context, table *domain.DecisionTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table.ID] = table
	return nil
}

func (m *MockDecisionTableRepository) List(ctx context.Context, page domain.Page) ([]*domain.DecisionTable, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.DecisionTable, 0, len(m.tables))
	for _, t := range m.tables {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	items, total := paginate(all, page)
	return items, total, nil
}
