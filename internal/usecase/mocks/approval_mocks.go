package mocks

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// MockWorkflowRepository is a mock implementation of WorkflowRepository.
type MockWorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[string]*domain.ApprovalWorkflow

	GetByCodeFunc           func(ctx context.Context, code string) (*domain.ApprovalWorkflow, error)
	ListForDocumentKindFunc func(ctx context.Context, kind string) ([]*domain.ApprovalWorkflow, error)
}

func NewMockWorkflowRepository() *MockWorkflowRepository {
	return &MockWorkflowRepository{
		workflows: make(map[string]*domain.ApprovalWorkflow),
	}
}

func (m *MockWorkflowRepository) Create(ctx context.Context, wf *domain.ApprovalWorkflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[wf.ID] = wf
	return nil
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalWorkflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if wf, ok := m.workflows[id]; ok {
		return wf, nil
	}
	return nil, domain.ErrWorkflowNotFound
}

func (m *MockWorkflowRepository) GetByCode(ctx context.Context, code string) (*domain.ApprovalWorkflow, error) {
	if m.GetByCodeFunc != nil {
		return m.GetByCodeFunc(ctx, code)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, wf := range m.workflows {
		if wf.Code == code {
			return wf, nil
		}
	}
	return nil, domain.ErrWorkflowNotFound
}

func (m *MockWorkflowRepository) ListForDocumentKind(ctx context.Context, kind string) ([]*domain.ApprovalWorkflow, error) {
	if m.ListForDocumentKindFunc != nil {
		return m.ListForDocumentKindFunc(ctx, kind)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ApprovalWorkflow
	for _, wf := range m.workflows {
		if wf.DocumentKind == kind && wf.Status == domain.WorkflowActive {
			out = append(out, wf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MockWorkflowRepository) List(ctx context.Context, page domain.Page) ([]*domain.ApprovalWorkflow, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.ApprovalWorkflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		all = append(all, wf)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	items, total := paginate(all, page)
	return items, total, nil
}

func (m *MockWorkflowRepository) Update(ctx context.Context, wf *domain.ApprovalWorkflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[wf.ID] = wf
	return nil
}

// MockRequestRepository is a mock implementation of RequestRepository.
type MockRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.ApprovalRequest
	Records  []*domain.ApprovalRecord
	seq      int64

	// Workflows backs the default ListPendingForApprover, which needs
	// the current level's approver list.
	Workflows *MockWorkflowRepository

	GetByIDForUpdateFunc       func(ctx context.Context, tx usecase.Transaction, id string) (*domain.ApprovalRequest, error)
	ListOverdueFunc            func(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.ApprovalRequest, error)
	ListPendingForApproverFunc func(ctx context.Context, approverID string, page domain.Page) ([]*domain.ApprovalRequest, int64, error)
}

func NewMockRequestRepository() *MockRequestRepository {
	return &MockRequestRepository{
		requests: make(map[string]*domain.ApprovalRequest),
	}
}

func (m *MockRequestRepository) Create(ctx context.Context, tx usecase.Transaction, req *domain.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return nil
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if req, ok := m.requests[id]; ok {
		return req, nil
	}
	return nil, domain.ErrRequestNotFound
}

func (m *MockRequestRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.ApprovalRequest, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockRequestRepository) Update(ctx context.Context, tx usecase.Transaction, req *domain.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return nil
}

func (m *MockRequestRepository) AddRecord(ctx context.Context, tx usecase.Transaction, rec *domain.ApprovalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, rec)
	return nil
}

func (m *MockRequestRepository) ListOverdue(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.ApprovalRequest, error) {
	if m.ListOverdueFunc != nil {
		return m.ListOverdueFunc(ctx, tx, now)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ApprovalRequest
	for _, req := range m.requests {
		if req.Status == domain.RequestPending && req.DueDate != nil && req.DueDate.Before(now) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRequestRepository) List(ctx context.Context, page domain.Page) ([]*domain.ApprovalRequest, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.ApprovalRequest, 0, len(m.requests))
	for _, req := range m.requests {
		all = append(all, req)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Number < all[j].Number })
	items, total := paginate(all, page)
	return items, total, nil
}

func (m *MockRequestRepository) ListPendingForApprover(ctx context.Context, approverID string, page domain.Page) ([]*domain.ApprovalRequest, int64, error) {
	if m.ListPendingForApproverFunc != nil {
		return m.ListPendingForApproverFunc(ctx, approverID, page)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var pending []*domain.ApprovalRequest
	for _, req := range m.requests {
		if req.Status != domain.RequestPending {
			continue
		}
		if m.Workflows == nil {
			continue
		}
		wf, err := m.Workflows.GetByID(ctx, req.WorkflowID)
		if err != nil {
			continue
		}
		level := wf.LevelAt(req.CurrentLevel)
		if level == nil {
			continue
		}
		if level.Selector == domain.SelectorSupervisor || slices.Contains(level.ApproverIDs, approverID) {
			pending = append(pending, req)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Number < pending[j].Number })
	items, total := paginate(pending, page)
	return items, total, nil
}

func (m *MockRequestRepository) NextSequence(ctx context.Context, tx usecase.Transaction, year int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

// MockApproverDirectory resolves approvers from fixed maps.
type MockApproverDirectory struct {
	Roles       map[string][]string
	Departments map[string][]string
	Supervisors map[string]string

	UsersInRoleFunc       func(ctx context.Context, role string) ([]string, error)
	UsersInDepartmentFunc func(ctx context.Context, department string) ([]string, error)
	SupervisorOfFunc      func(ctx context.Context, userID string) (string, error)
}

func NewMockApproverDirectory() *MockApproverDirectory {
	return &MockApproverDirectory{
		Roles:       make(map[string][]string),
		Departments: make(map[string][]string),
		Supervisors: make(map[string]string),
	}
}

func (m *MockApproverDirectory) UsersInRole(ctx context.Context, role string) ([]string, error) {
	if m.UsersInRoleFunc != nil {
		return m.UsersInRoleFunc(ctx, role)
	}
	return m.Roles[role], nil
}

func (m *MockApproverDirectory) UsersInDepartment(ctx context.Context, department string) ([]string, error) {
	if m.UsersInDepartmentFunc != nil {
		return m.UsersInDepartmentFunc(ctx, department)
	}
	return m.Departments[department], nil
}

func (m *MockApproverDirectory) SupervisorOf(ctx context.Context, userID string) (string, error) {
	if m.SupervisorOfFunc != nil {
		return m.SupervisorOfFunc(ctx, userID)
	}
	if sup, ok := m.Supervisors[userID]; ok {
		return sup, nil
	}
	return "", domain.NotFound("supervisor_not_found", "supervisor")
}
