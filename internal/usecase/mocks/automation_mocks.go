package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// MockAutomationRepository is a mock implementation of AutomationRepository.
type MockAutomationRepository struct {
	mu        sync.RWMutex
	workflows map[string]*domain.AutomationWorkflow

	UpdateCountersFunc func(ctx context.Context, tx usecase.Transaction, wf *domain.AutomationWorkflow) error
}

func NewMockAutomationRepository() *MockAutomationRepository {
	return &MockAutomationRepository{
		workflows: make(map[string]*domain.AutomationWorkflow),
	}
}

func (m *MockAutomationRepository) Create(ctx context.Context, wf *domain.AutomationWorkflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[wf.ID] = wf
	return nil
}

func (m *MockAutomationRepository) GetByID(ctx context.Context, id string) (*domain.AutomationWorkflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if wf, ok := m.workflows[id]; ok {
		return wf, nil
	}
	return nil, domain.ErrAutomationNotFound
}

func (m *MockAutomationRepository) GetByCode(ctx context.Context, code string) (*domain.AutomationWorkflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, wf := range m.workflows {
		if wf.Code == code {
			return wf, nil
		}
	}
	return nil, domain.ErrAutomationNotFound
}

func (m *MockAutomationRepository) ListByTrigger(ctx context.Context, trigger domain.TriggerKind) ([]*domain.AutomationWorkflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AutomationWorkflow
	for _, wf := range m.workflows {
		if wf.Trigger == trigger && wf.Status == domain.AutomationActive {
			out = append(out, wf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MockAutomationRepository) Update(ctx context.Context, wf *domain.AutomationWorkflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[wf.ID] = wf
	return nil
}

func (m *MockAutomationRepository) UpdateCounters(ctx context.Context, tx usecase.Transaction, wf *domain.AutomationWorkflow) error {
	if m.UpdateCountersFunc != nil {
		return m.UpdateCountersFunc(ctx, tx, wf)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[wf.ID] = wf
	return nil
}

func (m *MockAutomationRepository) List(ctx context.Context, page domain.Page) ([]*domain.AutomationWorkflow, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.AutomationWorkflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		all = append(all, wf)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	items, total := paginate(all, page)
	return items, total, nil
}

// MockExecutionRepository is a mock implementation of ExecutionRepository.
type MockExecutionRepository struct {
	mu         sync.RWMutex
	executions map[string]*domain.WorkflowExecution
	order      []string
	seq        int64

	NextAdmissibleFunc func(ctx context.Context, tx usecase.Transaction, workflowID string) (*domain.WorkflowExecution, error)
	CountRunningFunc   func(ctx context.Context, tx usecase.Transaction, workflowID string) (int, error)
}

func NewMockExecutionRepository() *MockExecutionRepository {
	return &MockExecutionRepository{
		executions: make(map[string]*domain.WorkflowExecution),
	}
}

func (m *MockExecutionRepository) Create(ctx context.Context, tx usecase.Transaction, exec *domain.WorkflowExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[exec.ID] = exec
	m.order = append(m.order, exec.ID)
	return nil
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.executions[id]; ok {
		return e, nil
	}
	return nil, domain.ErrExecutionNotFound
}

func (m *MockExecutionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.WorkflowExecution, error) {
	return m.GetByID(ctx, id)
}

func (m *MockExecutionRepository) Update(ctx context.Context, tx usecase.Transaction, exec *domain.WorkflowExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[exec.ID] = exec
	return nil
}

func (m *MockExecutionRepository) CountRunning(ctx context.Context, tx usecase.Transaction, workflowID string) (int, error) {
	if m.CountRunningFunc != nil {
		return m.CountRunningFunc(ctx, tx, workflowID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.executions {
		if e.WorkflowID == workflowID && (e.Status == domain.ExecutionRunning || e.Status == domain.ExecutionWaiting) {
			n++
		}
	}
	return n, nil
}

func (m *MockExecutionRepository) NextAdmissible(ctx context.Context, tx usecase.Transaction, workflowID string) (*domain.WorkflowExecution, error) {
	if m.NextAdmissibleFunc != nil {
		return m.NextAdmissibleFunc(ctx, tx, workflowID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *domain.WorkflowExecution
	for _, id := range m.order {
		e := m.executions[id]
		if e.WorkflowID != workflowID || e.Status != domain.ExecutionPending {
			continue
		}
		if best == nil || e.Priority > best.Priority {
			best = e
		}
	}
	if best == nil {
		return nil, domain.ErrExecutionNotFound
	}
	return best, nil
}

func (m *MockExecutionRepository) ListPendingWorkflows(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, id := range m.order {
		e := m.executions[id]
		if e.Status == domain.ExecutionPending && !seen[e.WorkflowID] {
			seen[e.WorkflowID] = true
			out = append(out, e.WorkflowID)
		}
	}
	return out, nil
}

func (m *MockExecutionRepository) RequestCancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.executions[id]; ok {
		e.CancelRequested = true
	}
	return nil
}

func (m *MockExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, page domain.Page) ([]*domain.WorkflowExecution, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.WorkflowExecution
	for _, id := range m.order {
		if e := m.executions[id]; e.WorkflowID == workflowID {
			all = append(all, e)
		}
	}
	items, total := paginate(all, page)
	return items, total, nil
}

func (m *MockExecutionRepository) NextSequence(ctx context.Context, tx usecase.Transaction, year int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

// MockScheduledJobRepository is a mock implementation of ScheduledJobRepository.
type MockScheduledJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ScheduledJob
}

func NewMockScheduledJobRepository() *MockScheduledJobRepository {
	return &MockScheduledJobRepository{
		jobs: make(map[string]*domain.ScheduledJob),
	}
}

func (m *MockScheduledJobRepository) Create(ctx context.Context, job *domain.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MockScheduledJobRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *MockScheduledJobRepository) ListDue(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ScheduledJob
	for _, j := range m.jobs {
		if j.Due(now) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockScheduledJobRepository) UpdateSchedule(ctx context.Context, tx usecase.Transaction, job *domain.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MockScheduledJobRepository) List(ctx context.Context, page domain.Page) ([]*domain.ScheduledJob, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*domain.ScheduledJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		all = append(all, j)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	items, total := paginate(all, page)
	return items, total, nil
}

// MockWebhookRepository is a mock implementation of WebhookRepository.
type MockWebhookRepository struct {
	mu        sync.RWMutex
	endpoints map[string]*domain.WebhookEndpoint
	Requests  []*domain.WebhookRequest
}

func NewMockWebhookRepository() *MockWebhookRepository {
	return &MockWebhookRepository{
		endpoints: make(map[string]*domain.WebhookEndpoint),
	}
}

func (m *MockWebhookRepository) GetEndpointByPath(ctx context.Context, path string) (*domain.WebhookEndpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ep, ok := m.endpoints[path]; ok {
		return ep, nil
	}
	return nil, domain.ErrEndpointNotFound
}

func (m *MockWebhookRepository) CreateEndpoint(ctx context.Context, ep *domain.WebhookEndpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints[ep.Path] = ep
	return nil
}

func (m *MockWebhookRepository) CreateRequest(ctx context.Context, req *domain.WebhookRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	return nil
}

func (m *MockWebhookRepository) UpdateRequest(ctx context.Context, req *domain.WebhookRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.Requests {
		if r.ID == req.ID {
			m.Requests[i] = req
		}
	}
	return nil
}

// MockActionExecutor runs steps through a per-node function table.
type MockActionExecutor struct {
	mu    sync.Mutex
	Calls []string

	// ByNode overrides execution per node id; unset nodes succeed with
	// no output.
	ByNode map[string]func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error)
}

func NewMockActionExecutor() *MockActionExecutor {
	return &MockActionExecutor{
		ByNode: make(map[string]func(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error)),
	}
}

func (m *MockActionExecutor) Execute(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, node.ID)
	fn := m.ByNode[node.ID]
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, node, input)
	}
	return usecase.StepResult{}, nil
}
