package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TriggerKind is how an automation workflow is started.
type TriggerKind string

const (
	TriggerScheduled   TriggerKind = "Scheduled"
	TriggerEventDriven TriggerKind = "EventDriven"
	TriggerWebhook     TriggerKind = "Webhook"
	TriggerAPI         TriggerKind = "API"
	TriggerManual      TriggerKind = "Manual"
	TriggerRecurring   TriggerKind = "Recurring"
)

// ParseTriggerKind parses a textual trigger kind.
func ParseTriggerKind(s string) (TriggerKind, error) {
	switch TriggerKind(s) {
	case TriggerScheduled, TriggerEventDriven, TriggerWebhook, TriggerAPI, TriggerManual, TriggerRecurring:
		return TriggerKind(s), nil
	default:
		return "", Validation("invalid_trigger_kind", "invalid trigger kind: %q", s)
	}
}

// AutomationStatus is the lifecycle state of an automation workflow.
type AutomationStatus string

const (
	AutomationDraft    AutomationStatus = "Draft"
	AutomationActive   AutomationStatus = "Active"
	AutomationPaused   AutomationStatus = "Paused"
	AutomationDisabled AutomationStatus = "Disabled"
	AutomationArchived AutomationStatus = "Archived"
	AutomationError    AutomationStatus = "Error"
)

// ActionNode is one step of a workflow action graph.
type ActionNode struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Config     json.RawMessage `json:"config,omitempty"`
	Next       string          `json:"next,omitempty"`
	Suspending bool            `json:"suspending,omitempty"`
}

// ActionGraph is an ordered chain of steps. Entry names the first node.
type ActionGraph struct {
	Entry string       `json:"entry"`
	Nodes []ActionNode `json:"nodes"`
}

// Steps returns the nodes in execution order starting from Entry.
func (g *ActionGraph) Steps() ([]ActionNode, error) {
	byID := make(map[string]ActionNode, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, Validation("graph_node_duplicate", "duplicate action node %q", n.ID)
		}
		byID[n.ID] = n
	}
	var out []ActionNode
	seen := make(map[string]bool, len(g.Nodes))
	for id := g.Entry; id != ""; {
		n, ok := byID[id]
		if !ok {
			return nil, Validation("graph_node_missing", "action node %q not found", id)
		}
		if seen[id] {
			return nil, Validation("graph_cycle", "action graph cycle at node %q", id)
		}
		seen[id] = true
		out = append(out, n)
		id = n.Next
	}
	if len(out) == 0 {
		return nil, Validation("graph_empty", "action graph has no entry node")
	}
	return out, nil
}

// RetryPolicy governs re-admission after failure or timeout.
type RetryPolicy struct {
	MaxRetries     int `json:"max_retries"`
	BackoffSeconds int `json:"backoff_seconds"`
}

// AutomationWorkflow is a trigger-driven chain of actions.
type AutomationWorkflow struct {
	ID                string
	Code              string
	Name              string
	Description       string
	Trigger           TriggerKind
	TriggerConfig     json.RawMessage
	Actions           json.RawMessage
	TimeoutSeconds    int
	MaxConcurrentRuns int
	Priority          int
	Retry             *RetryPolicy
	Status            AutomationStatus
	Version           int
	RunCount          int64
	SuccessCount      int64
	FailureCount      int64
	AvgDurationMillis int64
	Tags              []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CreatedBy         string
}

// EventTriggerConfig is the TriggerConfig schema for EventDriven
// workflows: the bus topics whose deliveries start an execution.
type EventTriggerConfig struct {
	Topics []string `json:"topics"`
}

// EventTopics decodes the subscribed topics of an EventDriven
// workflow. Non-event workflows have none.
func (w *AutomationWorkflow) EventTopics() ([]string, error) {
	if w.Trigger != TriggerEventDriven || len(w.TriggerConfig) == 0 {
		return nil, nil
	}
	var cfg EventTriggerConfig
	if err := json.Unmarshal(w.TriggerConfig, &cfg); err != nil {
		return nil, Validation("trigger_config_invalid", "invalid event trigger config: %v", err)
	}
	return cfg.Topics, nil
}

// Validate checks workflow shape.
func (w *AutomationWorkflow) Validate() error {
	if strings.TrimSpace(w.Code) == "" {
		return Validation("automation_code_required", "workflow code is required")
	}
	if _, err := ParseTriggerKind(string(w.Trigger)); err != nil {
		return err
	}
	if len(w.Actions) == 0 {
		return Validation("automation_actions_required", "workflow actions are required")
	}
	if w.MaxConcurrentRuns < 0 {
		return Validation("automation_concurrency_invalid", "max concurrent runs must not be negative")
	}
	return nil
}

// Graph decodes the serialized action graph.
func (w *AutomationWorkflow) Graph() (*ActionGraph, error) {
	var g ActionGraph
	if err := json.Unmarshal(w.Actions, &g); err != nil {
		return nil, Validation("graph_invalid", "invalid action graph: %v", err)
	}
	return &g, nil
}

// RecordRun folds one finished execution into the workflow counters.
func (w *AutomationWorkflow) RecordRun(succeeded bool, duration time.Duration) {
	total := w.AvgDurationMillis*w.RunCount + duration.Milliseconds()
	w.RunCount++
	if succeeded {
		w.SuccessCount++
	} else {
		w.FailureCount++
	}
	w.AvgDurationMillis = total / w.RunCount
}

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "Pending"
	ExecutionRunning   ExecutionStatus = "Running"
	ExecutionPaused    ExecutionStatus = "Paused"
	ExecutionWaiting   ExecutionStatus = "Waiting"
	ExecutionCompleted ExecutionStatus = "Completed"
	ExecutionFailed    ExecutionStatus = "Failed"
	ExecutionCancelled ExecutionStatus = "Cancelled"
	ExecutionTimeout   ExecutionStatus = "Timeout"
	ExecutionRetrying  ExecutionStatus = "Retrying"
)

// Terminal reports whether an execution status is final.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled, ExecutionTimeout:
		return true
	}
	return false
}

// WorkflowExecution is one run of an automation workflow.
type WorkflowExecution struct {
	ID              string
	Number          string
	WorkflowID      string
	WorkflowCode    string
	TriggerData     json.RawMessage
	Status          ExecutionStatus
	CurrentStep     string
	TotalSteps      int
	CompletedSteps  int
	Checkpoint      json.RawMessage
	ResumeToken     string
	ErrorStep       string
	ErrorMessage    string
	RetryCount      int
	CorrelationID   string
	Priority        int
	CancelRequested bool
	LeaseOwner      string
	LeaseExpiresAt  *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LeasedBy reports whether the lease is currently held by another
// worker than owner.
func (e *WorkflowExecution) LeasedBy(owner string, now time.Time) bool {
	return e.LeaseOwner != "" && e.LeaseOwner != owner &&
		e.LeaseExpiresAt != nil && e.LeaseExpiresAt.After(now)
}

// Progress returns completion percent, 0 when no steps are declared.
func (e *WorkflowExecution) Progress() int {
	if e.TotalSteps <= 0 {
		return 0
	}
	return e.CompletedSteps * 100 / e.TotalSteps
}

// MisfirePolicy governs behavior when a scheduler wakes up late.
type MisfirePolicy string

const (
	MisfireRunImmediately MisfirePolicy = "RunImmediately"
	MisfireSkip           MisfirePolicy = "Skip"
	MisfireRunAll         MisfirePolicy = "RunAll"
)

// ScheduledJob fires a workflow on a cron schedule.
type ScheduledJob struct {
	ID           string
	Name         string
	WorkflowID   string
	CronSpec     string
	Timezone     string
	Misfire      MisfirePolicy
	IsActive     bool
	NextRunAt    *time.Time
	LastRunAt    *time.Time
	RunCount     int64
	FailureCount int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Due reports whether the job should fire at the given instant.
func (j *ScheduledJob) Due(now time.Time) bool {
	return j.IsActive && j.NextRunAt != nil && !j.NextRunAt.After(now)
}

// WebhookRequest is one inbound webhook delivery.
type WebhookRequest struct {
	ID             string
	EndpointID     string
	Method         string
	Headers        map[string]string
	Body           json.RawMessage
	SourceIP       string
	ReceivedAt     time.Time
	ExecutionID    string
	ResponseCode   int
	ProcessingTime time.Duration
}

// WebhookEndpoint binds an inbound path to a workflow.
type WebhookEndpoint struct {
	ID         string
	Path       string
	WorkflowID string
	Secret     string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
