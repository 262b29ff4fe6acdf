package dto

import (
	"encoding/json"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// CreateAutomationRequest represents a request to create an automation workflow.
type CreateAutomationRequest struct {
	Code              string              `json:"code"`
	Name              string              `json:"name"`
	Description       string              `json:"description,omitempty"`
	Trigger           string              `json:"trigger"`
	TriggerConfig     json.RawMessage     `json:"trigger_config,omitempty"`
	Actions           json.RawMessage     `json:"actions"`
	TimeoutSeconds    int                 `json:"timeout_seconds,omitempty"`
	MaxConcurrentRuns int                 `json:"max_concurrent_runs,omitempty"`
	Priority          int                 `json:"priority,omitempty"`
	Retry             *domain.RetryPolicy `json:"retry,omitempty"`
	Tags              []string            `json:"tags,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAutomationRequest) ToUseCaseInput(actor usecase.Actor) usecase.CreateWorkflowInput {
	return usecase.CreateWorkflowInput{
		Code:              r.Code,
		Name:              r.Name,
		Description:       r.Description,
		Trigger:           domain.TriggerKind(r.Trigger),
		TriggerConfig:     r.TriggerConfig,
		Actions:           r.Actions,
		TimeoutSeconds:    r.TimeoutSeconds,
		MaxConcurrentRuns: r.MaxConcurrentRuns,
		Priority:          r.Priority,
		Retry:             r.Retry,
		Tags:              r.Tags,
		Actor:             actor,
	}
}

// SetAutomationStatusRequest changes a workflow's lifecycle status.
type SetAutomationStatusRequest struct {
	Status string `json:"status"`
}

// TriggerRequest fires a workflow manually or from an event.
type TriggerRequest struct {
	WorkflowCode  string          `json:"workflow_code"`
	TriggerData   json.RawMessage `json:"trigger_data,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *TriggerRequest) ToUseCaseInput(actor usecase.Actor) usecase.TriggerInput {
	return usecase.TriggerInput{
		WorkflowCode:  r.WorkflowCode,
		TriggerData:   r.TriggerData,
		CorrelationID: r.CorrelationID,
		Actor:         actor,
	}
}

// ResumeRequest resumes a waiting execution.
type ResumeRequest struct {
	Token  string          `json:"token"`
	Signal json.RawMessage `json:"signal,omitempty"`
}

// CreateJobRequest represents a request to schedule a recurring job.
type CreateJobRequest struct {
	Name       string `json:"name"`
	WorkflowID string `json:"workflow_id"`
	CronSpec   string `json:"cron_spec"`
	Timezone   string `json:"timezone,omitempty"`
	Misfire    string `json:"misfire,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateJobRequest) ToUseCaseInput() usecase.CreateJobInput {
	return usecase.CreateJobInput{
		Name:       r.Name,
		WorkflowID: r.WorkflowID,
		CronSpec:   r.CronSpec,
		Timezone:   r.Timezone,
		Misfire:    domain.MisfirePolicy(r.Misfire),
	}
}

// AutomationResponse represents an automation workflow.
type AutomationResponse struct {
	ID                string              `json:"id"`
	Code              string              `json:"code"`
	Name              string              `json:"name"`
	Description       string              `json:"description,omitempty"`
	Trigger           string              `json:"trigger"`
	TriggerConfig     json.RawMessage     `json:"trigger_config,omitempty"`
	Actions           json.RawMessage     `json:"actions"`
	TimeoutSeconds    int                 `json:"timeout_seconds"`
	MaxConcurrentRuns int                 `json:"max_concurrent_runs"`
	Priority          int                 `json:"priority"`
	Retry             *domain.RetryPolicy `json:"retry,omitempty"`
	Status            string              `json:"status"`
	Version           int                 `json:"version"`
	RunCount          int64               `json:"run_count"`
	SuccessCount      int64               `json:"success_count"`
	FailureCount      int64               `json:"failure_count"`
	AvgDurationMillis int64               `json:"avg_duration_millis"`
	Tags              []string            `json:"tags,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// AutomationFromDomain converts a domain workflow to a response.
func AutomationFromDomain(wf *domain.AutomationWorkflow) AutomationResponse {
	return AutomationResponse{
		ID:                wf.ID,
		Code:              wf.Code,
		Name:              wf.Name,
		Description:       wf.Description,
		Trigger:           string(wf.Trigger),
		TriggerConfig:     wf.TriggerConfig,
		Actions:           wf.Actions,
		TimeoutSeconds:    wf.TimeoutSeconds,
		MaxConcurrentRuns: wf.MaxConcurrentRuns,
		Priority:          wf.Priority,
		Retry:             wf.Retry,
		Status:            string(wf.Status),
		Version:           wf.Version,
		RunCount:          wf.RunCount,
		SuccessCount:      wf.SuccessCount,
		FailureCount:      wf.FailureCount,
		AvgDurationMillis: wf.AvgDurationMillis,
		Tags:              wf.Tags,
		CreatedAt:         wf.CreatedAt,
		UpdatedAt:         wf.UpdatedAt,
	}
}

// ExecutionResponse represents one workflow execution.
type ExecutionResponse struct {
	ID             string     `json:"id"`
	Number         string     `json:"number"`
	WorkflowID     string     `json:"workflow_id"`
	WorkflowCode   string     `json:"workflow_code"`
	Status         string     `json:"status"`
	CurrentStep    string     `json:"current_step,omitempty"`
	TotalSteps     int        `json:"total_steps"`
	CompletedSteps int        `json:"completed_steps"`
	ErrorStep      string     `json:"error_step,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RetryCount     int        `json:"retry_count"`
	CorrelationID  string     `json:"correlation_id,omitempty"`
	Priority       int        `json:"priority"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ExecutionFromDomain converts a domain execution to a response. The
// checkpoint and resume token stay server-side.
func ExecutionFromDomain(exec *domain.WorkflowExecution) ExecutionResponse {
	return ExecutionResponse{
		ID:             exec.ID,
		Number:         exec.Number,
		WorkflowID:     exec.WorkflowID,
		WorkflowCode:   exec.WorkflowCode,
		Status:         string(exec.Status),
		CurrentStep:    exec.CurrentStep,
		TotalSteps:     exec.TotalSteps,
		CompletedSteps: exec.CompletedSteps,
		ErrorStep:      exec.ErrorStep,
		ErrorMessage:   exec.ErrorMessage,
		RetryCount:     exec.RetryCount,
		CorrelationID:  exec.CorrelationID,
		Priority:       exec.Priority,
		StartedAt:      exec.StartedAt,
		CompletedAt:    exec.CompletedAt,
		CreatedAt:      exec.CreatedAt,
		UpdatedAt:      exec.UpdatedAt,
	}
}

// JobResponse represents a scheduled job.
type JobResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	WorkflowID   string     `json:"workflow_id"`
	CronSpec     string     `json:"cron_spec"`
	Timezone     string     `json:"timezone,omitempty"`
	Misfire      string     `json:"misfire"`
	IsActive     bool       `json:"is_active"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	RunCount     int64      `json:"run_count"`
	FailureCount int64      `json:"failure_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

// JobFromDomain converts a domain scheduled job to a response.
func JobFromDomain(job *domain.ScheduledJob) JobResponse {
	return JobResponse{
		ID:           job.ID,
		Name:         job.Name,
		WorkflowID:   job.WorkflowID,
		CronSpec:     job.CronSpec,
		Timezone:     job.Timezone,
		Misfire:      string(job.Misfire),
		IsActive:     job.IsActive,
		NextRunAt:    job.NextRunAt,
		LastRunAt:    job.LastRunAt,
		RunCount:     job.RunCount,
		FailureCount: job.FailureCount,
		CreatedAt:    job.CreatedAt,
	}
}

// WebhookAccepted is the body returned to a webhook caller.
type WebhookAccepted struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}
