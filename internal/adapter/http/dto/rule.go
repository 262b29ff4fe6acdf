package dto

import (
	"encoding/json"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

// CreateRuleRequest represents a request to create a business rule.
type CreateRuleRequest struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	EntityKind    string          `json:"entity_kind"`
	Type          string          `json:"type"`
	Priority      int             `json:"priority,omitempty"`
	EffectiveFrom *time.Time      `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
	Condition     json.RawMessage `json:"condition"`
	Actions       json.RawMessage `json:"actions,omitempty"`
	ElseActions   json.RawMessage `json:"else_actions,omitempty"`
}

// ToDomain converts the request to a domain rule.
func (r *CreateRuleRequest) ToDomain() *domain.Rule {
	return &domain.Rule{
		Code:          r.Code,
		Name:          r.Name,
		Description:   r.Description,
		EntityKind:    r.EntityKind,
		Type:          domain.RuleType(r.Type),
		Priority:      r.Priority,
		EffectiveFrom: r.EffectiveFrom,
		EffectiveTo:   r.EffectiveTo,
		Condition:     r.Condition,
		Actions:       r.Actions,
		ElseActions:   r.ElseActions,
	}
}

// CreateFunctionRequest represents a request to register a rule function.
type CreateFunctionRequest struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	Params      []domain.RuleFunctionParam `json:"params,omitempty"`
	Body        json.RawMessage            `json:"body"`
}

// ToDomain converts the request to a domain function.
func (r *CreateFunctionRequest) ToDomain() *domain.RuleFunction {
	return &domain.RuleFunction{
		Name:        r.Name,
		Description: r.Description,
		Params:      r.Params,
		Body:        r.Body,
	}
}

// EvaluateRequest carries the entity snapshot a rule or set is evaluated against.
type EvaluateRequest struct {
	EntityID string         `json:"entity_id"`
	Entity   map[string]any `json:"entity"`
}

// EvaluateForEntityRequest evaluates every active set bound to an entity kind.
type EvaluateForEntityRequest struct {
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Entity     map[string]any `json:"entity"`
}

// DecisionRowRequest is one row of a decision table. Rows default to
// active; an explicitly inactive row is kept but never matched.
type DecisionRowRequest struct {
	Ordinal  int             `json:"ordinal"`
	Priority int             `json:"priority,omitempty"`
	Active   *bool           `json:"active,omitempty"`
	Inputs   json.RawMessage `json:"inputs"`
	Outputs  json.RawMessage `json:"outputs"`
}

// CreateTableRequest represents a request to create a decision table.
type CreateTableRequest struct {
	Code        string                  `json:"code"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	InputCols   []domain.DecisionColumn `json:"input_cols"`
	OutputCols  []domain.DecisionColumn `json:"output_cols"`
	HitPolicy   string                  `json:"hit_policy"`
	Rows        []DecisionRowRequest    `json:"rows"`
}

// ToDomain converts the request to a domain decision table.
func (r *CreateTableRequest) ToDomain() *domain.DecisionTable {
	rows := make([]domain.DecisionTableRow, len(r.Rows))
	for i, row := range r.Rows {
		active := row.Active == nil || *row.Active
		rows[i] = domain.DecisionTableRow{
			Ordinal:  row.Ordinal,
			Priority: row.Priority,
			Active:   active,
			Inputs:   row.Inputs,
			Outputs:  row.Outputs,
		}
	}
	return &domain.DecisionTable{
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		InputCols:   r.InputCols,
		OutputCols:  r.OutputCols,
		HitPolicy:   domain.HitPolicy(r.HitPolicy),
		Rows:        rows,
	}
}

// LookupRequest carries decision table lookup inputs.
type LookupRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// RuleResponse represents a business rule.
type RuleResponse struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	EntityKind    string          `json:"entity_kind"`
	Type          string          `json:"type"`
	Priority      int             `json:"priority"`
	EffectiveFrom *time.Time      `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
	Condition     json.RawMessage `json:"condition"`
	Actions       json.RawMessage `json:"actions,omitempty"`
	ElseActions   json.RawMessage `json:"else_actions,omitempty"`
	Status        string          `json:"status"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RuleFromDomain converts a domain rule to a response.
func RuleFromDomain(rule *domain.Rule) RuleResponse {
	return RuleResponse{
		ID:            rule.ID,
		Code:          rule.Code,
		Name:          rule.Name,
		Description:   rule.Description,
		EntityKind:    rule.EntityKind,
		Type:          string(rule.Type),
		Priority:      rule.Priority,
		EffectiveFrom: rule.EffectiveFrom,
		EffectiveTo:   rule.EffectiveTo,
		Condition:     rule.Condition,
		Actions:       rule.Actions,
		ElseActions:   rule.ElseActions,
		Status:        string(rule.Status),
		Version:       rule.Version,
		CreatedAt:     rule.CreatedAt,
		UpdatedAt:     rule.UpdatedAt,
	}
}

// EffectResponse is one effect produced by a matched rule.
type EffectResponse struct {
	Set     string         `json:"set,omitempty"`
	Value   any            `json:"value,omitempty"`
	Emitted string         `json:"emitted,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// EvaluationResponse represents the outcome of evaluating one rule.
type EvaluationResponse struct {
	RuleID         string           `json:"rule_id"`
	RuleCode       string           `json:"rule_code"`
	Matched        bool             `json:"matched"`
	Effects        []EffectResponse `json:"effects,omitempty"`
	Error          string           `json:"error,omitempty"`
	DurationMicros int64            `json:"duration_micros"`
}

// EvaluationFromUseCase converts an execution result to a response.
func EvaluationFromUseCase(res *usecase.ExecutionResult) EvaluationResponse {
	effects := make([]EffectResponse, len(res.Effects))
	for i, e := range res.Effects {
		effects[i] = EffectResponse{
			Set:     e.Set,
			Value:   e.Value,
			Emitted: e.Emitted,
			Payload: e.Payload,
		}
	}
	resp := EvaluationResponse{
		RuleID:         res.RuleID,
		RuleCode:       res.RuleCode,
		Matched:        res.Matched,
		Effects:        effects,
		DurationMicros: res.Duration.Microseconds(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

// SetEvaluationResponse represents the outcome of evaluating a rule set.
type SetEvaluationResponse struct {
	Results []EvaluationResponse `json:"results"`
	Halted  string               `json:"halted,omitempty"`
}

// SetEvaluationFromUseCase converts a set result to a response.
func SetEvaluationFromUseCase(res *usecase.SetResult) SetEvaluationResponse {
	results := make([]EvaluationResponse, len(res.Results))
	for i, r := range res.Results {
		results[i] = EvaluationFromUseCase(r)
	}
	resp := SetEvaluationResponse{Results: results}
	if res.Halted != nil {
		resp.Halted = res.Halted.Error()
	}
	return resp
}

// DecisionTableResponse represents a decision table.
type DecisionTableResponse struct {
	ID          string                  `json:"id"`
	Code        string                  `json:"code"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	InputCols   []domain.DecisionColumn `json:"input_cols"`
	OutputCols  []domain.DecisionColumn `json:"output_cols"`
	HitPolicy   string                  `json:"hit_policy"`
	Rows        int                     `json:"rows"`
	Status      string                  `json:"status"`
	Version     int                     `json:"version"`
	CreatedAt   time.Time               `json:"created_at"`
}

// TableFromDomain converts a domain decision table to a response.
func TableFromDomain(t *domain.DecisionTable) DecisionTableResponse {
	return DecisionTableResponse{
		ID:          t.ID,
		Code:        t.Code,
		Name:        t.Name,
		Description: t.Description,
		InputCols:   t.InputCols,
		OutputCols:  t.OutputCols,
		HitPolicy:   string(t.HitPolicy),
		Rows:        len(t.Rows),
		Status:      string(t.Status),
		Version:     t.Version,
		CreatedAt:   t.CreatedAt,
	}
}

// RuleFunctionResponse represents a registered rule function.
type RuleFunctionResponse struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	Params      []domain.RuleFunctionParam `json:"params,omitempty"`
	Body        json.RawMessage            `json:"body"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// FunctionFromDomain converts a domain rule function to a response.
func FunctionFromDomain(fn *domain.RuleFunction) RuleFunctionResponse {
	return RuleFunctionResponse{
		ID:          fn.ID,
		Name:        fn.Name,
		Description: fn.Description,
		Params:      fn.Params,
		Body:        fn.Body,
		CreatedAt:   fn.CreatedAt,
	}
}

// RuleExecutionResponse represents one logged rule execution.
type RuleExecutionResponse struct {
	ID             string    `json:"id"`
	RuleID         string    `json:"rule_id"`
	RuleCode       string    `json:"rule_code"`
	EntityKind     string    `json:"entity_kind,omitempty"`
	EntityID       string    `json:"entity_id,omitempty"`
	Matched        bool      `json:"matched"`
	Error          string    `json:"error,omitempty"`
	DurationMicros int64     `json:"duration_micros"`
	ExecutedAt     time.Time `json:"executed_at"`
}

// RuleExecutionFromDomain converts a domain execution log row to a response.
func RuleExecutionFromDomain(ex *domain.RuleExecution) RuleExecutionResponse {
	return RuleExecutionResponse{
		ID:             ex.ID,
		RuleID:         ex.RuleID,
		RuleCode:       ex.RuleCode,
		EntityKind:     ex.EntityKind,
		EntityID:       ex.EntityID,
		Matched:        ex.Matched,
		Error:          ex.Error,
		DurationMicros: ex.Duration.Microseconds(),
		ExecutedAt:     ex.ExecutedAt,
	}
}
