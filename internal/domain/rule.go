package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// RuleType classifies what a business rule is for.
type RuleType string

const (
	RuleValidation  RuleType = "Validation"
	RuleDerivation  RuleType = "Derivation"
	RuleEligibility RuleType = "Eligibility"
	RulePricing     RuleType = "Pricing"
	RuleRouting     RuleType = "Routing"
)

// ParseRuleType parses a textual rule type.
func ParseRuleType(s string) (RuleType, error) {
	switch RuleType(s) {
	case RuleValidation, RuleDerivation, RuleEligibility, RulePricing, RuleRouting:
		return RuleType(s), nil
	default:
		return "", Validation("invalid_rule_type", "invalid rule type: %q", s)
	}
}

// RuleStatus is the lifecycle state of a business rule.
type RuleStatus string

const (
	RuleActive   RuleStatus = "Active"
	RuleInactive RuleStatus = "Inactive"
	RuleDraftSt  RuleStatus = "Draft"
)

// Rule is a serialized condition with actions to fire on match.
// Condition, Actions and ElseActions hold expression trees encoded as
// JSON; they are parsed on evaluation.
type Rule struct {
	ID            string
	Code          string
	Name          string
	Description   string
	EntityKind    string
	Type          RuleType
	Priority      int
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	Condition     json.RawMessage
	Actions       json.RawMessage
	ElseActions   json.RawMessage
	Status        RuleStatus
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CreatedBy     string
}

// Validate checks rule shape.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return Validation("rule_code_required", "rule code is required")
	}
	if _, err := ParseRuleType(string(r.Type)); err != nil {
		return err
	}
	if len(r.Condition) == 0 {
		return Validation("rule_condition_required", "rule condition is required")
	}
	if r.EffectiveFrom != nil && r.EffectiveTo != nil && r.EffectiveTo.Before(*r.EffectiveFrom) {
		return Validation("rule_window_invalid", "effective window end precedes start")
	}
	return nil
}

// EffectiveAt reports whether a rule is active and inside its window.
func (r *Rule) EffectiveAt(at time.Time) bool {
	if r.Status != RuleActive {
		return false
	}
	if r.EffectiveFrom != nil && at.Before(*r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && at.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// Required reports whether a failing action halts a sequential set.
// Validation rules are implicitly required.
func (r *Rule) Required() bool {
	return r.Type == RuleValidation
}

// ExecutionMode is how a rule set runs its members.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "Sequential"
	ModeParallel   ExecutionMode = "Parallel"
	ModeFirstMatch ExecutionMode = "FirstMatch"
)

// RuleSet is an ordered collection of rules evaluated together.
type RuleSet struct {
	ID          string
	Code        string
	Name        string
	Description string
	Mode        ExecutionMode
	RuleIDs     []string
	Status      RuleStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RuleExecution is the persisted record of one evaluation.
type RuleExecution struct {
	ID              string
	RuleID          string
	RuleCode        string
	EntityKind      string
	EntityID        string
	Conditions      json.RawMessage
	Matched         bool
	ExecutedActions json.RawMessage
	Result          json.RawMessage
	Error           string
	Duration        time.Duration
	ExecutedAt      time.Time
}

// RuleVariable is a named reusable expression fragment.
type RuleVariable struct {
	ID          string
	Name        string
	Description string
	Expression  json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RuleFunctionParam is one typed parameter of a user function.
type RuleFunctionParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RuleFunction is a user-defined function declared in the expression
// language itself.
type RuleFunction struct {
	ID          string
	Name        string
	Description string
	Params      []RuleFunctionParam
	Body        json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks function shape.
func (f *RuleFunction) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return Validation("function_name_required", "function name is required")
	}
	seen := make(map[string]bool, len(f.Params))
	for _, p := range f.Params {
		if p.Name == "" {
			return Validation("function_param_name_required", "function parameter name is required")
		}
		if seen[p.Name] {
			return Validation("function_param_duplicate", "duplicate function parameter %q", p.Name)
		}
		seen[p.Name] = true
	}
	if len(f.Body) == 0 {
		return Validation("function_body_required", "function body is required")
	}
	return nil
}
