package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// HitPolicy decides which matching rows contribute to the lookup result.
type HitPolicy string

const (
	HitFirst    HitPolicy = "First"
	HitPriority HitPolicy = "Priority"
	HitAll      HitPolicy = "All"
	HitAny      HitPolicy = "Any"
	HitUnique   HitPolicy = "Unique"
	HitCollect  HitPolicy = "Collect"
)

// ParseHitPolicy parses a textual hit policy.
func ParseHitPolicy(s string) (HitPolicy, error) {
	switch HitPolicy(s) {
	case HitFirst, HitPriority, HitAll, HitAny, HitUnique, HitCollect:
		return HitPolicy(s), nil
	default:
		return "", Validation("invalid_hit_policy", "invalid hit policy: %q", s)
	}
}

// DecisionColumn declares one input or output column of a table.
type DecisionColumn struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

// DecisionTableRow holds per-column match expressions and output
// expressions, both JSON-encoded and keyed by column name.
type DecisionTableRow struct {
	ID       string
	TableID  string
	Ordinal  int
	Priority int
	Active   bool
	Inputs   json.RawMessage
	Outputs  json.RawMessage
}

// DecisionTable maps input tuples to output tuples through ordered rows.
type DecisionTable struct {
	ID          string
	Code        string
	Name        string
	Description string
	InputCols   []DecisionColumn
	OutputCols  []DecisionColumn
	HitPolicy   HitPolicy
	Rows        []DecisionTableRow
	Status      RuleStatus
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks table shape.
func (t *DecisionTable) Validate() error {
	if strings.TrimSpace(t.Code) == "" {
		return Validation("table_code_required", "decision table code is required")
	}
	if len(t.InputCols) == 0 {
		return Validation("table_inputs_required", "at least one input column is required")
	}
	if len(t.OutputCols) == 0 {
		return Validation("table_outputs_required", "at least one output column is required")
	}
	if _, err := ParseHitPolicy(string(t.HitPolicy)); err != nil {
		return err
	}
	names := make(map[string]bool, len(t.InputCols)+len(t.OutputCols))
	for _, c := range t.InputCols {
		if names[c.Name] {
			return Validation("table_column_duplicate", "duplicate column %q", c.Name)
		}
		names[c.Name] = true
	}
	for _, c := range t.OutputCols {
		if names[c.Name] {
			return Validation("table_column_duplicate", "duplicate column %q", c.Name)
		}
		names[c.Name] = true
	}
	return nil
}
