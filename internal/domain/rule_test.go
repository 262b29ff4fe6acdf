package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestRule_Validate(t *testing.T) {
	cond := json.RawMessage(`{"kind":"const","value":true}`)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		rule     Rule
		wantCode string
	}{
		{
			name: "valid rule",
			rule: Rule{Code: "R-1", Type: RuleValidation, Condition: cond},
		},
		{
			name:     "missing code",
			rule:     Rule{Type: RuleValidation, Condition: cond},
			wantCode: "rule_code_required",
		},
		{
			name:     "missing condition",
			rule:     Rule{Code: "R-1", Type: RuleValidation},
			wantCode: "rule_condition_required",
		},
		{
			name:     "window ends before it starts",
			rule:     Rule{Code: "R-1", Type: RuleValidation, Condition: cond, EffectiveFrom: timePtr(from), EffectiveTo: timePtr(to)},
			wantCode: "rule_window_invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if got := ErrorCode(err); got != tt.wantCode {
				t.Errorf("Validate() code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestRule_EffectiveAt(t *testing.T) {
	at := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	before := at.Add(-24 * time.Hour)
	after := at.Add(24 * time.Hour)

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{name: "active and open window", rule: Rule{Status: RuleActive}, want: true},
		{name: "inside window", rule: Rule{Status: RuleActive, EffectiveFrom: timePtr(before), EffectiveTo: timePtr(after)}, want: true},
		{name: "before window opens", rule: Rule{Status: RuleActive, EffectiveFrom: timePtr(after)}, want: false},
		{name: "after window closes", rule: Rule{Status: RuleActive, EffectiveTo: timePtr(before)}, want: false},
		{name: "inactive", rule: Rule{Status: RuleInactive}, want: false},
		{name: "draft", rule: Rule{Status: RuleDraftSt}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.EffectiveAt(at); got != tt.want {
				t.Errorf("EffectiveAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRule_Required(t *testing.T) {
	if !(&Rule{Type: RuleValidation}).Required() {
		t.Error("validation rules must be required")
	}
	if (&Rule{Type: RuleDerivation}).Required() {
		t.Error("derivation rules must not be required")
	}
}

// The rule entity and the BusinessRule error constructor share the package;
// a rule violation raised against a rule must still carry the right kind.
func TestRule_ViolationErrorKind(t *testing.T) {
	err := BusinessRule("rule_conflict", "rule %s conflicts", "R-1")
	if KindOf(err) != KindBusinessRule {
		t.Fatalf("KindOf = %v, want KindBusinessRule", KindOf(err))
	}
	var de *Error
	if !errors.As(err, &de) {
		t.Fatal("expected *Error")
	}
	if de.Code != "rule_conflict" {
		t.Errorf("Code = %q", de.Code)
	}
}
