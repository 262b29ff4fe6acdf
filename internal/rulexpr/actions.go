package rulexpr

import (
	"encoding/json"
	"fmt"
)

// Action is one effect of a matched rule. Exactly one of Set/Fail/Emit
// is populated:
//
//	{"set": "path", "value": <expr>}            write a context field
//	{"fail": "<code>", "message": "<text>"}     reject the entity
//	{"emit": "<topic>", "payload": {k: expr}}   raise a named signal
type Action struct {
	Set     string           `json:"set,omitempty"`
	Value   *Expr            `json:"value,omitempty"`
	Fail    string           `json:"fail,omitempty"`
	Message string           `json:"message,omitempty"`
	Emit    string           `json:"emit,omitempty"`
	Payload map[string]*Expr `json:"payload,omitempty"`
}

// Validate checks that the action has exactly one effect.
func (a *Action) Validate() error {
	n := 0
	if a.Set != "" {
		n++
		if a.Value == nil {
			return fmt.Errorf("rulexpr: set action %q has no value", a.Set)
		}
	}
	if a.Fail != "" {
		n++
	}
	if a.Emit != "" {
		n++
	}
	if n != 1 {
		return fmt.Errorf("rulexpr: action must have exactly one of set/fail/emit")
	}
	return nil
}

// ParseActions decodes a serialized action list.
func ParseActions(data []byte) ([]Action, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var list []Action
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("rulexpr: bad action list: %w", err)
	}
	for i := range list {
		if err := list[i].Validate(); err != nil {
			return nil, fmt.Errorf("rulexpr: action %d: %w", i, err)
		}
	}
	return list, nil
}

// Effect is the observable outcome of one executed action.
type Effect struct {
	Set     string         `json:"set,omitempty"`
	Value   any            `json:"value,omitempty"`
	Emitted string         `json:"emitted,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// FailError is the outcome of a fail action. The rule engine maps it to
// a business-rule rejection.
type FailError struct {
	Code    string
	Message string
}

func (e *FailError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// Apply executes actions in order against the environment. Set effects
// are visible to subsequent actions and, through the shared env, to
// subsequent rules in a sequential set. A fail action stops execution.
func Apply(actions []Action, env *Env) ([]Effect, error) {
	var effects []Effect
	for _, a := range actions {
		switch {
		case a.Fail != "":
			return effects, &FailError{Code: a.Fail, Message: a.Message}
		case a.Set != "":
			v, err := Eval(a.Value, env)
			if err != nil {
				return effects, err
			}
			env.Set(a.Set, v)
			effects = append(effects, Effect{Set: a.Set, Value: v})
		case a.Emit != "":
			payload := make(map[string]any, len(a.Payload))
			for k, expr := range a.Payload {
				v, err := Eval(expr, env)
				if err != nil {
					return effects, err
				}
				payload[k] = v
			}
			effects = append(effects, Effect{Emitted: a.Emit, Payload: payload})
		}
	}
	return effects, nil
}
