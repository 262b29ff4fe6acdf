// Package rulexpr defines the serialized expression language used by
// business rules and decision tables.
//
// Expressions are JSON trees. Each node is one of:
//
//	{"lit": <json value>}                       literal
//	{"var": "path.to.field"}                    context lookup
//	{"op": "<name>", "args": [<expr>, ...]}     builtin operator
//	{"call": "<name>", "args": [<expr>, ...]}   user-defined function
//
// Scalars decode as shorthand literals, so `5`, `"x"` and `true` are
// valid expressions. Bare strings are literals, not lookups; field
// access is always explicit through "var".
package rulexpr

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates expression nodes.
type Kind int

const (
	KindLit Kind = iota
	KindVar
	KindOp
	KindCall
)

// Expr is one node of an expression tree.
type Expr struct {
	Kind Kind
	Lit  any
	Var  string
	Name string
	Args []*Expr
}

type rawNode struct {
	Op   string            `json:"op"`
	Call string            `json:"call"`
	Args []json.RawMessage `json:"args"`
}

// UnmarshalJSON decodes a node, accepting scalar shorthand.
func (e *Expr) UnmarshalJSON(data []byte) error {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	obj, isObj := probe.(map[string]any)
	if !isObj {
		e.Kind = KindLit
		e.Lit = probe
		return nil
	}

	if lit, ok := obj["lit"]; ok {
		e.Kind = KindLit
		e.Lit = lit
		return nil
	}
	if v, ok := obj["var"]; ok {
		s, isStr := v.(string)
		if !isStr || s == "" {
			return fmt.Errorf("rulexpr: var reference must be a non-empty string")
		}
		e.Kind = KindVar
		e.Var = s
		return nil
	}

	var node rawNode
	if err := json.Unmarshal(data, &node); err != nil {
		return err
	}
	switch {
	case node.Op != "":
		e.Kind = KindOp
		e.Name = node.Op
	case node.Call != "":
		e.Kind = KindCall
		e.Name = node.Call
	default:
		return fmt.Errorf("rulexpr: node has none of lit/var/op/call")
	}

	e.Args = make([]*Expr, len(node.Args))
	for i, raw := range node.Args {
		arg := new(Expr)
		if err := json.Unmarshal(raw, arg); err != nil {
			return fmt.Errorf("rulexpr: arg %d of %q: %w", i, e.Name, err)
		}
		e.Args[i] = arg
	}
	return nil
}

// Parse decodes a serialized expression tree.
func Parse(data []byte) (*Expr, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("rulexpr: empty expression")
	}
	var e Expr
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ParseList decodes a JSON array of expressions; a single object decodes
// as a one-element list.
func ParseList(data []byte) ([]*Expr, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var list []*Expr
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	e, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return []*Expr{e}, nil
}
