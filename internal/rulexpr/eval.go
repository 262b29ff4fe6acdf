package rulexpr

import (
	"fmt"
	"strings"
)

// Function is a user-defined function: typed parameters with a body in
// the expression language.
type Function struct {
	Name   string
	Params []string
	Body   *Expr
}

// Env is one evaluation scope: the entity under evaluation, named
// variables, and user functions. Lookups fall through to the parent.
type Env struct {
	parent *Env
	fields map[string]any
	funcs  map[string]*Function
}

// NewEnv builds a root scope over an entity's fields.
func NewEnv(fields map[string]any) *Env {
	return &Env{fields: fields, funcs: map[string]*Function{}}
}

// WithVars layers named variables over the environment.
func (e *Env) WithVars(vars map[string]any) *Env {
	return &Env{parent: e, fields: vars, funcs: map[string]*Function{}}
}

// Define registers a user function.
func (e *Env) Define(f *Function) { e.funcs[f.Name] = f }

// Set writes a field in the nearest scope that holds it, or the root.
// Action effects on a shared context go through here so later rules in
// a sequential set observe them.
func (e *Env) Set(path string, v any) {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.fields[path]; ok {
			s.fields[path] = v
			return
		}
		if s.parent == nil {
			s.fields[path] = v
			return
		}
	}
}

func (e *Env) lookup(path string) (any, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := resolvePath(s.fields, path); ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Env) function(name string) (*Function, bool) {
	for s := e; s != nil; s = s.parent {
		if f, ok := s.funcs[name]; ok {
			return f, true
		}
	}
	return nil, false
}

// resolvePath walks dotted segments through nested maps.
func resolvePath(fields map[string]any, path string) (any, bool) {
	if v, ok := fields[path]; ok {
		return v, true
	}
	cur := any(fields)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Eval evaluates an expression against an environment.
func Eval(e *Expr, env *Env) (any, error) {
	switch e.Kind {
	case KindLit:
		return e.Lit, nil
	case KindVar:
		v, ok := env.lookup(e.Var)
		if !ok {
			return nil, fmt.Errorf("rulexpr: unknown variable %q", e.Var)
		}
		return v, nil
	case KindOp:
		return evalOp(e, env)
	case KindCall:
		return evalCall(e, env)
	default:
		return nil, fmt.Errorf("rulexpr: unknown node kind %d", e.Kind)
	}
}

// EvalBool evaluates an expression and coerces the result to a
// predicate outcome. Non-boolean results are an error, not truthiness.
func EvalBool(e *Expr, env *Env) (bool, error) {
	v, err := Eval(e, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("rulexpr: condition yielded %T, want bool", v)
	}
	return b, nil
}

func evalCall(e *Expr, env *Env) (any, error) {
	f, ok := env.function(e.Name)
	if !ok {
		return nil, fmt.Errorf("rulexpr: unknown function %q", e.Name)
	}
	if len(e.Args) != len(f.Params) {
		return nil, fmt.Errorf("rulexpr: %s expects %d args, got %d", f.Name, len(f.Params), len(e.Args))
	}
	scope := make(map[string]any, len(f.Params))
	for i, p := range f.Params {
		v, err := Eval(e.Args[i], env)
		if err != nil {
			return nil, err
		}
		scope[p] = v
	}
	return Eval(f.Body, env.WithVars(scope))
}

func evalArgs(e *Expr, env *Env) ([]any, error) {
	out := make([]any, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(a, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
