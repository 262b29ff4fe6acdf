package rulexpr

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Builtin operator names.
const (
	OpEq         = "eq"
	OpNe         = "ne"
	OpLt         = "lt"
	OpLe         = "le"
	OpGt         = "gt"
	OpGe         = "ge"
	OpIn         = "in"
	OpNotIn      = "not_in"
	OpMatches    = "matches"
	OpAnd        = "and"
	OpOr         = "or"
	OpNot        = "not"
	OpAdd        = "add"
	OpSub        = "sub"
	OpMul        = "mul"
	OpDiv        = "div"
	OpMod        = "mod"
	OpNeg        = "neg"
	OpConcat     = "concat"
	OpLower      = "lower"
	OpUpper      = "upper"
	OpTrim       = "trim"
	OpContains   = "contains"
	OpStartsWith = "starts_with"
	OpEndsWith   = "ends_with"
	OpLen        = "len"
	OpDate       = "date"
	OpDateAdd    = "date_add"
	OpDateDiff   = "date_diff"
	OpIf         = "if"
	OpCoalesce   = "coalesce"
)

func evalOp(e *Expr, env *Env) (any, error) {
	switch e.Name {
	case OpAnd:
		for _, a := range e.Args {
			b, err := EvalBool(a, env)
			if err != nil {
				return nil, err
			}
			if !b {
				return false, nil
			}
		}
		return true, nil
	case OpOr:
		for _, a := range e.Args {
			b, err := EvalBool(a, env)
			if err != nil {
				return nil, err
			}
			if b {
				return true, nil
			}
		}
		return false, nil
	case OpNot:
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		b, err := EvalBool(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case OpIf:
		if err := arity(e, 3); err != nil {
			return nil, err
		}
		cond, err := EvalBool(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		if cond {
			return Eval(e.Args[1], env)
		}
		return Eval(e.Args[2], env)
	case OpCoalesce:
		for _, a := range e.Args {
			v, err := Eval(a, env)
			if err != nil {
				return nil, err
			}
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	}

	args, err := evalArgs(e, env)
	if err != nil {
		return nil, err
	}

	switch e.Name {
	case OpEq:
		if err := arityN(e, len(args), 2); err != nil {
			return nil, err
		}
		return valuesEqual(args[0], args[1]), nil
	case OpNe:
		if err := arityN(e, len(args), 2); err != nil {
			return nil, err
		}
		return !valuesEqual(args[0], args[1]), nil
	case OpLt, OpLe, OpGt, OpGe:
		if err := arityN(e, len(args), 2); err != nil {
			return nil, err
		}
		c, err := compareValues(args[0], args[1])
		if err != nil {
			return nil, err
		}
		switch e.Name {
		case OpLt:
			return c < 0, nil
		case OpLe:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case OpIn, OpNotIn:
		if err := arityN(e, len(args), 2); err != nil {
			return nil, err
		}
		list, ok := args[1].([]any)
		if !ok {
			return nil, fmt.Errorf("rulexpr: %s wants a list, got %T", e.Name, args[1])
		}
		found := false
		for _, item := range list {
			if valuesEqual(args[0], item) {
				found = true
				break
			}
		}
		if e.Name == OpNotIn {
			return !found, nil
		}
		return found, nil
	case OpMatches:
		if err := arityN(e, len(args), 2); err != nil {
			return nil, err
		}
		s, err := asString(args[0])
		if err != nil {
			return nil, err
		}
		pat, err := asString(args[1])
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("rulexpr: bad pattern %q: %w", pat, err)
		}
		return re.MatchString(s), nil
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return arith(e.Name, args)
	case OpNeg:
		if err := arityN(e, len(args), 1); err != nil {
			return nil, err
		}
		n, err := asNumber(args[0])
		if err != nil {
			return nil, err
		}
		return -n, nil
	case OpConcat:
		var sb strings.Builder
		for _, a := range args {
			s, err := asString(a)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	case OpLower, OpUpper, OpTrim:
		if err := arityN(e, len(args), 1); err != nil {
			return nil, err
		}
		s, err := asString(args[0])
		if err != nil {
			return nil, err
		}
		switch e.Name {
		case OpLower:
			return strings.ToLower(s), nil
		case OpUpper:
			return strings.ToUpper(s), nil
		default:
			return strings.TrimSpace(s), nil
		}
	case OpContains, OpStartsWith, OpEndsWith:
		if err := arityN(e, len(args), 2); err != nil {
			return nil, err
		}
		s, err := asString(args[0])
		if err != nil {
			return nil, err
		}
		sub, err := asString(args[1])
		if err != nil {
			return nil, err
		}
		switch e.Name {
		case OpContains:
			return strings.Contains(s, sub), nil
		case OpStartsWith:
			return strings.HasPrefix(s, sub), nil
		default:
			return strings.HasSuffix(s, sub), nil
		}
	case OpLen:
		if err := arityN(e, len(args), 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case string:
			return float64(len(v)), nil
		case []any:
			return float64(len(v)), nil
		case nil:
			return float64(0), nil
		default:
			return nil, fmt.Errorf("rulexpr: len of %T", v)
		}
	case OpDate:
		if err := arityN(e, len(args), 1); err != nil {
			return nil, err
		}
		s, err := asString(args[0])
		if err != nil {
			return nil, err
		}
		return parseDate(s)
	case OpDateAdd:
		if err := arityN(e, len(args), 2); err != nil {
			return nil, err
		}
		t, err := asTime(args[0])
		if err != nil {
			return nil, err
		}
		days, err := asNumber(args[1])
		if err != nil {
			return nil, err
		}
		return t.AddDate(0, 0, int(days)), nil
	case OpDateDiff:
		if err := arityN(e, len(args), 2); err != nil {
			return nil, err
		}
		a, err := asTime(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asTime(args[1])
		if err != nil {
			return nil, err
		}
		return math.Trunc(a.Sub(b).Hours() / 24), nil
	default:
		return nil, fmt.Errorf("rulexpr: unknown operator %q", e.Name)
	}
}

func arity(e *Expr, want int) error {
	return arityN(e, len(e.Args), want)
}

func arityN(e *Expr, got, want int) error {
	if got != want {
		return fmt.Errorf("rulexpr: %s expects %d args, got %d", e.Name, want, got)
	}
	return nil
}

func arith(op string, args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("rulexpr: %s expects at least 2 args", op)
	}
	acc, err := asNumber(args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		n, err := asNumber(a)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpAdd:
			acc += n
		case OpSub:
			acc -= n
		case OpMul:
			acc *= n
		case OpDiv:
			if n == 0 {
				return nil, fmt.Errorf("rulexpr: division by zero")
			}
			acc /= n
		case OpMod:
			if n == 0 {
				return nil, fmt.Errorf("rulexpr: division by zero")
			}
			acc = math.Mod(acc, n)
		}
	}
	return acc, nil
}

func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		if tb, err := asTime(b); err == nil {
			return ta.Equal(tb)
		}
		return false
	}
	na, aNum := numeric(a)
	nb, bNum := numeric(b)
	if aNum && bNum {
		return na == nb
	}
	return a == b
}

func compareValues(a, b any) (int, error) {
	if ta, ok := a.(time.Time); ok {
		tb, err := asTime(b)
		if err != nil {
			return 0, err
		}
		return ta.Compare(tb), nil
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), nil
		}
		// A string against a non-string may still be a date comparison.
		if ta, err := asTime(a); err == nil {
			tb, terr := asTime(b)
			if terr == nil {
				return ta.Compare(tb), nil
			}
		}
	}
	na, err := asNumber(a)
	if err != nil {
		return 0, fmt.Errorf("rulexpr: cannot compare %T with %T", a, b)
	}
	nb, err := asNumber(b)
	if err != nil {
		return 0, fmt.Errorf("rulexpr: cannot compare %T with %T", a, b)
	}
	switch {
	case na < nb:
		return -1, nil
	case na > nb:
		return 1, nil
	default:
		return 0, nil
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asNumber(v any) (float64, error) {
	if n, ok := numeric(v); ok {
		return n, nil
	}
	return 0, fmt.Errorf("rulexpr: %T is not a number", v)
}

func asString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("rulexpr: %T is not a string", v)
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseDate(t)
	default:
		return time.Time{}, fmt.Errorf("rulexpr: %T is not a date", v)
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("rulexpr: bad date %q", s)
	}
	return t, nil
}
