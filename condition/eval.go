package condition

import (
	"fmt"

	"github.com/oliveagle/jsonpath"
)

// Env is the pure input of an evaluation: named context fields plus the
// completion state of template nodes, keyed by template node id.
type Env struct {
	Vars  map[string]any
	Nodes map[string]bool
}

// Evaluate runs the expression against env. Any unresolvable reference is an
// error; the engine treats errors as false, never as true.
func (e *Expression) Evaluate(env Env) (bool, error) {
	val, err := eval(e.root, env)
	if err != nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q is not boolean", e.src)
	}
	return b, nil
}

func eval(e expr, env Env) (any, error) {
	switch v := e.(type) {
	case *literal:
		return v.val, nil
	case *identExpr:
		val, ok := env.Vars[v.name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", v.name)
		}
		return normalize(val), nil
	case *pathExpr:
		val, err := jsonpath.JsonPathLookup(map[string]any(env.Vars), v.path)
		if err != nil {
			return nil, fmt.Errorf("unresolvable reference %q: %w", v.path, err)
		}
		return normalize(val), nil
	case *doneExpr:
		done, ok := env.Nodes[v.nodeId]
		if !ok {
			return nil, fmt.Errorf("unknown node %q", v.nodeId)
		}
		return done, nil
	case *notExpr:
		val, err := eval(v.operand, env)
		if err != nil {
			return nil, err
		}
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of not is not boolean")
		}
		return !b, nil
	case *binaryExpr:
		return evalBinary(v, env)
	}
	return nil, fmt.Errorf("unknown expression node")
}

func evalBinary(e *binaryExpr, env Env) (any, error) {
	lhs, err := eval(e.lhs, env)
	if err != nil {
		return nil, err
	}
	// short circuit logical operators before touching the rhs
	switch e.op {
	case tokenAnd, tokenOr:
		lb, ok := lhs.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of logical operator is not boolean")
		}
		if e.op == tokenAnd && !lb {
			return false, nil
		}
		if e.op == tokenOr && lb {
			return true, nil
		}
		rhs, err := eval(e.rhs, env)
		if err != nil {
			return nil, err
		}
		rb, ok := rhs.(bool)
		if !ok {
			return nil, fmt.Errorf("operand of logical operator is not boolean")
		}
		return rb, nil
	}
	rhs, err := eval(e.rhs, env)
	if err != nil {
		return nil, err
	}
	return compare(e.op, lhs, rhs)
}

func compare(op tokenType, lhs any, rhs any) (any, error) {
	lnum, lIsNum := lhs.(float64)
	rnum, rIsNum := rhs.(float64)
	if lIsNum && rIsNum {
		switch op {
		case tokenEq:
			return lnum == rnum, nil
		case tokenNeq:
			return lnum != rnum, nil
		case tokenLt:
			return lnum < rnum, nil
		case tokenLte:
			return lnum <= rnum, nil
		case tokenGt:
			return lnum > rnum, nil
		case tokenGte:
			return lnum >= rnum, nil
		}
	}
	switch op {
	case tokenEq, tokenNeq:
		if !scalar(lhs) || !scalar(rhs) {
			return nil, fmt.Errorf("equality needs scalar operands, got %T and %T", lhs, rhs)
		}
		if op == tokenEq {
			return lhs == rhs, nil
		}
		return lhs != rhs, nil
	}
	return nil, fmt.Errorf("ordering comparison needs numeric operands, got %T and %T", lhs, rhs)
}

// scalar reports whether a value is safe for the == operator. Context
// variables hold arbitrary JSON, and comparing maps or slices with ==
// panics, so non-scalar operands become an evaluation error.
func scalar(val any) bool {
	switch val.(type) {
	case bool, float64, string:
		return true
	default:
		return false
	}
}

// normalize widens numeric context values so comparisons only ever see float64
func normalize(val any) any {
	switch n := val.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return val
	}
}
