package condition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	env := Env{
		Vars: map[string]any{
			"docs_received": true,
			"client_tier":   "premium",
			"invoice_total": 1500,
			"client": map[string]any{
				"country": "US",
			},
		},
		Nodes: map[string]bool{
			"task-w2":   true,
			"task-1099": false,
		},
	}
	for scenario, tc := range map[string]struct {
		expr     string
		expected bool
	}{
		"bare boolean field":     {"docs_received", true},
		"negation":               {"!done(task-1099)", true},
		"keyword operators":      {"docs_received and not done(task-1099)", true},
		"and short circuit":      {"done(task-1099) && unknown_field", false},
		"or short circuit":       {"done(task-w2) || unknown_field", true},
		"numeric comparison":     {"invoice_total >= 1000", true},
		"numeric less than":      {"invoice_total < 1000", false},
		"string equality":        {"client_tier == 'premium'", true},
		"string inequality":      {"client_tier != \"basic\"", true},
		"jsonpath reference":     {"$.client.country == 'US'", true},
		"done quoted":            {"done('task-w2')", true},
		"parenthesized grouping": {"(done(task-w2) || done(task-1099)) && invoice_total > 0", true},
	} {
		t.Run(scenario, func(t *testing.T) {
			expr, err := Parse(tc.expr)
			require.NoError(t, err)
			result, err := expr.Evaluate(env)
			require.NoError(t, err)
			require.Equal(t, tc.expected, result)
		})
	}
}

func TestEvaluateFailClosed(t *testing.T) {
	env := Env{Vars: map[string]any{}, Nodes: map[string]bool{}}
	for scenario, exprStr := range map[string]string{
		"unknown field":         "no_such_field",
		"unknown node":          "done(no-such-node)",
		"unresolvable jsonpath": "$.missing.leaf == 1",
		"non boolean result":    "'just-a-string'",
		"type mismatch":         "'abc' < 5",
	} {
		t.Run(scenario, func(t *testing.T) {
			expr, err := Parse(exprStr)
			require.NoError(t, err)
			result, err := expr.Evaluate(env)
			require.Error(t, err)
			require.False(t, result)
		})
	}
}

func TestEvaluateRejectsNonScalarEquality(t *testing.T) {
	env := Env{
		Vars: map[string]any{
			"a":    map[string]any{"x": 1.0},
			"b":    map[string]any{"x": 1.0},
			"list": []any{1.0, 2.0},
		},
		Nodes: map[string]bool{},
	}
	for scenario, exprStr := range map[string]string{
		"map equality":          "a == b",
		"map inequality":        "a != b",
		"slice equality":        "list == list",
		"jsonpath object":       "$.a == $.b",
		"scalar against object": "a == 'x'",
	} {
		t.Run(scenario, func(t *testing.T) {
			expr, err := Parse(exprStr)
			require.NoError(t, err)
			result, err := expr.Evaluate(env)
			require.Error(t, err)
			require.False(t, result)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for scenario, exprStr := range map[string]string{
		"dangling operator":   "a &&",
		"single ampersand":    "a & b",
		"single equals":       "a = b",
		"unterminated string": "x == 'oops",
		"unbalanced paren":    "(a || b",
		"empty done":          "done()",
		"trailing garbage":    "a == b c",
	} {
		t.Run(scenario, func(t *testing.T) {
			_, err := Parse(exprStr)
			require.Error(t, err)
		})
	}
}

func TestNodeRefs(t *testing.T) {
	expr, err := Parse("done(task-a) && (done('task-b') || ready)")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"task-a", "task-b"}, expr.NodeRefs())
}
