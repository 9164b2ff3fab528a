package rule

import (
	"fmt"
	"sync"

	"github.com/aegiswall/guardrail/internal/domain/constraint"
	"github.com/aegiswall/guardrail/internal/domain/expr"
)

// exprCache memoizes compiled expression ASTs across calls, keyed by
// source text; expression condition text rarely changes across
// evaluations of the same loaded rule set, so the AST is worth caching.
var exprCache sync.Map // string -> expr.Node

func compileCached(src string) (expr.Node, error) {
	if v, ok := exprCache.Load(src); ok {
		return v.(expr.Node), nil
	}
	node, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	exprCache.Store(src, node)
	return node, nil
}

// MatchResult reports whether a rule applies to a call, and if not, the
// constraint violations from its (possibly sole) conjunction of
// conditions, useful for building an explanation trace.
type MatchResult struct {
	Matched    bool
	GroupIndex int // -1 when Conditions (not a ConditionGroup) decided the match
	Errors     []*constraint.Error
}

// Matches evaluates the rule against a tool call. args is the argument
// tree used by field conditions; exprContext is the flat context (args
// plus "tool_name") used by expression conditions.
func (r Rule) Matches(toolName string, args map[string]any, exprContext map[string]any, opts constraint.Options) (MatchResult, error) {
	if !r.Enabled || !r.appliesToTool(toolName) {
		return MatchResult{Matched: false, GroupIndex: -1}, nil
	}

	if len(r.Conditions) == 0 && len(r.ConditionGroups) == 0 {
		return MatchResult{Matched: true, GroupIndex: -1}, nil
	}

	var lastErrors []*constraint.Error

	if len(r.Conditions) > 0 {
		ok, errs, err := evaluateConjunction(r.Conditions, args, exprContext, opts)
		if err != nil {
			return MatchResult{}, err
		}
		if ok {
			return MatchResult{Matched: true, GroupIndex: -1}, nil
		}
		lastErrors = errs
	}

	for i, group := range r.ConditionGroups {
		ok, _, err := evaluateConjunction(group.Conditions, args, exprContext, opts)
		if err != nil {
			return MatchResult{}, err
		}
		if ok {
			return MatchResult{Matched: true, GroupIndex: i}, nil
		}
	}

	return MatchResult{Matched: false, GroupIndex: -1, Errors: lastErrors}, nil
}

// evaluateConjunction evaluates one AND-group of conditions: every field
// triple must pass the constraint engine and every expression must
// evaluate truthy.
func evaluateConjunction(conds []Condition, args, exprContext map[string]any, opts constraint.Options) (bool, []*constraint.Error, error) {
	var expressions []string
	for _, c := range conds {
		if c.IsExpression() {
			expressions = append(expressions, c.Expression)
		}
	}

	result := constraint.Evaluate(toFieldConditions(conds), args, opts)
	if !result.Pass {
		return false, result.Errors, nil
	}

	for _, src := range expressions {
		node, err := compileCached(src)
		if err != nil {
			return false, result.Errors, fmt.Errorf("compile expression %q: %w", src, err)
		}
		val, err := expr.Eval(node, exprContext)
		if err != nil {
			return false, result.Errors, fmt.Errorf("evaluate expression %q: %w", src, err)
		}
		if !expr.Truthy(val) {
			return false, result.Errors, nil
		}
	}
	return true, result.Errors, nil
}

func toFieldConditions(conds []Condition) []constraint.FieldCondition {
	var out []constraint.FieldCondition
	for _, c := range conds {
		if c.IsExpression() {
			continue
		}
		out = append(out, constraint.FieldCondition{Path: c.Field, Operator: c.Operator, Value: c.Value})
	}
	return out
}
