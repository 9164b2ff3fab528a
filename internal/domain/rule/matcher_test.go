package rule

import (
	"testing"

	"github.com/aegiswall/guardrail/internal/domain/constraint"
)

func TestRule_MatchesUnconditionally(t *testing.T) {
	t.Parallel()
	r := Rule{ID: "r1", Enabled: true}
	result, err := r.Matches("any_tool", map[string]any{}, map[string]any{"tool_name": "any_tool"}, constraint.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched {
		t.Fatalf("expected unconditional match")
	}
}

func TestRule_ToolFilter(t *testing.T) {
	t.Parallel()
	r := Rule{ID: "r1", Enabled: true, Tools: []string{"fs_read"}}

	result, err := r.Matches("fs_write", map[string]any{}, map[string]any{}, constraint.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched {
		t.Fatalf("expected no match for non-listed tool")
	}

	result, err = r.Matches("fs_read", map[string]any{}, map[string]any{}, constraint.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched {
		t.Fatalf("expected match for listed tool")
	}
}

func TestRule_ConditionGroupsDisjunction(t *testing.T) {
	t.Parallel()
	r := Rule{
		ID:      "r1",
		Enabled: true,
		ConditionGroups: []ConditionGroup{
			{Conditions: []Condition{{Field: "a", Operator: constraint.OpEquals, Value: float64(1)}}},
			{Conditions: []Condition{{Field: "b", Operator: constraint.OpEquals, Value: float64(2)}}},
		},
	}

	result, err := r.Matches("t", map[string]any{"a": float64(9), "b": float64(2)}, nil, constraint.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched || result.GroupIndex != 1 {
		t.Fatalf("expected match on group 1, got %+v", result)
	}
}

func TestRule_ExpressionCondition(t *testing.T) {
	t.Parallel()
	r := Rule{
		ID:      "r1",
		Enabled: true,
		Conditions: []Condition{
			{Expression: `tool_name == "danger_tool" && amount > 100`},
		},
	}
	ctx := map[string]any{"tool_name": "danger_tool", "amount": float64(500)}
	result, err := r.Matches("danger_tool", map[string]any{"amount": float64(500)}, ctx, constraint.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched {
		t.Fatalf("expected expression condition to match")
	}
}

func TestRule_DisabledNeverMatches(t *testing.T) {
	t.Parallel()
	r := Rule{ID: "r1", Enabled: false}
	result, err := r.Matches("t", map[string]any{}, map[string]any{}, constraint.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched {
		t.Fatalf("disabled rule must never match")
	}
}
