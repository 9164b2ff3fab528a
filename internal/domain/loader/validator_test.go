package loader

import (
	"context"
	"testing"

	"github.com/aegiswall/guardrail/internal/domain/constraint"
	"github.com/aegiswall/guardrail/internal/domain/validator"
)

const blockDeleteRuleYAML = `
version: "1.0"
name: sample
rules:
  - id: r1
    name: block-delete
    description: "deleting system files is never allowed"
    tools: ["delete_file"]
    conditions:
      - field: path
        operator: starts_with
        value: "/etc"
    action: block
`

const modifyRuleYAML = `
version: "1.0"
name: sample
rules:
  - id: r2
    name: force-safe-mode
    tools: ["risky_tool"]
    action: modify
    metadata:
      patch:
        safe: true
`

const warnRuleYAML = `
version: "1.0"
name: sample
rules:
  - id: r3
    name: flag-large-amount
    tools: ["transfer"]
    conditions:
      - field: amount
        operator: greater_than
        value: 1000
    action: warn
`

func TestLoader_Validator_BlocksOnMatchingRule(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", blockDeleteRuleYAML)

	l := New()
	if err := l.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}
	v := l.Validator(100, constraint.Options{})

	result, err := v.Validate(validator.ValidationContext{
		ToolName:  "delete_file",
		Arguments: map[string]any{"path": "/etc/passwd"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != validator.DecisionDeny {
		t.Fatalf("expected deny, got %v", result.Decision)
	}
}

func TestLoader_Validator_AllowsWhenConditionDoesNotMatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", blockDeleteRuleYAML)

	l := New()
	if err := l.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}
	v := l.Validator(100, constraint.Options{})

	result, err := v.Validate(validator.ValidationContext{
		ToolName:  "delete_file",
		Arguments: map[string]any{"path": "/tmp/scratch"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != validator.DecisionAllow {
		t.Fatalf("expected allow, got %v", result.Decision)
	}
}

func TestLoader_Validator_ModifyAppliesPatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", modifyRuleYAML)

	l := New()
	if err := l.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}
	v := l.Validator(100, constraint.Options{})

	result, err := v.Validate(validator.ValidationContext{
		ToolName:  "risky_tool",
		Arguments: map[string]any{"safe": false},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != validator.DecisionModify {
		t.Fatalf("expected modify, got %v", result.Decision)
	}
	if result.ModifiedArguments["safe"] != true {
		t.Fatalf("expected patched safe=true, got %v", result.ModifiedArguments["safe"])
	}
}

func TestLoader_Validator_WarnDoesNotChangeDecision(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", warnRuleYAML)

	l := New()
	if err := l.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}
	v := l.Validator(100, constraint.Options{})

	result, err := v.Validate(validator.ValidationContext{
		ToolName:  "transfer",
		Arguments: map[string]any{"amount": 5000},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != validator.DecisionAllow {
		t.Fatalf("expected allow despite warn rule, got %v", result.Decision)
	}
	if result.Metadata["matched_rules"] == nil {
		t.Fatalf("expected matched_rules metadata recording the warn")
	}
}

func TestLoader_Validator_WiresIntoEngine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "rules.yaml", blockDeleteRuleYAML)

	l := New()
	if err := l.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}

	eng := validator.NewEngine(true)
	eng.AddValidator(l.Validator(100, constraint.Options{}))

	result, err := eng.ValidateCall(context.Background(), validator.ValidationContext{
		ToolName:  "delete_file",
		Arguments: map[string]any{"path": "/etc/shadow"},
	}, validator.ExplanationConfig{Verbosity: validator.VerbositySimple})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != validator.DecisionDeny {
		t.Fatalf("expected engine to surface rule-driven deny, got %v", result.Decision)
	}
}
