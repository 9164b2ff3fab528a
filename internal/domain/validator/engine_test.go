package validator

import (
	"context"
	"errors"
	"testing"
)

func allowValidator(name string, priority int) Validator {
	return Validator{
		Name:     name,
		Priority: priority,
		Validate: func(ValidationContext) (ValidationResult, error) {
			return ValidationResult{Decision: DecisionAllow}, nil
		},
	}
}

func TestEngine_DefaultAllowWhenNoValidatorApplies(t *testing.T) {
	t.Parallel()
	e := NewEngine(true)
	result, err := e.ValidateCall(context.Background(), ValidationContext{ToolName: "read_file"}, ExplanationConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Fatalf("expected default allow, got %v", result.Decision)
	}
}

func TestEngine_DenyStopsPipeline(t *testing.T) {
	t.Parallel()
	e := NewEngine(true)
	var secondRan bool
	e.AddValidator(Validator{
		Name:     "blocker",
		Priority: 10,
		Validate: func(ValidationContext) (ValidationResult, error) {
			return ValidationResult{Decision: DecisionDeny, Reason: "blocked tool"}, nil
		},
	})
	e.AddValidator(Validator{
		Name:     "never-reached",
		Priority: 20,
		Validate: func(ValidationContext) (ValidationResult, error) {
			secondRan = true
			return ValidationResult{Decision: DecisionAllow}, nil
		},
	})

	result, err := e.ValidateCall(context.Background(), ValidationContext{ToolName: "delete_file"}, ExplanationConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionDeny {
		t.Fatalf("expected deny, got %v", result.Decision)
	}
	if secondRan {
		t.Fatalf("lower-priority validator must not run after a deny")
	}
}

func TestEngine_PriorityOrderingAndModifyPropagation(t *testing.T) {
	t.Parallel()
	e := NewEngine(true)
	e.AddValidator(Validator{
		Name:     "sanitizer",
		Priority: 10,
		Validate: func(ValidationContext) (ValidationResult, error) {
			return ValidationResult{Decision: DecisionModify, ModifiedArguments: map[string]any{"safe": true}}, nil
		},
	})
	e.AddValidator(Validator{
		Name:     "checker",
		Priority: 20,
		Validate: func(vctx ValidationContext) (ValidationResult, error) {
			if safe, _ := vctx.Arguments["safe"].(bool); safe {
				return ValidationResult{Decision: DecisionAllow}, nil
			}
			return ValidationResult{Decision: DecisionDeny, Reason: "not safe"}, nil
		},
	})

	result, err := e.ValidateCall(context.Background(), ValidationContext{
		ToolName:  "write_file",
		Arguments: map[string]any{"safe": false},
	}, ExplanationConfig{Verbosity: VerbosityVerbose})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionModify {
		t.Fatalf("expected final decision modify, got %v", result.Decision)
	}
	if len(result.Explanation.Trace) != 2 {
		t.Fatalf("expected 2 trace entries, got %d", len(result.Explanation.Trace))
	}
	if result.Explanation.Trace[0].Result != "fail" {
		t.Fatalf("modify entry must be classified fail, got %s", result.Explanation.Trace[0].Result)
	}
	if result.Explanation.Trace[1].Result != "pass" {
		t.Fatalf("allow entry must be classified pass, got %s", result.Explanation.Trace[1].Result)
	}
}

func TestEngine_ValidatorPanicBecomesDeny(t *testing.T) {
	t.Parallel()
	e := NewEngine(true)
	e.AddValidator(Validator{
		Name: "flaky",
		Validate: func(ValidationContext) (ValidationResult, error) {
			return ValidationResult{}, errors.New("boom")
		},
	})
	result, err := e.ValidateCall(context.Background(), ValidationContext{ToolName: "t"}, ExplanationConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionDeny {
		t.Fatalf("expected deny after validator error, got %v", result.Decision)
	}
}

func TestEngine_ToolFilter(t *testing.T) {
	t.Parallel()
	e := NewEngine(true)
	var ran bool
	e.AddValidator(Validator{
		Name:       "scoped",
		ToolFilter: []string{"fs_read"},
		Validate: func(ValidationContext) (ValidationResult, error) {
			ran = true
			return ValidationResult{Decision: DecisionDeny, Reason: "denied"}, nil
		},
	})
	result, err := e.ValidateCall(context.Background(), ValidationContext{ToolName: "fs_write"}, ExplanationConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran {
		t.Fatalf("validator scoped to fs_read must not run for fs_write")
	}
	if result.Decision != DecisionAllow {
		t.Fatalf("expected default allow, got %v", result.Decision)
	}
}

func TestEngine_RedactionAppliesToDescendantPaths(t *testing.T) {
	t.Parallel()
	e := NewEngine(true)
	e.AddValidator(Validator{
		Name: "credentials",
		Validate: func(ValidationContext) (ValidationResult, error) {
			return ValidationResult{
				Decision: DecisionDeny,
				Reason:   "leaked credential",
				Metadata: map[string]any{"checked_fields": []string{"password", "name"}},
			}, nil
		},
	})

	result, err := e.ValidateCall(context.Background(), ValidationContext{
		ToolName:  "login",
		Arguments: map[string]any{"password": "hunter2", "name": "alice"},
	}, ExplanationConfig{Verbosity: VerbosityVerbose, RedactPaths: []string{"arguments.password"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawRedacted, sawPlain bool
	for _, entry := range result.Explanation.Trace {
		switch entry.Path {
		case "arguments.password":
			if entry.Actual != redactedPlaceholder {
				t.Fatalf("expected password entry redacted, got %v", entry.Actual)
			}
			sawRedacted = true
		case "arguments.name":
			if entry.Actual != "alice" {
				t.Fatalf("expected name entry to retain its value, got %v", entry.Actual)
			}
			sawPlain = true
		}
	}
	if !sawRedacted || !sawPlain {
		t.Fatalf("expected both redacted and plain entries, got %+v", result.Explanation.Trace)
	}
	if len(result.Explanation.Remediation) != 1 || result.Explanation.Remediation[0] != "Fix: leaked credential" {
		t.Fatalf("expected remediation list with one fix, got %+v", result.Explanation.Remediation)
	}
}

func TestEngine_AddRemoveClearValidators(t *testing.T) {
	t.Parallel()
	e := NewEngine(true)
	e.AddValidator(allowValidator("v1", 100))
	e.AddValidator(allowValidator("v2", 50))
	if snap := e.snapshot("t"); len(snap) != 2 || snap[0].Name != "v2" {
		t.Fatalf("expected v2 first by priority, got %+v", snap)
	}

	e.RemoveValidator("v2")
	if snap := e.snapshot("t"); len(snap) != 1 || snap[0].Name != "v1" {
		t.Fatalf("expected only v1 remaining, got %+v", snap)
	}

	e.ClearValidators()
	if snap := e.snapshot("t"); len(snap) != 0 {
		t.Fatalf("expected empty snapshot after clear, got %+v", snap)
	}
}
