package validator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Engine runs a priority-ordered validator pipeline against incoming tool
// calls. It owns the validator list and snapshots it at call entry so that
// addValidator/removeValidator/clearValidators are never observable
// mid-call.
type Engine struct {
	mu           sync.Mutex
	validators   []registeredValidator
	defaultAllow bool
	nowFunc      func() time.Time
}

type registeredValidator struct {
	v   Validator
	seq int
}

// NewEngine creates an empty engine. defaultAllow governs the
// default-decision path when no validator applies to a call.
func NewEngine(defaultAllow bool) *Engine {
	return &Engine{defaultAllow: defaultAllow, nowFunc: time.Now}
}

// AddValidator registers v. Registration order only matters as a
// priority tiebreaker.
func (e *Engine) AddValidator(v Validator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validators = append(e.validators, registeredValidator{v: v, seq: len(e.validators)})
}

// RemoveValidator drops the first registered validator with the given name.
func (e *Engine) RemoveValidator(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, rv := range e.validators {
		if rv.v.Name == name {
			e.validators = append(e.validators[:i], e.validators[i+1:]...)
			return
		}
	}
}

// ClearValidators drops every registered validator.
func (e *Engine) ClearValidators() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validators = nil
}

// snapshot returns the applicable validator list for toolName, sorted by
// priority (low first) with registration order as a tiebreaker. Taken
// under lock so concurrent Add/Remove/Clear calls never mutate a list a
// call is already iterating.
func (e *Engine) snapshot(toolName string) []Validator {
	e.mu.Lock()
	defer e.mu.Unlock()

	applicable := make([]registeredValidator, 0, len(e.validators))
	for _, rv := range e.validators {
		if rv.v.appliesToTool(toolName) {
			applicable = append(applicable, rv)
		}
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		if applicable[i].v.Priority != applicable[j].v.Priority {
			return applicable[i].v.Priority < applicable[j].v.Priority
		}
		return applicable[i].seq < applicable[j].seq
	})

	out := make([]Validator, len(applicable))
	for i, rv := range applicable {
		out[i] = rv.v
	}
	return out
}

// ValidateCall runs the pipeline for one call. ctx governs cancellation:
// if ctx is done between validators, the call hard-stops as a deny with
// reason "cancelled".
func (e *Engine) ValidateCall(ctx context.Context, vctx ValidationContext, expCfg ExplanationConfig) (AggregatedValidationResult, error) {
	start := e.nowFunc()
	applicable := e.snapshot(vctx.ToolName)

	var (
		trace          []Entry
		evaluatedRules int
		matchedRules   int
		remediation    []string
		final          ValidationResult
		haveFinal      bool
	)

	currentArgs := vctx.Arguments

	for _, v := range applicable {
		select {
		case <-ctx.Done():
			final = ValidationResult{Decision: DecisionDeny, Reason: "cancelled"}
			haveFinal = true
			trace = appendTrace(trace, expCfg, "", final, currentArgs)
			goto done
		default:
		}

		callCtx := vctx
		callCtx.Arguments = currentArgs

		result, err := invokeValidator(v, callCtx)
		evaluatedRules++

		if err != nil {
			result = ValidationResult{
				Decision: DecisionDeny,
				Reason:   fmt.Sprintf("Validator %q threw an error: %s", v.Name, err.Error()),
			}
		}

		trace = appendTrace(trace, expCfg, v.Name, result, currentArgs)

		switch result.Decision {
		case DecisionAllow:
			// An allow after a modify leaves the modify as the final
			// result, so the host still receives the modified arguments.
			if !haveFinal || final.Decision != DecisionModify {
				final = result
			}
			haveFinal = true
		case DecisionModify:
			final = result
			haveFinal = true
			matchedRules++
			if result.ModifiedArguments != nil {
				currentArgs = result.ModifiedArguments
			}
		case DecisionDeny:
			final = result
			haveFinal = true
			matchedRules++
			remediation = append(remediation, "Fix: "+result.Reason)
			goto done
		default:
			final = ValidationResult{Decision: DecisionDeny, Reason: fmt.Sprintf("validator %q returned unknown decision %q", v.Name, result.Decision)}
			haveFinal = true
			matchedRules++
			remediation = append(remediation, "Fix: "+final.Reason)
			goto done
		}
	}

done:
	if !haveFinal {
		decision := DecisionDeny
		if e.defaultAllow {
			decision = DecisionAllow
		}
		final = ValidationResult{Decision: decision, Reason: "no validator applied; using configured default"}
	}

	agg := AggregatedValidationResult{
		Decision:          final.Decision,
		Reason:            final.Reason,
		ModifiedArguments: currentArgs,
	}

	if expCfg.Verbosity != VerbosityNone {
		trace = redactTrace(trace, expCfg.RedactPaths)
		agg.Explanation = &Explanation{
			Decision:         final.Decision,
			Reason:           final.Reason,
			Verbosity:        expCfg.Verbosity,
			Trace:            trace,
			EvaluatedRules:   evaluatedRules,
			MatchedRules:     matchedRules,
			EvaluationTimeMs: float64(e.nowFunc().Sub(start)) / float64(time.Millisecond),
		}
		if final.Decision == DecisionDeny {
			agg.Explanation.Remediation = remediation
		}
	}

	return agg, nil
}

// invokeValidator calls v.Validate, converting a panic into an error so
// the engine can synthesize a deny rather than crash the host: a
// validator that throws is treated as a deny.
func invokeValidator(v Validator, vctx ValidationContext) (result ValidationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return v.Validate(vctx)
}

func appendTrace(trace []Entry, cfg ExplanationConfig, validatorName string, result ValidationResult, args map[string]any) []Entry {
	if cfg.Verbosity == VerbosityNone {
		return trace
	}
	if cfg.Verbosity == VerbositySimple && result.Decision == DecisionAllow {
		return trace
	}

	traceResult := "pass"
	if result.Decision != DecisionAllow {
		traceResult = "fail"
	}

	fieldPath, _ := result.Metadata["field_path"].(string)
	matchedRuleIDs, _ := result.Metadata["matched_rules"].([]string)
	checkedFields, _ := result.Metadata["checked_fields"].([]string)

	switch {
	case len(matchedRuleIDs) > 0:
		path := fieldPath
		if path == "" && len(checkedFields) > 0 {
			path = "arguments." + checkedFields[0]
		}
		if path == "" {
			path = "arguments"
		}
		for _, ruleID := range matchedRuleIDs {
			trace = append(trace, Entry{
				RuleID:  ruleID,
				Path:    path,
				Actual:  valueAtPath(args, path),
				Result:  traceResult,
				Message: result.Reason,
			})
		}
	case len(checkedFields) > 0:
		for _, field := range checkedFields {
			path := "arguments." + field
			trace = append(trace, Entry{
				RuleID:  validatorName,
				Path:    path,
				Actual:  valueAtPath(args, path),
				Result:  traceResult,
				Message: result.Reason,
			})
		}
	default:
		path := fieldPath
		if path == "" {
			path = "arguments"
		}
		trace = append(trace, Entry{
			RuleID:  validatorName,
			Path:    path,
			Actual:  valueAtPath(args, path),
			Result:  traceResult,
			Message: result.Reason,
		})
	}
	return trace
}

// valueAtPath resolves a dotted "arguments.<field>..." path against args.
// It does not understand array brackets; trace paths are plain field
// chains, unlike constraint-engine condition paths.
func valueAtPath(args map[string]any, path string) any {
	path = strings.TrimPrefix(path, "arguments")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return args
	}
	var cur any = map[string]any(args)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		val, exists := obj[part]
		if !exists {
			return nil
		}
		cur = val
	}
	return cur
}

const redactedPlaceholder = "[REDACTED]"

func redactTrace(trace []Entry, redactPaths []string) []Entry {
	if len(redactPaths) == 0 {
		return trace
	}
	for i := range trace {
		if pathIsRedacted(trace[i].Path, redactPaths) {
			trace[i].Actual = redactedPlaceholder
			trace[i].Expected = redactedPlaceholder
		}
	}
	return trace
}

// pathIsRedacted reports whether path equals, or is a "."-descendant of,
// any entry in redactPaths.
func pathIsRedacted(path string, redactPaths []string) bool {
	for _, rp := range redactPaths {
		if path == rp || strings.HasPrefix(path, rp+".") {
			return true
		}
	}
	return false
}
