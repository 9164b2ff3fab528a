package loader

import (
	"fmt"

	"github.com/aegiswall/guardrail/internal/domain/constraint"
	"github.com/aegiswall/guardrail/internal/domain/rule"
	"github.com/aegiswall/guardrail/internal/domain/validator"
)

// RuleValidatorName is the fixed Validator.Name this package registers,
// useful for host code that wants to RemoveValidator and replace it.
const RuleValidatorName = "loaded_rules"

// Validator returns a validator.Validator that, for each call, fetches
// the loader's current rule index and evaluates the rules applicable to
// that call's tool, in index order (global rules first):
//
//   - The first matching rule with action "block" deny the call.
//   - The first matching rule with action "modify" applies its
//     metadata["patch"] (a map of top-level argument name to replacement
//     value) and the call proceeds as Decision=modify.
//   - Every matching rule with action "warn" is recorded in
//     Metadata["matched_rules"] but does not change the decision.
//   - The first matching rule with action "allow" short-circuits further
//     rule evaluation for this call with an explicit allow.
//   - No decisive matching rule: Decision=allow. The engine's configured
//     default decision is not consulted, since it applies only when no
//     validator applies to a call and this validator has no tool filter.
//
// Because rules for different tools may have conflicting verdicts, the
// first decisive rule (by index order) wins — later rules are not
// consulted once a block/modify/allow verdict is reached. "warn" is the
// only action that does not stop evaluation, since it carries no
// decision of its own.
func (l *Loader) Validator(priority int, opts constraint.Options) validator.Validator {
	return validator.Validator{
		Name:     RuleValidatorName,
		Priority: priority,
		Validate: func(vctx validator.ValidationContext) (validator.ValidationResult, error) {
			rules := l.Rules().GetRulesForTool(vctx.ToolName)
			exprContext := exprContextFor(vctx)

			var warnings []string
			for _, r := range rules {
				result, err := r.Matches(vctx.ToolName, vctx.Arguments, exprContext, opts)
				if err != nil {
					return validator.ValidationResult{}, fmt.Errorf("evaluate rule %s: %w", r.ID, err)
				}
				if !result.Matched {
					continue
				}
				switch r.Action {
				case rule.ActionBlock:
					return validator.ValidationResult{
						Decision: validator.DecisionDeny,
						Reason:   ruleReason(r),
						Metadata: map[string]any{"matched_rules": []string{r.ID}},
					}, nil
				case rule.ActionModify:
					modified, patchErr := applyPatch(vctx.Arguments, r.Metadata)
					if patchErr != nil {
						return validator.ValidationResult{}, fmt.Errorf("apply patch for rule %s: %w", r.ID, patchErr)
					}
					return validator.ValidationResult{
						Decision:          validator.DecisionModify,
						Reason:            ruleReason(r),
						ModifiedArguments: modified,
						Metadata:          map[string]any{"matched_rules": []string{r.ID}},
					}, nil
				case rule.ActionAllow:
					return validator.ValidationResult{
						Decision: validator.DecisionAllow,
						Reason:   ruleReason(r),
						Metadata: map[string]any{"matched_rules": []string{r.ID}},
					}, nil
				case rule.ActionWarn:
					warnings = append(warnings, r.ID)
				}
			}

			result := validator.ValidationResult{Decision: validator.DecisionAllow}
			if len(warnings) > 0 {
				result.Metadata = map[string]any{"matched_rules": warnings}
			}
			return result, nil
		},
	}
}

func ruleReason(r rule.Rule) string {
	if r.Description != "" {
		return r.Description
	}
	return fmt.Sprintf("rule %s (%s) matched", r.ID, r.Name)
}

// exprContextFor builds the flat evaluation context expression conditions
// see: the call arguments plus "tool_name".
func exprContextFor(vctx validator.ValidationContext) map[string]any {
	ctx := make(map[string]any, len(vctx.Arguments)+1)
	for k, v := range vctx.Arguments {
		ctx[k] = v
	}
	ctx["tool_name"] = vctx.ToolName
	return ctx
}

// applyPatch applies metadata["patch"] (a map of top-level argument name to
// replacement value) onto a shallow copy of args. Only top-level keys are
// supported; nested-path patches aren't needed by any modify rule this
// package has encountered so far.
func applyPatch(args map[string]any, metadata map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	patchRaw, ok := metadata["patch"]
	if !ok {
		return out, nil
	}
	patch, ok := patchRaw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata.patch must be a map, got %T", patchRaw)
	}
	for k, v := range patch {
		out[k] = v
	}
	return out, nil
}
