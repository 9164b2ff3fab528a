package memory

import (
	"github.com/aegiswall/guardrail/internal/domain/validator"
)

// ToolRateLimits maps a tool name to its configured limit.
type ToolRateLimits map[string]RateLimitConfig

// NewRateLimitValidator adapts a SlidingWindowRateLimiter into a
// validator.Validator that short-circuits to deny once a tool's call
// rate is exceeded (the rate-limiting short-circuit). Give it the
// lowest priority number in the pipeline so it runs before any other
// validator does real work.
func NewRateLimitValidator(limiter *SlidingWindowRateLimiter, limits ToolRateLimits, priority int) validator.Validator {
	return validator.Validator{
		Name:     "rate_limit",
		Priority: priority,
		Validate: func(vctx validator.ValidationContext) (validator.ValidationResult, error) {
			cfg, ok := limits[vctx.ToolName]
			if !ok {
				return validator.ValidationResult{Decision: validator.DecisionAllow}, nil
			}
			result := limiter.Allow(vctx.ToolName, cfg)
			if !result.Allowed {
				return validator.ValidationResult{
					Decision: validator.DecisionDeny,
					Reason:   DenyReason(cfg),
					Metadata: map[string]any{"field_path": "toolName"},
				}, nil
			}
			return validator.ValidationResult{Decision: validator.DecisionAllow}, nil
		},
	}
}
