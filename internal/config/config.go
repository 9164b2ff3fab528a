// Package config provides configuration types for the guardrail runtime.
//
// Recognized options map directly onto the runtime's operating surface:
// mode, default decision, explanation verbosity/redaction, signing policy,
// remote-policy resilience (fail mode, deadlines, retry, circuit breaker),
// and rate limiting.
package config

// GuardrailConfig is the top-level configuration for the guardrail runtime.
type GuardrailConfig struct {
	// Mode selects how the runtime reacts to a deny decision: "strict"
	// enforces it, "log" forces every deny down to a warning (decision
	// becomes allow) for dry-run rollout of new rules.
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=strict log"`

	// DefaultDecision is applied when no configured validator matches a
	// call.
	DefaultDecision string `yaml:"default_decision" mapstructure:"default_decision" validate:"omitempty,oneof=allow deny"`

	// RulesDir is the directory LoadFromDirectory walks for rule files.
	RulesDir string `yaml:"rules_dir" mapstructure:"rules_dir" validate:"omitempty"`

	// Explanation configures how much trace detail decisions carry and
	// which argument paths get redacted from it.
	Explanation ExplanationConfig `yaml:"explanation" mapstructure:"explanation"`

	// Signing configures bundle-signature verification for loaded rules.
	Signing SigningConfig `yaml:"signing" mapstructure:"signing"`

	// Resilience configures the remote policy client's fail-safe posture.
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`

	// RateLimit configures per-tool sliding-window call limits.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// DevMode applies permissive development defaults: an unset Mode
	// becomes "log".
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ExplanationConfig controls the Explanation attached to validation results.
type ExplanationConfig struct {
	// Verbosity is one of "none", "simple", "verbose".
	Verbosity string `yaml:"verbosity" mapstructure:"verbosity" validate:"omitempty,oneof=none simple verbose"`
	// RedactPaths lists dotted argument paths (and their descendants) to
	// mask out of any trace entries before returning them.
	RedactPaths []string `yaml:"redact_paths" mapstructure:"redact_paths" validate:"omitempty,dive,redact_path"`
}

// SigningConfig controls rule-bundle signature verification.
type SigningConfig struct {
	// Enabled turns on signature checking for .signed.json bundles.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Required fails closed (aborts startup) when a signed bundle fails
	// verification, instead of skipping it with a warning. A *bool, like
	// rule.wireRule's Enabled, so an operator who leaves it unset gets the
	// fail-closed default rather than silently inheriting Go's bool zero
	// value of false.
	Required *bool `yaml:"required" mapstructure:"required"`
	// AllowRotation lets verification fall back to any trusted key when
	// the bundle's key id has no entry in PublicKeys.
	AllowRotation bool `yaml:"allow_rotation" mapstructure:"allow_rotation"`
	// PublicKeys maps key IDs to base64-encoded DER PKIX public keys.
	PublicKeys map[string]string `yaml:"public_keys" mapstructure:"public_keys" validate:"omitempty"`
	// PinnedVersion, if set, is the only bundle version accepted.
	PinnedVersion string `yaml:"pinned_version" mapstructure:"pinned_version" validate:"omitempty"`
	// PinnedHash, if set, is the only payload hash accepted.
	PinnedHash string `yaml:"pinned_hash" mapstructure:"pinned_hash" validate:"omitempty"`
}

// ResilienceConfig controls the remote policy client's retry, circuit
// breaker, and fail-safe behavior.
type ResilienceConfig struct {
	// FailMode is "fail-open" or "fail-closed" once retries and the
	// breaker are both exhausted.
	FailMode string `yaml:"fail_mode" mapstructure:"fail_mode" validate:"omitempty,oneof=fail-open fail-closed"`
	// DeadlineMs bounds a single remote policy evaluation, including
	// retries.
	DeadlineMs int `yaml:"deadline_ms" mapstructure:"deadline_ms" validate:"omitempty,min=1"`
	// Retry configures the exponential-backoff retry policy.
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`
	// CircuitBreaker configures the breaker guarding the remote call.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
}

// RetryConfig configures exponential-backoff retry with jitter.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"omitempty,min=1"`
	BaseDelayMs int `yaml:"base_delay_ms" mapstructure:"base_delay_ms" validate:"omitempty,min=1"`
	MaxDelayMs  int `yaml:"max_delay_ms" mapstructure:"max_delay_ms" validate:"omitempty,min=1"`
}

// CircuitBreakerConfig configures the remote-policy circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold    int `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"omitempty,min=1"`
	ResetTimeoutMs      int `yaml:"reset_timeout_ms" mapstructure:"reset_timeout_ms" validate:"omitempty,min=1"`
	HalfOpenMaxAttempts int `yaml:"half_open_max_attempts" mapstructure:"half_open_max_attempts" validate:"omitempty,min=1"`
}

// RateLimitConfig configures the per-tool sliding-window rate limiter.
type RateLimitConfig struct {
	MaxCalls      int `yaml:"max_calls" mapstructure:"max_calls" validate:"omitempty,min=1"`
	WindowSeconds int `yaml:"window_seconds" mapstructure:"window_seconds" validate:"omitempty,min=1"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *GuardrailConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "strict"
	}
	if c.DefaultDecision == "" {
		c.DefaultDecision = "allow"
	}
	if c.RulesDir == "" {
		c.RulesDir = "./rules"
	}
	if c.Explanation.Verbosity == "" {
		c.Explanation.Verbosity = "simple"
	}
	if c.Resilience.FailMode == "" {
		c.Resilience.FailMode = "fail-open"
	}
	if c.Resilience.DeadlineMs == 0 {
		c.Resilience.DeadlineMs = 2000
	}
	if c.Resilience.Retry.MaxAttempts == 0 {
		c.Resilience.Retry.MaxAttempts = 3
	}
	if c.Resilience.Retry.BaseDelayMs == 0 {
		c.Resilience.Retry.BaseDelayMs = 100
	}
	if c.Resilience.Retry.MaxDelayMs == 0 {
		c.Resilience.Retry.MaxDelayMs = 2000
	}
	if c.Resilience.CircuitBreaker.FailureThreshold == 0 {
		c.Resilience.CircuitBreaker.FailureThreshold = 5
	}
	if c.Resilience.CircuitBreaker.ResetTimeoutMs == 0 {
		c.Resilience.CircuitBreaker.ResetTimeoutMs = 30000
	}
	if c.Resilience.CircuitBreaker.HalfOpenMaxAttempts == 0 {
		c.Resilience.CircuitBreaker.HalfOpenMaxAttempts = 1
	}
	if c.RateLimit.MaxCalls == 0 {
		c.RateLimit.MaxCalls = 100
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.Signing.Required == nil {
		required := true
		c.Signing.Required = &required
	}
}

// SetDevDefaults applies permissive defaults for development mode. It must
// run before SetDefaults, which would otherwise fill Mode first.
func (c *GuardrailConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Mode == "" {
		c.Mode = "log"
	}
}
