package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// FailMode governs the synthesized decision a RemotePolicyClient returns
// once retries and the circuit breaker are both exhausted.
type FailMode string

const (
	FailOpen   FailMode = "fail-open"
	FailClosed FailMode = "fail-closed"
)

// RemoteDecision is the canonicalized shape a remote policy call returns.
// Legacy servers may reply with {"decision":"pass"|"block"}; the client
// maps those to allow/deny and emits one deprecation warning per process.
type RemoteDecision struct {
	Decision string // "allow" | "deny"
	Reason   string
}

var (
	legacyWarnOnce sync.Once
	legacyWarnFunc = func(msg string) {} // overridable by hosts that want the warning logged
)

// SetLegacyWarnFunc overrides how the client surfaces its one-time legacy
// response-shape deprecation warning. Intended for wiring to the host's
// logger.
func SetLegacyWarnFunc(f func(msg string)) {
	legacyWarnFunc = f
}

// canonicalizeLegacyDecision maps the deprecated {pass, block} vocabulary
// onto {allow, deny}, warning exactly once per process the first time a
// legacy value is observed.
func canonicalizeLegacyDecision(raw string) string {
	switch raw {
	case "pass":
		legacyWarnOnce.Do(func() {
			legacyWarnFunc(`remote policy API returned legacy decision "pass"; mapping to "allow" — update the server to the allow/deny vocabulary`)
		})
		return "allow"
	case "block":
		legacyWarnOnce.Do(func() {
			legacyWarnFunc(`remote policy API returned legacy decision "block"; mapping to "deny" — update the server to the allow/deny vocabulary`)
		})
		return "deny"
	default:
		return raw
	}
}

// ErrCircuitOpen is returned by the wrapped call when the breaker refuses
// to let an attempt begin.
var ErrCircuitOpen = errors.New("circuit breaker open")

// DecisionCache is the optional on-disk decision cache a RemotePolicyClient
// consults during its circuit-open fallback window, so a synthesized
// decision has the last known-good answer to fall back to instead of a
// blind fail-open/fail-closed guess. Satisfied by sqlitecache.Store via its
// GetDecision/PutDecision methods.
type DecisionCache interface {
	GetDecision(ctx context.Context, key string) (decision, reason string, ok bool, err error)
	PutDecision(ctx context.Context, key, decision, reason string) error
}

// RemotePolicyClient wraps retry(breaker(call)) around a remote policy
// lookup function, synthesizing a safe decision when every attempt is
// exhausted rather than ever propagating the raw network error.
type RemotePolicyClient struct {
	breaker  *CircuitBreaker
	retry    RetryConfig
	failMode FailMode
	call     func(ctx context.Context) (RemoteDecision, error)
	cache    DecisionCache
}

// NewRemotePolicyClient wires call behind the given breaker and retry
// policy.
func NewRemotePolicyClient(breaker *CircuitBreaker, retry RetryConfig, failMode FailMode, call func(ctx context.Context) (RemoteDecision, error)) *RemotePolicyClient {
	return &RemotePolicyClient{breaker: breaker, retry: retry, failMode: failMode, call: call}
}

// SetDecisionCache attaches an on-disk decision cache. Optional — a client
// with no cache falls straight back to its configured FailMode.
func (c *RemotePolicyClient) SetDecisionCache(cache DecisionCache) {
	c.cache = cache
}

// Evaluate runs the guarded call and canonicalizes its response, with no
// decision-cache fallback. On exhausted failure it returns a synthesized
// decision per failMode and a nil error — the raw network error never
// reaches the policy decision path.
func (c *RemotePolicyClient) Evaluate(ctx context.Context) (RemoteDecision, error) {
	return c.evaluate(ctx, "")
}

// EvaluateWithKey behaves like Evaluate but, on exhausted failure, first
// consults the decision cache (if any) under cacheKey before falling back
// to the configured FailMode. A successful call's decision is cached under
// cacheKey for future fallback use. cacheKey should be a stable fingerprint
// of the request (tool name plus argument hash, typically).
func (c *RemotePolicyClient) EvaluateWithKey(ctx context.Context, cacheKey string) (RemoteDecision, error) {
	return c.evaluate(ctx, cacheKey)
}

func (c *RemotePolicyClient) evaluate(ctx context.Context, cacheKey string) (RemoteDecision, error) {
	var result RemoteDecision
	err := Retry(ctx, c.retry, func(ctx context.Context) error {
		if !c.breaker.BeginAttempt() {
			return ErrCircuitOpen
		}
		decision, callErr := c.call(ctx)
		if callErr != nil {
			c.breaker.RecordFailure()
			return callErr
		}
		c.breaker.RecordSuccess()
		result = decision
		return nil
	})
	if err != nil {
		return c.fallback(ctx, cacheKey, err), nil
	}
	result.Decision = canonicalizeLegacyDecision(result.Decision)
	if cacheKey != "" && c.cache != nil {
		if putErr := c.cache.PutDecision(ctx, cacheKey, result.Decision, result.Reason); putErr != nil {
			// Cache write failures never affect the decision path.
			_ = putErr
		}
	}
	return result, nil
}

// fallback returns the cached decision for cacheKey if one is available,
// else the failMode-synthesized decision.
func (c *RemotePolicyClient) fallback(ctx context.Context, cacheKey string, cause error) RemoteDecision {
	if cacheKey != "" && c.cache != nil {
		if decision, reason, ok, err := c.cache.GetDecision(ctx, cacheKey); err == nil && ok {
			return RemoteDecision{Decision: decision, Reason: fmt.Sprintf("%s (from decision cache, remote unavailable: %s)", reason, cause)}
		}
	}
	return c.synthesize(cause)
}

func (c *RemotePolicyClient) synthesize(cause error) RemoteDecision {
	if c.failMode == FailOpen {
		return RemoteDecision{Decision: "allow", Reason: fmt.Sprintf("remote policy unavailable, fail-open: %s", cause)}
	}
	return RemoteDecision{Decision: "deny", Reason: fmt.Sprintf("remote policy unavailable, fail-closed: %s", cause)}
}
