// Package resilience implements the supporting reliability primitives the
// remote policy client leans on: a circuit breaker, retry with
// exponential backoff and jitter, and the client itself.
package resilience

import (
	"sync"
	"time"
)

// BreakerState is one of the three circuit breaker states.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// BreakerConfig configures a CircuitBreaker's thresholds.
type BreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxAttempts int
}

// CircuitBreaker is a closed/open/half-open state machine with an
// injectable clock, mirroring SlidingWindowRateLimiter's mutex-guarded,
// now()-driven design.
type CircuitBreaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu               sync.Mutex
	state            BreakerState
	consecutiveFails int
	openedAt         time.Time
	halfOpenInFlight int
}

// NewCircuitBreaker creates a closed breaker using time.Now as its clock.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return NewCircuitBreakerWithClock(cfg, time.Now)
}

// NewCircuitBreakerWithClock creates a closed breaker using the supplied
// clock, for deterministic tests.
func NewCircuitBreakerWithClock(cfg BreakerConfig, now func() time.Time) *CircuitBreaker {
	if cfg.HalfOpenMaxAttempts <= 0 {
		cfg.HalfOpenMaxAttempts = 1
	}
	return &CircuitBreaker{cfg: cfg, now: now, state: StateClosed}
}

// State reports the breaker's current state, first applying the
// open-to-half-open timeout transition if due.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()
	return b.state
}

func (b *CircuitBreaker) maybeTransitionToHalfOpenLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		b.state = StateHalfOpen
		b.halfOpenInFlight = 0
	}
}

// BeginAttempt reports whether a call may proceed. In closed and
// half-open (with available probe slots) it returns true; in open
// (before the reset timeout) and half-open-at-capacity it returns false.
func (b *CircuitBreaker) BeginAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxAttempts {
			return false
		}
		b.halfOpenInFlight++
		return true
	default: // StateOpen
		return false
	}
}

// RecordSuccess resets the failure counter; in half-open it closes the
// breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.halfOpenInFlight = 0
	}
}

// RecordFailure increments the failure counter, tripping the breaker
// open once the threshold is reached; in half-open any failure reopens
// it immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.openLocked()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.cfg.FailureThreshold {
		b.openLocked()
	}
}

func (b *CircuitBreaker) openLocked() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.consecutiveFails = 0
	b.halfOpenInFlight = 0
}
