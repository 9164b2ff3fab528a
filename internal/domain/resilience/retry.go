package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff with jitter.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Jitter       func() float64 // uniform[0.5,1.0); defaults to rand-backed jitter when nil
	SleepForTest func(time.Duration)
}

// HTTPStatusError lets Retry classify a failure by HTTP status without
// importing net/http.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return "http status error"
}

// isRetriable reports whether err should trigger another attempt: any
// non-HTTP error, or HTTP 429/5xx. HTTP 4xx other than 429 is terminal.
func isRetriable(err error) bool {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 || httpErr.StatusCode >= 500 {
			return true
		}
		return false
	}
	return true
}

// backoffDelay returns min(baseDelay*2^attempt, maxDelay) scaled by a
// uniform jitter factor in [0.5, 1.0).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	jitter := cfg.Jitter
	if jitter == nil {
		jitter = func() float64 { return 0.5 + rand.Float64()*0.5 }
	}
	return time.Duration(float64(delay) * jitter())
}

// Retry calls fn up to cfg.MaxAttempts times, sleeping with exponential
// backoff and jitter between non-terminal failures. It returns the last
// error when every attempt is exhausted.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	sleep := cfg.SleepForTest
	if sleep == nil {
		sleep = func(d time.Duration) { time.Sleep(d) }
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetriable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		sleep(backoffDelay(cfg, attempt))
	}
	return lastErr
}
