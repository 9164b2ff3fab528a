// Package telemetry wires the guardrail runtime's Prometheus metrics and
// OpenTelemetry tracing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics the guardrail runtime records.
type Metrics struct {
	ValidationsTotal       *prometheus.CounterVec
	ValidationDuration     *prometheus.HistogramVec
	RulesLoaded            prometheus.Gauge
	CircuitBreakerState    *prometheus.GaugeVec
	RateLimitKeys          prometheus.Gauge
	RemotePolicyCallsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ValidationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Name:      "validations_total",
				Help:      "Total number of tool-call validations processed",
			},
			[]string{"tool", "decision"}, // decision=allow/deny/modify
		),
		ValidationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "guardrail",
				Name:      "validation_duration_seconds",
				Help:      "Validation pipeline duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		RulesLoaded: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "guardrail",
				Name:      "rules_loaded",
				Help:      "Number of rules currently loaded",
			},
		),
		CircuitBreakerState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "guardrail",
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"target"},
		),
		RateLimitKeys: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "guardrail",
				Name:      "rate_limit_keys",
				Help:      "Number of active rate limit keys",
			},
		),
		RemotePolicyCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guardrail",
				Name:      "remote_policy_calls_total",
				Help:      "Total remote policy client calls by outcome",
			},
			[]string{"outcome"}, // outcome=success/retried/circuit_open/fallback
		),
	}
}

// BreakerStateValue maps a resilience.BreakerState label to the fixed
// numeric encoding CircuitBreakerState reports.
func BreakerStateValue(state string) float64 {
	switch state {
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
