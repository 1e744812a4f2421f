// Package metrics provides Prometheus instrumentation for condition evaluation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dossier"

// Outcome labels for evaluation counters.
const (
	OutcomeMatched     = "matched"
	OutcomeUnmatched   = "unmatched"
	OutcomeUnevaluated = "unevaluated"
	OutcomeError       = "error"
)

// EvaluationMetrics tracks engine activity.
//
// Metrics:
//   - dossier_evaluations_total: root evaluations by outcome
//   - dossier_evaluation_duration_seconds: root evaluation duration
//   - dossier_regex_timeouts_total: regex scans abandoned on timeout
//   - dossier_pattern_cache_requests_total: pattern cache lookups by result (hit/miss)
//   - dossier_agent_queries_total: external service queries by status
//
// A nil *EvaluationMetrics is valid and records nothing.
type EvaluationMetrics struct {
	evaluations   *prometheus.CounterVec
	duration      prometheus.Histogram
	regexTimeouts prometheus.Counter
	patternCache  *prometheus.CounterVec
	agentQueries  *prometheus.CounterVec
}

// New creates evaluation metrics and registers them with reg. A nil reg
// creates a private registry.
func New(reg prometheus.Registerer) *EvaluationMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &EvaluationMetrics{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of root condition evaluations",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of root condition evaluations in seconds",
				// Local trees finish in microseconds; external queries push into seconds
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
		),
		regexTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "regex_timeouts_total",
				Help:      "Regex scans abandoned because they exceeded the match timeout",
			},
		),
		patternCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pattern_cache_requests_total",
				Help:      "Compiled pattern cache lookups",
			},
			[]string{"result"},
		),
		agentQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_queries_total",
				Help:      "Queries sent to the external text-classification service",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.evaluations,
		m.duration,
		m.regexTimeouts,
		m.patternCache,
		m.agentQueries,
	)

	return m
}

// RecordEvaluation records one root evaluation.
func (m *EvaluationMetrics) RecordEvaluation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

// RecordRegexTimeout records a regex scan that hit its deadline.
func (m *EvaluationMetrics) RecordRegexTimeout() {
	if m == nil {
		return
	}
	m.regexTimeouts.Inc()
}

// RecordPatternCache records a pattern cache lookup.
func (m *EvaluationMetrics) RecordPatternCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.patternCache.WithLabelValues("hit").Inc()
		return
	}
	m.patternCache.WithLabelValues("miss").Inc()
}

// RecordAgentQuery records an external service query ("ok", "error", "unavailable").
func (m *EvaluationMetrics) RecordAgentQuery(status string) {
	if m == nil {
		return
	}
	m.agentQueries.WithLabelValues(status).Inc()
}
