// Package metrics provides observability for the verification module.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Evaluations by resulting max achievable tier
	Evaluations *prometheus.CounterVec

	// Wall time of a full evaluation including context build
	EvaluationLatency prometheus.Histogram

	// Decision validations by outcome
	Decisions *prometheus.CounterVec
}

// New creates a Metrics instance with all verification module metrics registered.
func New() *Metrics {
	return &Metrics{
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pfascert_verification_evaluations_total",
			Help: "Total tier evaluations by resulting max achievable tier",
		}, []string{"max_tier"}),

		EvaluationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pfascert_verification_evaluation_duration_seconds",
			Help:    "Duration of a full tier evaluation including context build",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pfascert_verification_decisions_total",
			Help: "Total decision validations by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveEvaluation records one completed evaluation.
func (m *Metrics) ObserveEvaluation(maxTier int, d time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(strconv.Itoa(maxTier)).Inc()
	m.EvaluationLatency.Observe(d.Seconds())
}

// ObserveDecision records one decision validation outcome.
func (m *Metrics) ObserveDecision(valid bool) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}
