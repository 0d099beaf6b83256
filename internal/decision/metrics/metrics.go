package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Applications accepted for evaluation
	ApplicationsCreated prometheus.Counter

	// Decision outcomes by status ("APPROVED", "REJECTED") and risk source
	DecisionOutcome *prometheus.CounterVec

	// Evaluations aborted before a decision, by error code
	DecisionFailure *prometheus.CounterVec

	// Overall evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ApplicationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopcredit_applications_created_total",
			Help: "Total credit applications created in PENDING status",
		}),

		DecisionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopcredit_decision_outcomes_total",
			Help: "Total credit decisions by status and risk assessment source",
		}, []string{"status", "risk_source"}),

		DecisionFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopcredit_decision_failures_total",
			Help: "Evaluations that ended without a committed decision, by code",
		}, []string{"code"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coopcredit_decision_evaluate_duration_seconds",
			Help:    "Duration of full application evaluation including risk assessment",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementCreated records a new pending application.
func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.ApplicationsCreated.Inc()
	}
}

// IncrementOutcome records a committed decision.
func (m *Metrics) IncrementOutcome(status, riskSource string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(status, riskSource).Inc()
	}
}

// IncrementFailure records an evaluation that did not commit.
func (m *Metrics) IncrementFailure(code string) {
	if m != nil {
		m.DecisionFailure.WithLabelValues(code).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
