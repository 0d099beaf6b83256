package risk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the risk gateway.
type Metrics struct {
	// Provider call outcomes by result ("success", "failure") and category
	ProviderCalls *prometheus.CounterVec

	// Latency of individual provider attempts
	ProviderLatency prometheus.Histogram

	// Fallback assessments by trigger ("circuit_open", "provider_error")
	Fallbacks *prometheus.CounterVec

	// Breaker state: 0 closed, 1 open, 2 half-open
	BreakerState *prometheus.GaugeVec
}

// NewMetrics registers the gateway metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopcredit_risk_provider_calls_total",
			Help: "Risk provider attempts by result and failure category",
		}, []string{"result", "category"}),

		ProviderLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coopcredit_risk_provider_duration_seconds",
			Help:    "Duration of single risk provider attempts",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopcredit_risk_fallback_total",
			Help: "Assessments served by the offline fallback by trigger",
		}, []string{"trigger"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coopcredit_risk_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"breaker"}),
	}
}

// ObserveAttempt records one provider attempt.
func (m *Metrics) ObserveAttempt(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderLatency.Observe(d.Seconds())
	if err != nil {
		m.ProviderCalls.WithLabelValues("failure", string(Category(err))).Inc()
		return
	}
	m.ProviderCalls.WithLabelValues("success", "").Inc()
}

// IncrementFallback records a degraded assessment.
func (m *Metrics) IncrementFallback(trigger string) {
	if m != nil {
		m.Fallbacks.WithLabelValues(trigger).Inc()
	}
}

// SetBreakerState publishes the current breaker state.
func (m *Metrics) SetBreakerState(name string, s State) {
	if m != nil {
		m.BreakerState.WithLabelValues(name).Set(float64(s))
	}
}
