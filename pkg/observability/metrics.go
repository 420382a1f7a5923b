// Package observability provides Prometheus instrumentation for the
// turn-processing pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors recorded by the orchestrator. A nil
// *Metrics is valid and records nothing, so instrumentation stays
// optional.
type Metrics struct {
	turnsTotal        *prometheus.CounterVec
	executorDuration  *prometheus.HistogramVec
	rateLimitRejected prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tellerflow_turns_total",
				Help: "Total number of processed turns by outcome category",
			},
			[]string{"category"},
		),
		executorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tellerflow_executor_duration_seconds",
				Help: "Duration of backend executor dispatches",
			},
			[]string{"intent"},
		),
		rateLimitRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tellerflow_rate_limit_rejections_total",
				Help: "Total number of turns rejected by the rate limiter",
			},
		),
	}
	reg.MustRegister(m.turnsTotal, m.executorDuration, m.rateLimitRejected)
	return m
}

// ObserveTurn records a completed turn with its outcome category. An
// empty category means the turn succeeded.
func (m *Metrics) ObserveTurn(category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "ok"
	}
	m.turnsTotal.WithLabelValues(category).Inc()
}

// ObserveExecution records the duration of an executor dispatch.
func (m *Metrics) ObserveExecution(intent string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.executorDuration.WithLabelValues(intent).Observe(elapsed.Seconds())
}

// ObserveRateLimitRejection records a turn rejected by the limiter.
func (m *Metrics) ObserveRateLimitRejection() {
	if m == nil {
		return
	}
	m.rateLimitRejected.Inc()
}
