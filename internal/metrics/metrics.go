// Package metrics exposes Prometheus counters for the generation lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Generation outcomes recorded by the service.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeOverloaded = "overloaded"
	OutcomeNotFound   = "user_not_found"
	OutcomeFailed     = "failed"
	OutcomeCancelled  = "cancelled"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	generations *prometheus.CounterVec
	latency     prometheus.Histogram
	uploads     prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "generations_total",
			Help:      "Generation requests by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "studio",
			Name:      "generation_simulated_latency_seconds",
			Help:      "Simulated processing delay applied to accepted generations.",
			Buckets:   []float64{0.25, 0.5, 1, 1.25, 1.5, 1.75, 2, 3},
		}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "artifact_uploads_total",
			Help:      "Uploaded images written to artifact storage.",
		}),
	}
	reg.MustRegister(m.generations, m.latency, m.uploads)
	return m
}

// Generation counts one finished generation request.
func (m *Metrics) Generation(outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
}

// Latency observes an applied simulated delay in seconds.
func (m *Metrics) Latency(seconds float64) {
	if m == nil {
		return
	}
	m.latency.Observe(seconds)
}

// Upload counts one stored artifact.
func (m *Metrics) Upload() {
	if m == nil {
		return
	}
	m.uploads.Inc()
}
