// Package metrics exposes analysis counters for Prometheus scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. All methods are safe on a
// nil receiver, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sourcesTotal     *prometheus.CounterVec
	endpointsTotal   *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	truncationsTotal prometheus.Counter
	analysisSeconds  prometheus.Histogram
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sourcesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "endpointfinder_sources_total",
				Help: "Sources analyzed, by kind",
			},
			[]string{"kind"},
		),
		endpointsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "endpointfinder_endpoints_total",
				Help: "Endpoints extracted, by matcher",
			},
			[]string{"matcher"},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "endpointfinder_failures_total",
				Help: "Sources that could not be analyzed, by stage",
			},
			[]string{"stage"},
		),
		truncationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "endpointfinder_truncations_total",
			Help: "Sources whose argument resolution hit an expansion ceiling",
		}),
		analysisSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "endpointfinder_analysis_seconds",
			Help:    "Time spent analyzing one source",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(
		m.sourcesTotal,
		m.endpointsTotal,
		m.failuresTotal,
		m.truncationsTotal,
		m.analysisSeconds,
	)
	return m
}

// Source records one analyzed source of the given kind.
func (m *Metrics) Source(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.sourcesTotal.WithLabelValues(kind).Inc()
	m.analysisSeconds.Observe(took.Seconds())
}

// Endpoint records one endpoint extracted by matcher.
func (m *Metrics) Endpoint(matcher string) {
	if m == nil {
		return
	}
	m.endpointsTotal.WithLabelValues(matcher).Inc()
}

// Failure records a source that failed at stage (fetch, parse, analyze).
func (m *Metrics) Failure(stage string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(stage).Inc()
}

// Truncation records a resolution cut short by a ceiling.
func (m *Metrics) Truncation() {
	if m == nil {
		return
	}
	m.truncationsTotal.Inc()
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
