package site

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "specview"

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	catalogLoads   *prometheus.CounterVec
	renderFailures prometheus.Counter
	builds         *prometheus.CounterVec
	buildDuration  prometheus.Histogram
	catalogEntries prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		catalogLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "catalog_loads_total",
			Help:      "Page-view catalog loads by source and resulting state.",
		}, []string{"source", "state"}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "render_failures_total",
			Help:      "Selected specs that failed to fetch or validate.",
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "builds_total",
			Help:      "Site builds by result.",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of successful site builds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		catalogEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "catalog_entries",
			Help:      "Entries written by the last successful build.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.catalogLoads,
		m.renderFailures,
		m.builds,
		m.buildDuration,
		m.catalogEntries,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBuild records the outcome of a build.
func (m *Metrics) ObserveBuild(entries int, duration time.Duration, err error) {
	if err != nil {
		m.builds.WithLabelValues("failure").Inc()
		return
	}
	m.builds.WithLabelValues("success").Inc()
	m.buildDuration.Observe(duration.Seconds())
	m.catalogEntries.Set(float64(entries))
}
