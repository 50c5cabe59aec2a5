// Package metrics defines the Prometheus metric collectors used across the
// classifier and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the classifier.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	BatchesTotal         *prometheus.CounterVec
	BatchSize            prometheus.Histogram
	AlertsTotal          prometheus.Counter
	FilterLatency        *prometheus.HistogramVec
	TopicMatchesTotal    *prometheus.CounterVec
	FilterErrorsTotal    *prometheus.CounterVec
	PublishedTotal       *prometheus.CounterVec
	XmatchLookupsTotal   *prometheus.CounterVec
	XmatchCacheHitsTotal prometheus.Counter
	XmatchCacheMissTotal prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_batches_total",
				Help: "Total alert batches consumed by outcome (ok, malformed, degraded).",
			},
			[]string{"outcome"},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "alert_batch_size",
				Help:    "Number of alert records per batch.",
				Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
			},
		),
		AlertsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "alerts_processed_total",
				Help: "Total alert records evaluated.",
			},
		),
		FilterLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filter_evaluation_seconds",
				Help:    "Per-topic filter evaluation latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"topic"},
		),
		TopicMatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topic_matches_total",
				Help: "Total alert records matched per science topic.",
			},
			[]string{"topic"},
		),
		FilterErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filter_errors_total",
				Help: "Total structural filter failures per science topic.",
			},
			[]string{"topic"},
		),
		PublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_published_total",
				Help: "Total matched alerts published downstream per science topic.",
			},
			[]string{"topic"},
		),
		XmatchLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crossmatch_lookups_total",
				Help: "Total catalog crossmatch lookups by result (match, none, timeout, error).",
			},
			[]string{"result"},
		),
		XmatchCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crossmatch_cache_hits_total",
				Help: "Total crossmatch cache hits.",
			},
		),
		XmatchCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crossmatch_cache_misses_total",
				Help: "Total crossmatch cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.BatchesTotal,
		m.BatchSize,
		m.AlertsTotal,
		m.FilterLatency,
		m.TopicMatchesTotal,
		m.FilterErrorsTotal,
		m.PublishedTotal,
		m.XmatchLookupsTotal,
		m.XmatchCacheHitsTotal,
		m.XmatchCacheMissTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
