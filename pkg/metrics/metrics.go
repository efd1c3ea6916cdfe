// Package metrics defines the Prometheus collectors used by the retrieval
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    *prometheus.HistogramVec
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	SnapshotVersion      prometheus.Gauge
	SnapshotMoments      prometheus.Gauge
	SnapshotTerms        prometheus.Gauge
	SnapshotTags         prometheus.Gauge
	ReloadsTotal         *prometheus.CounterVec
	ReloadDuration       prometheus.Histogram
	ReloadRetriesTotal   prometheus.Counter
	RecordsSkippedTotal  prometheus.Counter
	AnalyticsEventsTotal *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echomindr_queries_total",
				Help: "Queries by operation and outcome (ok, zero_result, error).",
			},
			[]string{"operation", "outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "echomindr_query_latency_seconds",
				Help:    "Query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation", "cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "echomindr_query_results_count",
				Help:    "Number of moments returned per query.",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
			},
			[]string{"operation"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echomindr_cache_hits_total",
				Help: "Query cache hits by operation.",
			},
			[]string{"operation"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echomindr_cache_misses_total",
				Help: "Query cache misses by operation.",
			},
			[]string{"operation"},
		),
		SnapshotVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "echomindr_snapshot_version",
				Help: "Version of the snapshot currently served.",
			},
		),
		SnapshotMoments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "echomindr_snapshot_moments",
				Help: "Moments in the snapshot currently served.",
			},
		),
		SnapshotTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "echomindr_snapshot_terms",
				Help: "Distinct lexical terms in the snapshot currently served.",
			},
		),
		SnapshotTags: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "echomindr_snapshot_tags",
				Help: "Distinct tags in the snapshot currently served.",
			},
		),
		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echomindr_reloads_total",
				Help: "Corpus reloads by status.",
			},
			[]string{"status"},
		),
		ReloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "echomindr_reload_duration_seconds",
				Help:    "Time to load the corpus and build a snapshot.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		ReloadRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "echomindr_reload_retries_total",
				Help: "Source reads retried during corpus reloads.",
			},
		),
		RecordsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "echomindr_records_skipped_total",
				Help: "Upstream records rejected while loading the corpus.",
			},
		),
		AnalyticsEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echomindr_analytics_events_total",
				Help: "Analytics events by outcome (tracked, dropped, published, failed).",
			},
			[]string{"outcome"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.SnapshotVersion,
		m.SnapshotMoments,
		m.SnapshotTerms,
		m.SnapshotTags,
		m.ReloadsTotal,
		m.ReloadDuration,
		m.ReloadRetriesTotal,
		m.RecordsSkippedTotal,
		m.AnalyticsEventsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveQuery records one finished query. A nil Metrics is a no-op.
func (m *Metrics) ObserveQuery(operation string, results int, cacheHit bool, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case results == 0:
		outcome = "zero_result"
	}
	m.QueriesTotal.WithLabelValues(operation, outcome).Inc()
	if err != nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		m.CacheHitsTotal.WithLabelValues(operation).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(operation).Inc()
	}
	m.QueryLatency.WithLabelValues(operation, cacheStatus).Observe(elapsed.Seconds())
	m.QueryResultsCount.WithLabelValues(operation).Observe(float64(results))
}

// ObserveReload records a reload attempt. A nil Metrics is a no-op.
func (m *Metrics) ObserveReload(elapsed time.Duration, skipped int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ReloadsTotal.WithLabelValues("failed").Inc()
		return
	}
	m.ReloadsTotal.WithLabelValues("ok").Inc()
	m.ReloadDuration.Observe(elapsed.Seconds())
	m.RecordsSkippedTotal.Add(float64(skipped))
}

func (m *Metrics) ObserveReloadRetry() {
	if m == nil {
		return
	}
	m.ReloadRetriesTotal.Inc()
}

// SetSnapshot publishes the size of the snapshot now being served.
func (m *Metrics) SetSnapshot(version uint64, moments, terms, tags int) {
	if m == nil {
		return
	}
	m.SnapshotVersion.Set(float64(version))
	m.SnapshotMoments.Set(float64(moments))
	m.SnapshotTerms.Set(float64(terms))
	m.SnapshotTags.Set(float64(tags))
}

// SetBreakerState maps a breaker state name onto the gauge encoding.
func (m *Metrics) SetBreakerState(name, state string) {
	if m == nil {
		return
	}
	v := 0.0
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
