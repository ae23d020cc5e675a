package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	storageFetches *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	blocksSaved    prometheus.Counter
	blocksDeleted  prometheus.Counter

	formSubmissions *prometheus.CounterVec

	sweeperDeleted prometheus.Counter
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),

		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Owner block lists served from the cache",
			},
			[]string{"kind"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Owner block lists not found in the cache",
			},
			[]string{"kind"},
		),
		storageFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_fetches_total",
				Help:      "Batched block fetches issued to the database",
			},
			[]string{"kind"},
		),
		fetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_fetch_latency_seconds",
				Help:      "Time spent fetching blocks from the database",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		blocksSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blocks_saved_total",
				Help:      "Blocks inserted or updated",
			},
		),
		blocksDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blocks_deleted_total",
				Help:      "Orphan blocks deleted after a form save",
			},
		),
		formSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "form_submissions_total",
				Help:      "Form submissions by outcome",
			},
			[]string{"outcome"},
		),
		sweeperDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeper_deleted_total",
				Help:      "Unreachable blocks removed by the sweeper",
			},
		),
	}

	m.registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.storageFetches,
		m.fetchLatency,
		m.blocksSaved,
		m.blocksDeleted,
		m.formSubmissions,
		m.sweeperDeleted,
	)
	return m
}

func (m *PrometheusMetrics) IncCacheHits(kind string) {
	m.cacheHits.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) IncCacheMisses(kind string) {
	m.cacheMisses.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) IncStorageFetches(kind string) {
	m.storageFetches.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) ObserveFetchLatency(kind string, latency time.Duration) {
	m.fetchLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

func (m *PrometheusMetrics) AddBlocksSaved(count int) {
	m.blocksSaved.Add(float64(count))
}

func (m *PrometheusMetrics) AddBlocksDeleted(count int) {
	m.blocksDeleted.Add(float64(count))
}

func (m *PrometheusMetrics) IncFormSubmissions(outcome string) {
	m.formSubmissions.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) AddSweeperDeleted(count int) {
	m.sweeperDeleted.Add(float64(count))
}

// HTTPHandler returns an HTTP handler for serving metrics.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

var _ Metrics = (*PrometheusMetrics)(nil)
