package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contestscope"

// Metrics owns a private registry so tests can build as many as they like.
// All Observe methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	sourceFetches  *prometheus.CounterVec
	sourceContests *prometheus.GaugeVec
	sourceDuration *prometheus.SummaryVec
	lastSuccessTS  *prometheus.GaugeVec
	aggregateDur   prometheus.Summary
	cacheRequests  *prometheus.CounterVec
	digestOutcomes *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.sourceFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_fetches_total",
		Help:      "Source fetches by outcome",
	}, []string{"source", "status"})
	m.sourceContests = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_contests",
		Help:      "Contests returned by the last fetch of each source",
	}, []string{"source"})
	m.sourceDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  namespace,
		Name:       "source_fetch_duration_seconds",
		Help:       "Time spent fetching one source",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"source"})
	m.lastSuccessTS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful fetch of each source",
	}, []string{"source"})
	m.aggregateDur = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: namespace,
		Name:      "aggregate_duration_seconds",
		Help:      "Time spent on a full aggregation",
	})
	m.cacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Cache lookups by result (hit, mirror, miss)",
	}, []string{"result"})
	m.digestOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "digest_recipients_total",
		Help:      "Digest recipients by outcome",
	}, []string{"status"})

	m.registry.MustRegister(
		m.sourceFetches, m.sourceContests, m.sourceDuration, m.lastSuccessTS,
		m.aggregateDur, m.cacheRequests, m.digestOutcomes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveSource(source string, contests int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.sourceDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if err != nil {
		m.sourceFetches.WithLabelValues(source, "error").Inc()
		return
	}
	m.sourceFetches.WithLabelValues(source, "ok").Inc()
	m.sourceContests.WithLabelValues(source).Set(float64(contests))
	m.lastSuccessTS.WithLabelValues(source).SetToCurrentTime()
}

func (m *Metrics) ObserveAggregate(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.aggregateDur.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDigest(status string) {
	if m == nil {
		return
	}
	m.digestOutcomes.WithLabelValues(status).Inc()
}
