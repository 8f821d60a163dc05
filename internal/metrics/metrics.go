// Package metrics exposes Prometheus instrumentation for the cache
// coordinator and the aggregation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus registry and instruments.
type Collector struct {
	registry *prometheus.Registry

	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheCoalesced   prometheus.Counter
	fetchFailures    prometheus.Counter
	aggregations     prometheus.Counter
	aggregationTimes prometheus.Histogram
	snapshotWrites   prometheus.Counter
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	return &Collector{
		registry: registry,
		cacheHits: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "folio_cache_hits_total",
			Help: "Gets served from a fresh cached value",
		}),
		cacheMisses: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "folio_cache_misses_total",
			Help: "Gets that started an upstream fetch",
		}),
		cacheCoalesced: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "folio_cache_coalesced_total",
			Help: "Gets attached to an already in-flight fetch",
		}),
		fetchFailures: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "folio_fetch_failures_total",
			Help: "Upstream fetches that returned an error",
		}),
		aggregations: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "folio_aggregations_total",
			Help: "Portfolio balance aggregations performed",
		}),
		aggregationTimes: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_aggregation_duration_seconds",
			Help:    "Wall time of one portfolio aggregation",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotWrites: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "folio_snapshot_writes_total",
			Help: "Portfolio snapshots persisted",
		}),
	}
}

// Hit implements cache.Recorder.
func (c *Collector) Hit() { c.cacheHits.Inc() }

// Miss implements cache.Recorder.
func (c *Collector) Miss() { c.cacheMisses.Inc() }

// Coalesced implements cache.Recorder.
func (c *Collector) Coalesced() { c.cacheCoalesced.Inc() }

// FetchFailed implements cache.Recorder.
func (c *Collector) FetchFailed() { c.fetchFailures.Inc() }

// ObserveAggregation records one completed aggregation.
func (c *Collector) ObserveAggregation(d time.Duration) {
	c.aggregations.Inc()
	c.aggregationTimes.Observe(d.Seconds())
}

// SnapshotWritten records one persisted snapshot.
func (c *Collector) SnapshotWritten() { c.snapshotWrites.Inc() }

// Handler returns the /metrics HTTP handler for this registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
