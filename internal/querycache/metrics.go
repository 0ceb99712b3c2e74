// ABOUTME: Prometheus metrics for the query cache
// ABOUTME: Fetch, retry, and dedup counters plus a live entry gauge

package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	fetchesTotal   *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	dedupTotal     prometheus.Counter
	discardedTotal prometheus.Counter
	entries        prometheus.Gauge
}

// newMetrics registers the cache collectors on reg. A nil reg gets a private
// registry so several caches can coexist in one process.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &metrics{
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "technoshield_querycache_fetches_total",
				Help: "Total number of completed query fetches",
			},
			[]string{"endpoint", "result"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "technoshield_querycache_retries_total",
				Help: "Total number of fetch retries after a transient failure",
			},
			[]string{"endpoint"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "technoshield_querycache_fetch_duration_seconds",
				Help:    "Fetch duration including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		dedupTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "technoshield_querycache_dedup_total",
				Help: "Requests served by attaching to an in-flight fetch",
			},
		),
		discardedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "technoshield_querycache_discarded_total",
				Help: "Fetch results dropped because they were superseded or the entry was disposed",
			},
		),
		entries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "technoshield_querycache_entries",
				Help: "Number of entries currently held by the cache",
			},
		),
	}
}
