// Package metrics centralizes the prometheus collectors shared across
// subsystems, gated by Enabled() so that hot paths can skip bookkeeping
// entirely when no one scrapes them.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

// Enable turns on metrics collection; intended to be called once during
// startup if a /metrics endpoint is actually being served.
func Enable() { enabled.Store(true) }

// Enabled reports whether metrics collection is currently turned on.
func Enabled() bool { return enabled.Load() }

var (
	// PromGCDurationMilliseconds records how long a cleanup sweep took.
	PromGCDurationMilliseconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "serma_cleanup_duration_milliseconds",
		Help:    "Time taken by a cleanup sweep, in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	})

	// PromRecordsCount is the current count of Records in the KV store.
	PromRecordsCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "serma_records_total",
		Help: "Number of records currently stored.",
	})

	// PromEnrichedCount is the current count of Records with metadata.
	PromEnrichedCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "serma_enriched_total",
		Help: "Number of records with a verified info dict.",
	})

	// PromSightingsTotal counts DHT-derived sightings, deduplicated or not.
	PromSightingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "serma_sightings_total",
		Help: "Count of info-hash sightings observed by the spider.",
	}, []string{"deduped"})

	// PromEnrichAttemptsTotal counts finished per-info-hash enrichment
	// runs by outcome (success or exhausted).
	PromEnrichAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "serma_enrich_attempts_total",
		Help: "Count of finished per-info-hash metadata enrichment runs by outcome.",
	}, []string{"outcome"})

	// PromDHTPacketsTotal counts inbound DHT packets by outcome.
	PromDHTPacketsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "serma_dht_packets_total",
		Help: "Count of inbound DHT UDP packets by disposition.",
	}, []string{"disposition"})

	// PromSearchDurationMilliseconds records full-text query latency.
	PromSearchDurationMilliseconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "serma_search_duration_milliseconds",
		Help:    "Time taken to serve a search query, in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})
)

func init() {
	prometheus.MustRegister(
		PromGCDurationMilliseconds,
		PromRecordsCount,
		PromEnrichedCount,
		PromSightingsTotal,
		PromEnrichAttemptsTotal,
		PromDHTPacketsTotal,
		PromSearchDurationMilliseconds,
	)
}
