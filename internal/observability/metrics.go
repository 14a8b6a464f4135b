// Package observability holds the Prometheus collectors of the workout cache.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncRunsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_cache",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Number of sync runs grouped by collection, mode and status.",
	}, []string{"collection", "mode", "status"})

	syncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "workout_cache",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Time spent planning, fetching, merging and persisting a collection.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"collection"})

	recordsAddedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_cache",
		Subsystem: "sync",
		Name:      "records_added_total",
		Help:      "Number of new records merged into the cache.",
	}, []string{"collection"})

	cachedRecordsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "workout_cache",
		Subsystem: "cache",
		Name:      "records",
		Help:      "Number of records in each collection after the last successful sync.",
	}, []string{"collection"})

	lastSuccessGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "workout_cache",
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful sync per collection.",
	}, []string{"collection"})

	pagesFetchedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_cache",
		Subsystem: "upstream",
		Name:      "pages_fetched_total",
		Help:      "Number of upstream pages fetched successfully.",
	}, []string{"resource"})

	cacheCorruptCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_cache",
		Subsystem: "cache",
		Name:      "corrupt_total",
		Help:      "Number of loads that found unparseable state and degraded to an empty collection.",
	}, []string{"collection"})

	cacheLoadFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_cache",
		Subsystem: "cache",
		Name:      "load_failures_total",
		Help:      "Number of loads that failed with an I/O error.",
	}, []string{"collection"})

	cacheWriteFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_cache",
		Subsystem: "cache",
		Name:      "write_failures_total",
		Help:      "Number of persists that failed; the merged snapshot stayed in memory only.",
	}, []string{"collection"})

	publishFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_cache",
		Subsystem: "events",
		Name:      "publish_failures_total",
		Help:      "Number of sync events that could not be published.",
	}, []string{"collection"})
)

func init() {
	prometheus.MustRegister(
		syncRunsCounter,
		syncDuration,
		recordsAddedCounter,
		cachedRecordsGauge,
		lastSuccessGauge,
		pagesFetchedCounter,
		cacheCorruptCounter,
		cacheLoadFailureCounter,
		cacheWriteFailureCounter,
		publishFailureCounter,
	)
}

// RecordSyncRun counts a finished sync run and observes its duration.
func RecordSyncRun(collection, mode, status string, d time.Duration) {
	syncRunsCounter.WithLabelValues(collection, mode, status).Inc()
	syncDuration.WithLabelValues(collection).Observe(d.Seconds())
}

// RecordSyncSuccess updates the per-collection watermarks after a successful sync.
func RecordSyncSuccess(collection string, added, total int, ts time.Time) {
	if added > 0 {
		recordsAddedCounter.WithLabelValues(collection).Add(float64(added))
	}
	cachedRecordsGauge.WithLabelValues(collection).Set(float64(total))
	if !ts.IsZero() {
		lastSuccessGauge.WithLabelValues(collection).Set(float64(ts.Unix()))
	}
}

// RecordPageFetched counts one upstream page.
func RecordPageFetched(resource string) {
	pagesFetchedCounter.WithLabelValues(resource).Inc()
}

// RecordCacheCorrupt counts a load that found unparseable state.
func RecordCacheCorrupt(collection string) {
	cacheCorruptCounter.WithLabelValues(collection).Inc()
}

// RecordCacheLoadFailure counts a load that failed for reasons other than corruption.
func RecordCacheLoadFailure(collection string) {
	cacheLoadFailureCounter.WithLabelValues(collection).Inc()
}

// RecordCacheWriteFailure counts a failed persist.
func RecordCacheWriteFailure(collection string) {
	cacheWriteFailureCounter.WithLabelValues(collection).Inc()
}

// RecordPublishFailure counts a sync event that could not be delivered.
func RecordPublishFailure(collection string) {
	publishFailureCounter.WithLabelValues(collection).Inc()
}
