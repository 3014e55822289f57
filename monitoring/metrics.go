// Package monitoring provides metrics and observability for the dynamic cleaner backend
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote API call metrics
	apiCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_api_calls_total",
			Help: "Total number of remote API calls",
		},
		[]string{"endpoint", "status"},
	)

	apiCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cleaner_api_call_duration_seconds",
			Help:    "Duration of remote API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	// Pipeline metrics
	pagesVisitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cleaner_pages_visited_total",
			Help: "Total number of feed pages visited",
		},
	)

	itemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_items_processed_total",
			Help: "Total number of feed items run through the decision pipeline",
		},
		[]string{"decision"},
	)

	deletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_deletions_total",
			Help: "Total number of deletion attempts by classified outcome",
		},
		[]string{"status"},
	)

	unfollowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_unfollows_total",
			Help: "Total number of unfollow attempts",
		},
		[]string{"status"},
	)

	lotteryLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_lottery_lookups_total",
			Help: "Total number of giveaway status lookups",
		},
		[]string{"outcome"},
	)

	// Cache metrics
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"operation"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"operation"},
	)

	// Run state metrics
	runActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cleaner_run_active",
			Help: "Whether a cleanup run is currently active (1) or not (0)",
		},
	)

	unfollowQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cleaner_unfollow_queue_size",
			Help: "Current number of authors queued for unfollowing",
		},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_http_requests_total",
			Help: "Total number of HTTP requests to the control API",
		},
		[]string{"method", "endpoint", "status"},
	)
)

// RecordAPICall records metrics for a remote API call
func RecordAPICall(endpoint, status string, duration float64) {
	apiCallsTotal.WithLabelValues(endpoint, status).Inc()
	apiCallDuration.WithLabelValues(endpoint, status).Observe(duration)
}

// RecordPageVisited records a visited feed page
func RecordPageVisited() {
	pagesVisitedTotal.Inc()
}

// RecordItemProcessed records an item decision (delete/skip)
func RecordItemProcessed(decision string) {
	itemsProcessedTotal.WithLabelValues(decision).Inc()
}

// RecordDeletion records a classified deletion outcome
func RecordDeletion(status string) {
	deletionsTotal.WithLabelValues(status).Inc()
}

// RecordUnfollow records an unfollow attempt outcome
func RecordUnfollow(status string) {
	unfollowsTotal.WithLabelValues(status).Inc()
}

// RecordLotteryLookup records a giveaway lookup outcome
func RecordLotteryLookup(outcome string) {
	lotteryLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(operation string) {
	cacheHits.WithLabelValues(operation).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(operation string) {
	cacheMisses.WithLabelValues(operation).Inc()
}

// SetRunActive updates the active-run gauge
func SetRunActive(active bool) {
	if active {
		runActive.Set(1)
	} else {
		runActive.Set(0)
	}
}

// SetUnfollowQueueSize updates the unfollow queue size gauge
func SetUnfollowQueueSize(size int) {
	unfollowQueueSize.Set(float64(size))
}

// RecordHTTPRequest records a control API request
func RecordHTTPRequest(method, endpoint, status string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}
