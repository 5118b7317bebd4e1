package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novel_runtime_slice_cache_lookups_total",
			Help: "Slice cache lookups by result (hit/miss) and mode (foreground/prefetch).",
		},
		[]string{"result", "mode"},
	)
	coalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "novel_runtime_slice_coalesced_total",
			Help: "Requests that joined an in-flight generation instead of starting a new one.",
		},
	)
	generationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "novel_runtime_slice_generations_in_flight",
			Help: "Slice generations currently holding a limiter slot.",
		},
	)
	limiterWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "novel_runtime_slice_limiter_wait_seconds",
			Help:    "Time spent waiting for a generation slot.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
	prefetchTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novel_runtime_prefetch_tasks_total",
			Help: "Prefetch tasks by outcome (enqueued/dropped).",
		},
		[]string{"outcome"},
	)
	cacheEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "novel_runtime_slice_cache_evicted_total",
			Help: "Expired slice cache entries removed by the janitor.",
		},
	)
)

func mode(prefetch bool) string {
	if prefetch {
		return "prefetch"
	}
	return "foreground"
}
