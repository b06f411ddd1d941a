package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTotal counts real order submissions by agent, side and outcome.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_execution_orders_total",
		Help: "Total real orders submitted to the CLOB",
	}, []string{"agent", "side", "status"})

	// OrderDuration tracks order submission latency.
	OrderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyfive_execution_order_duration_seconds",
		Help:    "Duration of order build and submission",
		Buckets: prometheus.DefBuckets,
	})

	// TokenCacheHitsTotal tracks token id cache hits.
	TokenCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_execution_token_cache_hits_total",
		Help: "Total token id cache hits",
	})

	// TokenCacheMissesTotal tracks token id cache misses.
	TokenCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_execution_token_cache_misses_total",
		Help: "Total token id cache misses",
	})
)
