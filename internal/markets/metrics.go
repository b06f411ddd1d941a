package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchDuration tracks Gamma API fetch latency.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyfive_markets_fetch_duration_seconds",
		Help:    "Duration of market fetches from the Gamma API",
		Buckets: prometheus.DefBuckets,
	})

	// FetchErrorsTotal tracks Gamma fetch failures.
	FetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_markets_fetch_errors_total",
		Help: "Total number of Gamma API fetch errors",
	})

	// TokenCacheHitsTotal tracks cache hits for token reverse lookups.
	TokenCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_markets_token_cache_hits_total",
		Help: "Total number of token lookup cache hits",
	})

	// TokenCacheMissesTotal tracks cache misses for token reverse lookups.
	TokenCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_markets_token_cache_misses_total",
		Help: "Total number of token lookup cache misses",
	})
)
