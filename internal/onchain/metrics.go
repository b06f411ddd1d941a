package onchain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectsTotal counts successful log subscriptions.
	ConnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_onchain_connects_total",
		Help: "Total successful on-chain log subscriptions",
	})

	// DisconnectsTotal counts dropped subscriptions.
	DisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_onchain_disconnects_total",
		Help: "Total dropped on-chain log subscriptions",
	})

	// FillsTotal counts donor fills observed on-chain by side.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_onchain_donor_fills_total",
		Help: "Total donor order fills observed on-chain",
	}, []string{"side"})

	// PreExecTotal counts successful pre-executions per agent and side.
	PreExecTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_onchain_pre_executions_total",
		Help: "Total real orders pre-executed from on-chain fills",
	}, []string{"agent", "side"})

	// PreExecDuration tracks pre-execution latency.
	PreExecDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyfive_onchain_pre_execution_duration_seconds",
		Help:    "Duration of on-chain triggered order pre-execution",
		Buckets: prometheus.DefBuckets,
	})
)
