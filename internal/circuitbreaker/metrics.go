package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Enabled is 1 while the agent may place real orders.
	Enabled = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfive_breaker_enabled",
		Help: "Whether real execution is enabled for the agent",
	}, []string{"agent"})

	// Balance is the last observed collateral balance per agent.
	Balance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfive_breaker_collateral_usd",
		Help: "Last observed on-exchange collateral balance",
	}, []string{"agent"})

	// StateChangesTotal counts enable/disable transitions per agent.
	StateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_breaker_state_changes_total",
		Help: "Total breaker state transitions",
	}, []string{"agent"})

	// CheckDuration tracks balance check latency.
	CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyfive_breaker_check_duration_seconds",
		Help:    "Duration of collateral balance checks",
		Buckets: prometheus.DefBuckets,
	})
)
