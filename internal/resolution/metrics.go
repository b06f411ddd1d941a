package resolution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepsTotal counts resolution sweeps.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_resolution_sweeps_total",
		Help: "Total resolution sweep passes",
	})

	// SweepErrorsTotal counts failed sweeps or settle attempts.
	SweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_resolution_sweep_errors_total",
		Help: "Total resolution sweep failures",
	})

	// ResolvedTotal counts trades settled by resolution, by result.
	ResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_resolution_resolved_total",
		Help: "Total trades settled by market resolution",
	}, []string{"result"})

	// SweepDuration tracks sweep latency.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyfive_resolution_sweep_duration_seconds",
		Help:    "Duration of resolution sweep passes",
		Buckets: prometheus.DefBuckets,
	})
)
