package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// LocksAcquiredTotal counts position locks granted.
	LocksAcquiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_dedup_locks_acquired_total",
		Help: "Total number of position locks acquired",
	})

	// LockRejectionsTotal counts lock attempts rejected while held.
	LockRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_dedup_lock_rejections_total",
		Help: "Total number of lock attempts rejected because the slot was held",
	})

	// PreExecutedMarksTotal counts transaction references marked pre-executed.
	PreExecutedMarksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_dedup_pre_executed_marks_total",
		Help: "Total number of transaction references marked as pre-executed",
	})

	// PreExecutedHitsTotal counts redundant executions avoided.
	PreExecutedHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_dedup_pre_executed_hits_total",
		Help: "Total number of redundant real orders skipped via the pre-executed set",
	})

	// ActiveLocks tracks currently held position locks.
	ActiveLocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyfive_dedup_active_locks",
		Help: "Number of currently held position locks",
	})

	// PreExecutedSetSize tracks the pre-executed set size.
	PreExecutedSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyfive_dedup_pre_executed_set_size",
		Help: "Number of entries in the pre-executed transaction set",
	})
)
