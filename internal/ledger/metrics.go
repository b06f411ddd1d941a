package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsTotal counts intents reaching the engine by source and side.
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_ledger_intents_total",
		Help: "Total trade intents consumed by the copy engine",
	}, []string{"source", "side"})

	// TradesOpenedTotal counts virtual positions opened per agent.
	TradesOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_ledger_trades_opened_total",
		Help: "Total virtual trades opened",
	}, []string{"agent"})

	// TradesClosedTotal counts virtual positions closed per agent and result.
	TradesClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_ledger_trades_closed_total",
		Help: "Total virtual trades closed",
	}, []string{"agent", "result"})

	// SkippedTotal counts intents dropped before opening, by reason.
	SkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_ledger_skipped_total",
		Help: "Total intents skipped by the copy engine",
	}, []string{"reason"})

	// ReconciliationsTotal counts trades adjusted to real fill terms.
	ReconciliationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_ledger_reconciliations_total",
		Help: "Total virtual trades reconciled against real executions",
	})

	// BalanceSyncsTotal counts successful real-balance snapshot writes.
	BalanceSyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_ledger_balance_syncs_total",
		Help: "Total real collateral balance snapshots recorded",
	})
)
