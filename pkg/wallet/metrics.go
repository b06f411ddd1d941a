package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// MATICBalance tracks the MATIC balance of each agent funder wallet.
	MATICBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfive_wallet_matic_balance",
		Help: "Current MATIC balance of the agent funder wallet (native units)",
	}, []string{"agent"})

	// USDCBalance tracks the USDC balance of each agent funder wallet.
	USDCBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfive_wallet_usdc_balance",
		Help: "Current USDC balance of the agent funder wallet (USD)",
	}, []string{"agent"})

	// USDCAllowance tracks the USDC allowance approved to the CTF Exchange.
	USDCAllowance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfive_wallet_usdc_allowance",
		Help: "USDC allowance approved to CTF Exchange (USD)",
	}, []string{"agent"})

	// ActivePositions tracks the number of real open positions per agent.
	ActivePositions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfive_wallet_active_positions",
		Help: "Number of real open positions",
	}, []string{"agent"})

	// TotalPositionValue tracks the current value of real positions per agent.
	TotalPositionValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfive_wallet_total_position_value",
		Help: "Sum of real position current values (USD)",
	}, []string{"agent"})

	// UnrealizedPnL tracks the unrealized profit/loss of real positions.
	UnrealizedPnL = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfive_wallet_unrealized_pnl",
		Help: "Total unrealized P&L from real positions (USD)",
	}, []string{"agent"})

	// PortfolioValue tracks the total real portfolio value per agent.
	PortfolioValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyfive_wallet_portfolio_value",
		Help: "Total portfolio value: USDC + positions (USD)",
	}, []string{"agent"})

	// UpdateErrorsTotal tracks the number of failed update attempts per agent.
	UpdateErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_wallet_update_errors_total",
		Help: "Total number of failed wallet update attempts",
	}, []string{"agent"})

	// UpdateDuration tracks the time taken to fetch wallet data.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyfive_wallet_update_duration_seconds",
		Help:    "Time taken to fetch wallet data (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	// LastUpdateTimestamp tracks the Unix timestamp of the last successful update.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyfive_wallet_last_update_timestamp",
		Help: "Unix timestamp of last successful wallet update",
	})
)
