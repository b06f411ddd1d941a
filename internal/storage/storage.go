package storage

import (
	"context"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
)

// Storage is the persistence contract for the virtual ledger. The engine is
// the only writer; implementations serialize their own writes.
type Storage interface {
	// InsertTrade appends a new open trade row.
	InsertTrade(ctx context.Context, trade *types.Trade) error

	// CloseTrade marks a trade closed with its settlement figures.
	CloseTrade(ctx context.Context, tradeID string, exitPrice, pnl, pnlPercent float64, closedAt time.Time) error

	// ApplyRealExecution corrects an open trade's entry price and position
	// size after the real fill reported different figures, adjusting the
	// agent's balance by the notional delta.
	ApplyRealExecution(ctx context.Context, tradeID string, realPrice, realSize float64) error

	// HasSeenTrade reports whether the trade identity already exists.
	HasSeenTrade(ctx context.Context, tradeID string) (bool, error)

	// GetOpenTradesByMarket returns open trades for one (market, outcome) slot.
	GetOpenTradesByMarket(ctx context.Context, conditionID string, outcomeIndex int) ([]*types.Trade, error)

	// GetOpenTrades returns all open trades.
	GetOpenTrades(ctx context.Context) ([]*types.Trade, error)

	// GetAgentBalance returns the agent's current virtual balance.
	GetAgentBalance(ctx context.Context, agentID string) (float64, error)

	// DeductBalance debits the agent's virtual balance at trade open.
	DeductBalance(ctx context.Context, agentID string, amount float64) error

	// SettleClose credits positionSize+pnl back to the agent and updates
	// win/loss/trade counters (win iff pnl > 0).
	SettleClose(ctx context.Context, agentID string, positionSize, pnl float64) error

	// RecordEquity appends an immutable balance snapshot.
	RecordEquity(ctx context.Context, agentID string, balance float64, ts time.Time) error

	// GetAgentStats returns the per-agent leaderboard rows, win rate and
	// ROI derived from the stored counters.
	GetAgentStats(ctx context.Context) ([]*types.AgentStats, error)

	// SeedAgents creates stats rows for agents that do not exist yet.
	// Existing rows are left untouched.
	SeedAgents(ctx context.Context, agentIDs []string, startingBalance float64) error

	// Reset wipes trades and equity history and reseeds every known agent
	// at the starting balance.
	Reset(ctx context.Context, startingBalance float64) error

	// Close closes the storage connection.
	Close() error
}
