package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// MemoryStorage implements Storage with in-process maps. It is the default
// mode for local runs and the backing store for tests.
type MemoryStorage struct {
	mu sync.RWMutex

	trades  map[string]*types.Trade
	stats   map[string]*types.AgentStats
	equity  []types.EquityPoint
	ordered []string // trade ids in insert order

	logger *zap.Logger
}

// NewMemoryStorage creates an in-memory storage.
func NewMemoryStorage(logger *zap.Logger) *MemoryStorage {
	return &MemoryStorage{
		trades: make(map[string]*types.Trade),
		stats:  make(map[string]*types.AgentStats),
		logger: logger,
	}
}

// InsertTrade appends a new open trade row.
func (m *MemoryStorage) InsertTrade(ctx context.Context, trade *types.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.trades[trade.ID]; exists {
		return fmt.Errorf("insert trade: duplicate id %s", trade.ID)
	}

	clone := *trade
	m.trades[trade.ID] = &clone
	m.ordered = append(m.ordered, trade.ID)

	return nil
}

// CloseTrade marks a trade closed with its settlement figures.
func (m *MemoryStorage) CloseTrade(ctx context.Context, tradeID string, exitPrice, pnl, pnlPercent float64, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trade, ok := m.trades[tradeID]
	if !ok || trade.Status != types.StatusOpen {
		return fmt.Errorf("close trade %s: not open", tradeID)
	}

	ep, pl, plp, ca := exitPrice, pnl, pnlPercent, closedAt
	trade.ExitPrice = &ep
	trade.PnL = &pl
	trade.PnLPercent = &plp
	trade.ClosedAt = &ca
	trade.Status = types.StatusClosed

	return nil
}

// ApplyRealExecution corrects entry price/size and adjusts the balance.
func (m *MemoryStorage) ApplyRealExecution(ctx context.Context, tradeID string, realPrice, realSize float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trade, ok := m.trades[tradeID]
	if !ok || trade.Status != types.StatusOpen {
		return fmt.Errorf("load trade %s: not open", tradeID)
	}

	stats, ok := m.stats[trade.AgentID]
	if !ok {
		return fmt.Errorf("adjust balance: unknown agent %s", trade.AgentID)
	}

	delta := realSize - trade.PositionSize
	trade.EntryPrice = realPrice
	trade.PositionSize = realSize
	stats.Balance -= delta

	return nil
}

// HasSeenTrade reports whether the trade identity already exists.
func (m *MemoryStorage) HasSeenTrade(ctx context.Context, tradeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.trades[tradeID]
	return ok, nil
}

// GetOpenTradesByMarket returns open trades for one (market, outcome) slot.
func (m *MemoryStorage) GetOpenTradesByMarket(ctx context.Context, conditionID string, outcomeIndex int) ([]*types.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var trades []*types.Trade
	for _, id := range m.ordered {
		t := m.trades[id]
		if t.Status == types.StatusOpen && t.ConditionID == conditionID && t.OutcomeIndex == outcomeIndex {
			clone := *t
			trades = append(trades, &clone)
		}
	}
	return trades, nil
}

// GetOpenTrades returns all open trades in insert order.
func (m *MemoryStorage) GetOpenTrades(ctx context.Context) ([]*types.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var trades []*types.Trade
	for _, id := range m.ordered {
		t := m.trades[id]
		if t.Status == types.StatusOpen {
			clone := *t
			trades = append(trades, &clone)
		}
	}
	return trades, nil
}

// GetAgentBalance returns the agent's current virtual balance.
func (m *MemoryStorage) GetAgentBalance(ctx context.Context, agentID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.stats[agentID]
	if !ok {
		return 0, fmt.Errorf("get balance: unknown agent %s", agentID)
	}
	return stats.Balance, nil
}

// DeductBalance debits the agent's virtual balance at trade open.
func (m *MemoryStorage) DeductBalance(ctx context.Context, agentID string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.stats[agentID]
	if !ok {
		return fmt.Errorf("deduct balance: unknown agent %s", agentID)
	}
	stats.Balance -= amount
	return nil
}

// SettleClose credits positionSize+pnl back to the agent and updates counters.
func (m *MemoryStorage) SettleClose(ctx context.Context, agentID string, positionSize, pnl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.stats[agentID]
	if !ok {
		return fmt.Errorf("settle close: unknown agent %s", agentID)
	}

	stats.Balance += positionSize + pnl
	stats.TotalPnL += pnl
	stats.TotalTrades++
	if pnl > 0 {
		stats.Wins++
	} else {
		stats.Losses++
	}

	return nil
}

// RecordEquity appends an immutable balance snapshot.
func (m *MemoryStorage) RecordEquity(ctx context.Context, agentID string, balance float64, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.equity = append(m.equity, types.EquityPoint{
		AgentID:   agentID,
		Balance:   balance,
		Timestamp: ts,
	})
	return nil
}

// EquityHistory returns recorded snapshots for an agent, oldest first.
func (m *MemoryStorage) EquityHistory(agentID string) []types.EquityPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var points []types.EquityPoint
	for _, p := range m.equity {
		if p.AgentID == agentID {
			points = append(points, p)
		}
	}
	return points
}

// GetAgentStats returns per-agent rows with win rate and ROI derived,
// sorted by balance descending.
func (m *MemoryStorage) GetAgentStats(ctx context.Context) ([]*types.AgentStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]*types.AgentStats, 0, len(m.stats))
	for _, s := range m.stats {
		clone := *s
		if clone.TotalTrades > 0 {
			clone.WinRate = float64(clone.Wins) / float64(clone.TotalTrades) * 100
		}
		if clone.StartingBalance > 0 {
			clone.TotalROI = clone.TotalPnL / clone.StartingBalance * 100
		}
		stats = append(stats, &clone)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Balance > stats[j].Balance
	})

	return stats, nil
}

// SeedAgents creates stats rows for agents that do not exist yet.
func (m *MemoryStorage) SeedAgents(ctx context.Context, agentIDs []string, startingBalance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, agentID := range agentIDs {
		if _, exists := m.stats[agentID]; exists {
			continue
		}
		m.stats[agentID] = &types.AgentStats{
			AgentID:         agentID,
			Balance:         startingBalance,
			StartingBalance: startingBalance,
		}
	}
	return nil
}

// Reset wipes trades and equity history and reseeds every known agent.
func (m *MemoryStorage) Reset(ctx context.Context, startingBalance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trades = make(map[string]*types.Trade)
	m.ordered = nil
	m.equity = nil
	for agentID := range m.stats {
		m.stats[agentID] = &types.AgentStats{
			AgentID:         agentID,
			Balance:         startingBalance,
			StartingBalance: startingBalance,
		}
	}

	if m.logger != nil {
		m.logger.Info("ledger-reset", zap.Float64("starting-balance", startingBalance))
	}

	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStorage) Close() error {
	return nil
}
