package types

import (
	"fmt"
	"time"
)

// Trade statuses. A trade is opened exactly once and closed exactly once.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// OrderSide is the book side of an exchange order.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// TradeID builds the composite identity used for deduplication:
// market id + outcome index + transaction reference + agent id.
func TradeID(conditionID string, outcomeIndex int, txRef, agentID string) string {
	return fmt.Sprintf("%s_%d_%s_%s", conditionID, outcomeIndex, txRef, agentID)
}

// PositionKey identifies a logical position slot for lock purposes.
func PositionKey(conditionID string, outcomeIndex int, agentID string) string {
	return fmt.Sprintf("%s_%d_%s", conditionID, outcomeIndex, agentID)
}

// Trade is one replicated position in an agent's virtual ledger.
type Trade struct {
	ID           string
	AgentID      string
	DonorWallet  string // empty for self-originated trades
	Asset        string
	AssetLogo    string
	Direction    string // "UP" or "DOWN"
	Side         string // "YES" or "NO"
	EntryPrice   float64
	ExitPrice    *float64
	PositionSize float64 // USD notional committed at open
	PnL          *float64
	PnLPercent   *float64
	Status       string
	Question     string
	MarketURL    string
	ConditionID  string
	OutcomeIndex int
	MarketEndAt  time.Time
	OpenedAt     time.Time
	ClosedAt     *time.Time
}

// AgentStats is the per-agent balance/performance row.
type AgentStats struct {
	AgentID         string
	Balance         float64
	StartingBalance float64 // fixed at seed time, ROI denominator
	TotalPnL        float64
	TotalROI        float64
	WinRate         float64
	TotalTrades     int
	Wins            int
	Losses          int
}

// EquityPoint is an immutable snapshot of one agent's balance.
type EquityPoint struct {
	AgentID   string
	Balance   float64
	Timestamp time.Time
}

// Fill reports the real execution outcome of a copied BUY order, used to
// reconcile the estimated entry against what actually filled.
type Fill struct {
	Price    float64 // limit price the order was placed at
	Notional float64 // USD actually committed (shares * price)
	Shares   float64
	OrderID  string
}

// CopyOrder is the request handed to the order execution module.
type CopyOrder struct {
	AgentID      string
	ConditionID  string
	OutcomeIndex int
	TokenID      string  // fast path: already known from the event, may be empty
	DonorPrice   float64 // observed donor price, 0 when unknown
	TargetUSDC   float64 // buy only
	Shares       float64 // sell only: shares held per the ledger
}
