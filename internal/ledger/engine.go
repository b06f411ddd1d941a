// Package ledger holds the copy engine: the single consumer of normalized
// trade intents that mutates the virtual ledger.
package ledger

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/internal/notify"
	"github.com/pechasssmaxx/polyfive-arena/internal/storage"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// locker is the dedup surface the engine needs.
type locker interface {
	TryLockEntry(conditionID string, outcomeIndex int, agentID string, grace time.Duration) bool
	TryLockSell(conditionID string, outcomeIndex int, agentID string, grace time.Duration) bool
	WasPreExecuted(txRef string) bool
}

// executor places real orders for agents with credentials.
type executor interface {
	ExecuteCopyTrade(ctx context.Context, order *types.CopyOrder) (*types.Fill, error)
	ExecuteCloseTrade(ctx context.Context, order *types.CopyOrder) error
}

// rosterView classifies intent wallets.
type rosterView interface {
	AgentsForDonor(wallet string) []string
	SelfAgent(wallet string) (string, bool)
}

// executionGuard can veto real order placement per agent.
type executionGuard interface {
	IsEnabled(agentID string) bool
}

// Engine consumes trade intents and drives the open/close state machine.
// It is the single logical writer of ledger state.
type Engine struct {
	store    storage.Storage
	locks    locker
	roster   rosterView
	trader   executor
	guard    executionGuard
	notifier notify.Notifier
	sync     *BalanceSyncer

	positionBase   float64
	positionJitter float64
	minBalance     float64
	entryGrace     time.Duration
	// Grace for intents carrying no market id: nothing to execute against,
	// so the lock can release sooner.
	shortGrace time.Duration

	logger *zap.Logger
	now    func() time.Time
	randF  func() float64

	wg sync.WaitGroup
}

// Config holds engine settings.
type Config struct {
	Store    storage.Storage
	Locks    locker
	Roster   rosterView
	Trader   executor       // nil disables real execution
	Guard    executionGuard // nil means always allowed
	Notifier notify.Notifier
	Sync     *BalanceSyncer // nil disables balance re-sync

	PositionBaseUSD   float64
	PositionJitterUSD float64
	MinBalanceUSD     float64
	EntryLockGrace    time.Duration

	Logger *zap.Logger
}

// New creates the copy engine.
func New(cfg Config) *Engine {
	if cfg.PositionBaseUSD <= 0 {
		cfg.PositionBaseUSD = 1.10
	}
	if cfg.PositionJitterUSD < 0 {
		cfg.PositionJitterUSD = 0
	}
	if cfg.MinBalanceUSD <= 0 {
		cfg.MinBalanceUSD = 1.0
	}
	if cfg.EntryLockGrace <= 0 {
		cfg.EntryLockGrace = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Engine{
		store:          cfg.Store,
		locks:          cfg.Locks,
		roster:         cfg.Roster,
		trader:         cfg.Trader,
		guard:          cfg.Guard,
		notifier:       cfg.Notifier,
		sync:           cfg.Sync,
		positionBase:   cfg.PositionBaseUSD,
		positionJitter: cfg.PositionJitterUSD,
		minBalance:     cfg.MinBalanceUSD,
		entryGrace:     cfg.EntryLockGrace,
		shortGrace:     2 * time.Second,
		logger:         cfg.Logger,
		now:            time.Now,
		randF:          rand.Float64,
	}
}

// Run consumes intents until the context is cancelled or the channel
// closes, then waits for in-flight real executions.
func (e *Engine) Run(ctx context.Context, intents <-chan types.TradeIntent) {
	e.logger.Info("copy-engine-starting")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("copy-engine-stopping")
			e.wg.Wait()
			return
		case intent, ok := <-intents:
			if !ok {
				e.logger.Info("intent-channel-closed")
				e.wg.Wait()
				return
			}
			e.HandleIntent(ctx, intent)
		}
	}
}

// HandleIntent routes one intent: self wallets mirror into the ledger
// without real execution, donor wallets fan out to every copying agent.
func (e *Engine) HandleIntent(ctx context.Context, intent types.TradeIntent) {
	IntentsTotal.WithLabelValues(string(intent.Source), intent.Side).Inc()

	if agentID, ok := e.roster.SelfAgent(intent.Wallet); ok {
		e.dispatch(ctx, agentID, intent, false)
		return
	}

	for _, agentID := range e.roster.AgentsForDonor(intent.Wallet) {
		e.dispatch(ctx, agentID, intent, true)
	}
}

func (e *Engine) dispatch(ctx context.Context, agentID string, intent types.TradeIntent, real bool) {
	switch intent.Side {
	case "BUY":
		e.processBuy(ctx, agentID, intent, real)
	case "SELL":
		e.processSell(ctx, agentID, intent, real)
	}
}

// processBuy runs the open transition: dedup, lock, balance check, ledger
// insert, then async real execution for donor copies.
func (e *Engine) processBuy(ctx context.Context, agentID string, intent types.TradeIntent, real bool) {
	// Activity records sometimes arrive without a price, which decodes to
	// 0. Entry prices must stay inside (0,1) or the close-side share math
	// breaks, so substitute the midpoint.
	entryPrice := intent.Price
	if entryPrice <= 0 || entryPrice >= 1 {
		e.logger.Warn("entry-price-defaulted",
			zap.String("agent-id", agentID),
			zap.String("tx-ref", intent.TxRef),
			zap.Float64("price", intent.Price))
		entryPrice = 0.5
	}

	balance, err := e.store.GetAgentBalance(ctx, agentID)
	if err != nil {
		e.logger.Warn("balance-read-failed", zap.String("agent-id", agentID), zap.Error(err))
		return
	}
	if balance < e.minBalance {
		e.logger.Info("buy-skipped-low-balance",
			zap.String("agent-id", agentID),
			zap.Float64("balance", balance))
		SkippedTotal.WithLabelValues("low_balance").Inc()
		return
	}

	tradeID := types.TradeID(intent.ConditionID, intent.OutcomeIndex, intent.TxRef, agentID)
	seen, err := e.store.HasSeenTrade(ctx, tradeID)
	if err != nil {
		e.logger.Warn("dedup-read-failed", zap.String("trade-id", tradeID), zap.Error(err))
		return
	}
	if seen {
		SkippedTotal.WithLabelValues("duplicate").Inc()
		return
	}

	grace := e.entryGrace
	if intent.ConditionID == "" {
		grace = e.shortGrace
	}
	if !e.locks.TryLockEntry(intent.ConditionID, intent.OutcomeIndex, agentID, grace) {
		SkippedTotal.WithLabelValues("entry_locked").Inc()
		return
	}

	open, err := e.store.GetOpenTradesByMarket(ctx, intent.ConditionID, intent.OutcomeIndex)
	if err != nil {
		e.logger.Warn("open-trades-read-failed", zap.Error(err))
		return
	}
	for _, t := range open {
		if t.AgentID == agentID {
			SkippedTotal.WithLabelValues("already_open").Inc()
			return
		}
	}

	positionSize := roundCents(e.positionBase + e.randF()*e.positionJitter)

	trade := &types.Trade{
		ID:           tradeID,
		AgentID:      agentID,
		DonorWallet:  donorWalletFor(intent, real),
		Asset:        intent.Asset,
		AssetLogo:    intent.AssetLogo,
		Direction:    intent.Direction,
		Side:         intent.Outcome,
		EntryPrice:   entryPrice,
		PositionSize: positionSize,
		Status:       types.StatusOpen,
		Question:     intent.Title,
		MarketURL:    intent.MarketURL,
		ConditionID:  intent.ConditionID,
		OutcomeIndex: intent.OutcomeIndex,
		MarketEndAt:  intent.MarketEndAt,
		OpenedAt:     intent.ObservedAt,
	}

	if err := e.store.InsertTrade(ctx, trade); err != nil {
		e.logger.Error("trade-insert-failed", zap.String("trade-id", tradeID), zap.Error(err))
		return
	}
	if err := e.store.DeductBalance(ctx, agentID, positionSize); err != nil {
		e.logger.Error("balance-deduct-failed", zap.String("agent-id", agentID), zap.Error(err))
		return
	}
	e.snapshotEquity(ctx, agentID)

	TradesOpenedTotal.WithLabelValues(agentID).Inc()
	e.logger.Info("trade-opened",
		zap.String("trade-id", tradeID),
		zap.String("agent-id", agentID),
		zap.String("asset", intent.Asset),
		zap.String("outcome", intent.Outcome),
		zap.Float64("entry-price", entryPrice),
		zap.Float64("position-size", positionSize),
		zap.String("source", string(intent.Source)))

	if e.notifier != nil {
		e.notifier.PushTradeEvent(notify.EventTradeOpen, trade)
		e.notifier.PushStatsUpdate()
	}

	if !real || e.trader == nil || intent.ConditionID == "" {
		return
	}
	if !e.mayExecute(agentID) {
		return
	}
	if e.locks.WasPreExecuted(intent.TxRef) {
		e.logger.Info("real-buy-skipped-pre-executed", zap.String("tx-ref", intent.TxRef))
		SkippedTotal.WithLabelValues("pre_executed").Inc()
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.executeRealBuy(ctx, trade, intent)
	}()
}

// executeRealBuy places the real order and reconciles the ledger row with
// the actual fill. A failed order leaves the virtual trade untouched.
func (e *Engine) executeRealBuy(ctx context.Context, trade *types.Trade, intent types.TradeIntent) {
	fill, err := e.trader.ExecuteCopyTrade(ctx, &types.CopyOrder{
		AgentID:      trade.AgentID,
		ConditionID:  trade.ConditionID,
		OutcomeIndex: trade.OutcomeIndex,
		TokenID:      intent.TokenID,
		DonorPrice:   trade.EntryPrice,
		TargetUSDC:   trade.PositionSize,
	})
	if err != nil {
		e.logger.Warn("real-buy-failed",
			zap.String("trade-id", trade.ID),
			zap.Error(err))
		return
	}
	if fill == nil {
		return
	}

	if err := e.store.ApplyRealExecution(ctx, trade.ID, fill.Price, fill.Notional); err != nil {
		e.logger.Error("reconciliation-failed",
			zap.String("trade-id", trade.ID),
			zap.Error(err))
		return
	}

	ReconciliationsTotal.Inc()
	e.logger.Info("trade-reconciled",
		zap.String("trade-id", trade.ID),
		zap.Float64("real-price", fill.Price),
		zap.Float64("real-size", fill.Notional))

	e.scheduleSync()
}

// processSell runs the close transition for every matching open trade. A
// sell with no open position is a no-op.
func (e *Engine) processSell(ctx context.Context, agentID string, intent types.TradeIntent, real bool) {
	open, err := e.store.GetOpenTradesByMarket(ctx, intent.ConditionID, intent.OutcomeIndex)
	if err != nil {
		e.logger.Warn("open-trades-read-failed", zap.Error(err))
		return
	}

	for _, trade := range open {
		if trade.AgentID != agentID {
			continue
		}

		grace := e.entryGrace
		if intent.ConditionID == "" {
			grace = e.shortGrace
		}
		if !e.locks.TryLockSell(intent.ConditionID, intent.OutcomeIndex, agentID, grace) {
			SkippedTotal.WithLabelValues("sell_locked").Inc()
			continue
		}

		preExecuted := intent.ConditionID != "" && e.locks.WasPreExecuted(intent.TxRef)
		if real && e.trader != nil && intent.ConditionID != "" && !preExecuted && e.mayExecute(agentID) {
			shares := trade.PositionSize / trade.EntryPrice
			order := &types.CopyOrder{
				AgentID:      agentID,
				ConditionID:  trade.ConditionID,
				OutcomeIndex: trade.OutcomeIndex,
				TokenID:      intent.TokenID,
				DonorPrice:   intent.Price,
				Shares:       shares,
			}
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				if err := e.trader.ExecuteCloseTrade(ctx, order); err != nil {
					e.logger.Warn("real-sell-failed",
						zap.String("agent-id", agentID),
						zap.Error(err))
				}
			}()
		}

		if err := e.closeTrade(ctx, trade, intent.Price, intent.ObservedAt); err != nil {
			e.logger.Error("trade-close-failed",
				zap.String("trade-id", trade.ID),
				zap.Error(err))
			continue
		}
		e.scheduleSync()
	}
}

// ResolveClose settles one open trade at a terminal price. Used by the
// resolution poller; winning positions get a best-effort real close first.
func (e *Engine) ResolveClose(ctx context.Context, trade *types.Trade, exitPrice float64) error {
	if e.trader != nil && exitPrice >= 1.0 && trade.ConditionID != "" && e.mayExecute(trade.AgentID) {
		shares := trade.PositionSize / trade.EntryPrice
		order := &types.CopyOrder{
			AgentID:      trade.AgentID,
			ConditionID:  trade.ConditionID,
			OutcomeIndex: trade.OutcomeIndex,
			Shares:       shares,
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.trader.ExecuteCloseTrade(ctx, order); err != nil {
				e.logger.Warn("resolution-real-close-failed",
					zap.String("trade-id", trade.ID),
					zap.Error(err))
			}
		}()
	}

	if err := e.closeTrade(ctx, trade, exitPrice, e.now()); err != nil {
		return err
	}
	e.scheduleSync()
	return nil
}

// closeTrade applies the P&L formula and settles the books.
func (e *Engine) closeTrade(ctx context.Context, trade *types.Trade, exitPrice float64, closedAt time.Time) error {
	shares := trade.PositionSize / trade.EntryPrice
	pnl := roundCents(shares * (exitPrice - trade.EntryPrice))
	pnlPercent := roundCents((exitPrice - trade.EntryPrice) / trade.EntryPrice * 100)

	if err := e.store.CloseTrade(ctx, trade.ID, exitPrice, pnl, pnlPercent, closedAt); err != nil {
		return err
	}
	if err := e.store.SettleClose(ctx, trade.AgentID, trade.PositionSize, pnl); err != nil {
		return err
	}
	e.snapshotEquity(ctx, trade.AgentID)

	result := "loss"
	if pnl > 0 {
		result = "win"
	}
	TradesClosedTotal.WithLabelValues(trade.AgentID, result).Inc()
	e.logger.Info("trade-closed",
		zap.String("trade-id", trade.ID),
		zap.String("agent-id", trade.AgentID),
		zap.Float64("exit-price", exitPrice),
		zap.Float64("pnl", pnl),
		zap.Float64("pnl-percent", pnlPercent))

	if e.notifier != nil {
		closed := *trade
		closed.Status = types.StatusClosed
		closed.ExitPrice = &exitPrice
		closed.PnL = &pnl
		closed.PnLPercent = &pnlPercent
		closed.ClosedAt = &closedAt
		e.notifier.PushTradeEvent(notify.EventTradeClose, &closed)
		e.notifier.PushStatsUpdate()
	}
	return nil
}

// RunEquity records a balance snapshot for every agent on a fixed
// interval. One snapshot is taken immediately on start.
func (e *Engine) RunEquity(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	e.snapshotAll(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.snapshotAll(ctx)
		}
	}
}

func (e *Engine) snapshotAll(ctx context.Context) {
	stats, err := e.store.GetAgentStats(ctx)
	if err != nil {
		e.logger.Warn("equity-snapshot-failed", zap.Error(err))
		return
	}
	ts := e.now()
	for _, s := range stats {
		if err := e.store.RecordEquity(ctx, s.AgentID, s.Balance, ts); err != nil {
			e.logger.Warn("equity-record-failed", zap.String("agent-id", s.AgentID), zap.Error(err))
		}
	}
}

func (e *Engine) snapshotEquity(ctx context.Context, agentID string) {
	balance, err := e.store.GetAgentBalance(ctx, agentID)
	if err != nil {
		return
	}
	if err := e.store.RecordEquity(ctx, agentID, balance, e.now()); err != nil {
		e.logger.Warn("equity-record-failed", zap.String("agent-id", agentID), zap.Error(err))
	}
}

// mayExecute consults the collateral breaker, if one is wired.
func (e *Engine) mayExecute(agentID string) bool {
	if e.guard == nil || e.guard.IsEnabled(agentID) {
		return true
	}
	SkippedTotal.WithLabelValues("breaker_open").Inc()
	e.logger.Warn("real-execution-vetoed", zap.String("agent-id", agentID))
	return false
}

func (e *Engine) scheduleSync() {
	if e.sync != nil {
		e.sync.Schedule()
	}
}

// Wait blocks until all in-flight async executions finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func donorWalletFor(intent types.TradeIntent, real bool) string {
	if real {
		return intent.Wallet
	}
	// Self trades carry no donor.
	return ""
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
