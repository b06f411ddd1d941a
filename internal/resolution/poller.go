// Package resolution settles open trades whose markets have resolved:
// winners close at 1.0, losers at 0.0.
package resolution

import (
	"context"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// tradeSource lists the open side of the ledger.
type tradeSource interface {
	GetOpenTrades(ctx context.Context) ([]*types.Trade, error)
}

// marketSource answers batch market lookups.
type marketSource interface {
	MarketsByConditions(ctx context.Context, conditionIDs []string) (map[string]*types.GammaMarket, error)
}

// settler closes one trade at a terminal price.
type settler interface {
	ResolveClose(ctx context.Context, trade *types.Trade, exitPrice float64) error
}

// Poller periodically sweeps open trades against Gamma market state and
// settles the ones whose markets closed with a definitive winner.
type Poller struct {
	trades   tradeSource
	markets  marketSource
	settler  settler
	interval time.Duration
	logger   *zap.Logger
}

// Config holds resolution poller settings.
type Config struct {
	Trades   tradeSource
	Markets  marketSource
	Settler  settler
	Interval time.Duration
	Logger   *zap.Logger
}

// New creates a resolution poller.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Poller{
		trades:   cfg.Trades,
		markets:  cfg.Markets,
		settler:  cfg.Settler,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
}

// Run sweeps once immediately, then on every tick until cancelled.
// Catching positions left open across a restart is why the first sweep
// does not wait for the ticker.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("resolution-poller-starting", zap.Duration("interval", p.interval))

	p.Sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("resolution-poller-stopping")
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep settles every open trade whose market has resolved. Markets
// still trading, or closed without a definitive winner yet, are left
// for the next pass.
func (p *Poller) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() { SweepDuration.Observe(time.Since(start).Seconds()) }()
	SweepsTotal.Inc()

	open, err := p.trades.GetOpenTrades(ctx)
	if err != nil {
		p.logger.Warn("open-trades-read-failed", zap.Error(err))
		SweepErrorsTotal.Inc()
		return
	}
	if len(open) == 0 {
		return
	}

	byCondition := make(map[string][]*types.Trade)
	for _, t := range open {
		if t.ConditionID == "" {
			continue
		}
		byCondition[t.ConditionID] = append(byCondition[t.ConditionID], t)
	}
	if len(byCondition) == 0 {
		return
	}

	ids := make([]string, 0, len(byCondition))
	for id := range byCondition {
		ids = append(ids, id)
	}

	markets, err := p.markets.MarketsByConditions(ctx, ids)
	if err != nil {
		p.logger.Warn("market-batch-fetch-failed", zap.Error(err))
		SweepErrorsTotal.Inc()
		return
	}

	for conditionID, trades := range byCondition {
		market, ok := markets[conditionID]
		if !ok || !market.Closed {
			continue
		}
		winner := market.WinnerIndex()
		if winner == -1 {
			// Closed but prices not settled yet.
			continue
		}
		p.settle(ctx, trades, winner)
	}
}

func (p *Poller) settle(ctx context.Context, trades []*types.Trade, winner int) {
	for _, trade := range trades {
		exitPrice := 0.0
		result := "loss"
		if trade.OutcomeIndex == winner {
			exitPrice = 1.0
			result = "win"
		}

		if err := p.settler.ResolveClose(ctx, trade, exitPrice); err != nil {
			p.logger.Error("resolution-close-failed",
				zap.String("trade-id", trade.ID),
				zap.Error(err))
			SweepErrorsTotal.Inc()
			continue
		}

		ResolvedTotal.WithLabelValues(result).Inc()
		p.logger.Info("trade-resolved",
			zap.String("trade-id", trade.ID),
			zap.String("agent-id", trade.AgentID),
			zap.String("result", result),
			zap.Float64("exit-price", exitPrice))
	}
}
