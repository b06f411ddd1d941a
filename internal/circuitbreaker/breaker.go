// Package circuitbreaker guards real order placement: an agent whose
// on-exchange collateral drops below a floor stops placing real orders
// until the balance recovers. Virtual ledger trades are unaffected.
package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// balanceSource reads real collateral balances per agent.
type balanceSource interface {
	CollateralBalances(ctx context.Context) map[string]float64
}

// Breaker tracks per-agent enabled state with hysteresis: execution is
// disabled below the floor and re-enabled only at floor * hysteresis,
// so a balance hovering at the floor does not flap.
type Breaker struct {
	source        balanceSource
	floor         float64
	hysteresis    float64
	checkInterval time.Duration
	logger        *zap.Logger

	mu       sync.RWMutex
	disabled map[string]bool
}

// Config holds breaker configuration.
type Config struct {
	Source        balanceSource
	FloorUSD      float64 // disable real execution below this collateral
	Hysteresis    float64 // re-enable at FloorUSD * Hysteresis, >= 1.0
	CheckInterval time.Duration
	Logger        *zap.Logger
}

// New creates a breaker. All agents start enabled.
func New(cfg Config) (*Breaker, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("balance source cannot be nil")
	}
	if cfg.FloorUSD <= 0 {
		cfg.FloorUSD = 1.0
	}
	if cfg.Hysteresis < 1.0 {
		cfg.Hysteresis = 1.5
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Breaker{
		source:        cfg.Source,
		floor:         cfg.FloorUSD,
		hysteresis:    cfg.Hysteresis,
		checkInterval: cfg.CheckInterval,
		logger:        cfg.Logger,
		disabled:      make(map[string]bool),
	}, nil
}

// IsEnabled reports whether the agent may place real orders. Agents the
// breaker has never observed are enabled.
func (b *Breaker) IsEnabled(agentID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.disabled[agentID]
}

// Check reads balances once and updates per-agent state.
func (b *Breaker) Check(ctx context.Context) {
	start := time.Now()
	defer func() { CheckDuration.Observe(time.Since(start).Seconds()) }()

	balances := b.source.CollateralBalances(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	for agentID, balance := range balances {
		Balance.WithLabelValues(agentID).Set(balance)

		switch {
		case !b.disabled[agentID] && balance < b.floor:
			b.disabled[agentID] = true
			StateChangesTotal.WithLabelValues(agentID).Inc()
			Enabled.WithLabelValues(agentID).Set(0)
			b.logger.Warn("real-execution-disabled",
				zap.String("agent-id", agentID),
				zap.Float64("balance", balance),
				zap.Float64("floor", b.floor))
		case b.disabled[agentID] && balance >= b.floor*b.hysteresis:
			b.disabled[agentID] = false
			StateChangesTotal.WithLabelValues(agentID).Inc()
			Enabled.WithLabelValues(agentID).Set(1)
			b.logger.Info("real-execution-enabled",
				zap.String("agent-id", agentID),
				zap.Float64("balance", balance))
		}
	}
}

// Run checks immediately and then on every tick until cancelled.
func (b *Breaker) Run(ctx context.Context) {
	b.logger.Info("collateral-breaker-starting",
		zap.Float64("floor", b.floor),
		zap.Duration("check-interval", b.checkInterval))

	b.Check(ctx)

	ticker := time.NewTicker(b.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("collateral-breaker-stopping")
			return
		case <-ticker.C:
			b.Check(ctx)
		}
	}
}
