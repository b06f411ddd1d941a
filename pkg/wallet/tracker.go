package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Agent is one funder wallet tracked for real-money funding metrics.
type Agent struct {
	ID      string
	Address common.Address
}

// Tracker periodically fetches funder wallet data for every agent and
// updates Prometheus metrics.
type Tracker struct {
	client       *Client
	agents       []Agent
	pollInterval time.Duration
	logger       *zap.Logger
}

// Config holds tracker configuration.
type Config struct {
	RPCEndpoint  string
	DataAPIURL   string
	Agents       []Agent
	PollInterval time.Duration
	Logger       *zap.Logger
}

// New creates a new wallet tracker.
func New(cfg *Config) (t *Tracker, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.RPCEndpoint == "" {
		return nil, errors.New("RPC endpoint cannot be empty")
	}

	if len(cfg.Agents) == 0 {
		return nil, errors.New("at least one agent wallet is required")
	}

	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	client, err := NewClient(cfg.RPCEndpoint, cfg.DataAPIURL, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	tracker := &Tracker{
		client:       client,
		agents:       cfg.Agents,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}

	return tracker, nil
}

// Run starts the tracker polling loop (blocking).
func (t *Tracker) Run(ctx context.Context) (err error) {
	t.logger.Info("wallet-tracker-starting",
		zap.Duration("poll-interval", t.pollInterval),
		zap.Int("agent-count", len(t.agents)))

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	// Initial poll
	pollErr := t.poll(ctx)
	if pollErr != nil {
		t.logger.Error("initial-poll-failed", zap.Error(pollErr))
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("wallet-tracker-stopping")
			return ctx.Err()
		case <-ticker.C:
			pollErr = t.poll(ctx)
			if pollErr != nil {
				t.logger.Error("poll-failed", zap.Error(pollErr))
			}
		}
	}
}

// poll performs a single polling cycle over all agents. A failure on one
// agent does not stop the others.
func (t *Tracker) poll(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		UpdateDuration.Observe(time.Since(start).Seconds())
	}()

	var firstErr error

	for _, agent := range t.agents {
		pollErr := t.pollAgent(ctx, agent)
		if pollErr != nil {
			UpdateErrorsTotal.WithLabelValues(agent.ID).Inc()
			t.logger.Warn("agent-poll-failed",
				zap.String("agent-id", agent.ID),
				zap.Error(pollErr))
			if firstErr == nil {
				firstErr = pollErr
			}
		}
	}

	if firstErr == nil {
		LastUpdateTimestamp.Set(float64(time.Now().Unix()))
	}

	t.logger.Debug("poll-complete",
		zap.Int("agent-count", len(t.agents)),
		zap.Duration("duration", time.Since(start)))

	return firstErr
}

// pollAgent fetches balances and real positions for one agent funder.
func (t *Tracker) pollAgent(ctx context.Context, agent Agent) error {
	balCtx, balCancel := context.WithTimeout(ctx, 15*time.Second)
	defer balCancel()

	balances, err := t.client.GetBalances(balCtx, agent.Address)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}

	posCtx, posCancel := context.WithTimeout(ctx, 15*time.Second)
	defer posCancel()

	positions, err := t.client.GetPositions(posCtx, agent.Address.Hex())
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}

	t.updateMetrics(agent.ID, balances, positions)

	return nil
}

// updateMetrics updates the per-agent Prometheus gauges.
func (t *Tracker) updateMetrics(agentID string, balances *Balances, positions []Position) {
	// Convert MATIC from wei to float64
	maticFloat := new(big.Float).Quo(
		new(big.Float).SetInt(balances.MATIC),
		big.NewFloat(1e18))
	maticVal, _ := maticFloat.Float64()
	MATICBalance.WithLabelValues(agentID).Set(maticVal)

	// Convert USDC from 6 decimals to float64
	usdcFloat := new(big.Float).Quo(
		new(big.Float).SetInt(balances.USDC),
		big.NewFloat(1e6))
	usdcVal, _ := usdcFloat.Float64()
	USDCBalance.WithLabelValues(agentID).Set(usdcVal)

	allowanceFloat := new(big.Float).Quo(
		new(big.Float).SetInt(balances.USDCAllowance),
		big.NewFloat(1e6))
	allowanceVal, _ := allowanceFloat.Float64()
	USDCAllowance.WithLabelValues(agentID).Set(allowanceVal)

	totalValue := 0.0
	totalCost := 0.0
	totalPnL := 0.0

	for _, pos := range positions {
		totalValue += pos.Value
		totalCost += pos.InitialValue
		totalPnL += pos.CashPnL
	}

	ActivePositions.WithLabelValues(agentID).Set(float64(len(positions)))
	TotalPositionValue.WithLabelValues(agentID).Set(totalValue)
	UnrealizedPnL.WithLabelValues(agentID).Set(totalPnL)

	// Portfolio value = USDC + positions
	PortfolioValue.WithLabelValues(agentID).Set(usdcVal + totalValue)
}
