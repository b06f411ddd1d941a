package execution

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/pkg/cache"
	"github.com/pechasssmaxx/polyfive-arena/pkg/config"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

const (
	buyPremium   = 0.03
	sellDiscount = 0.02
	maxBuyPrice  = 0.99
	minSellPrice = 0.01

	// A donor sell price at or below this is noise (resolution dust), so
	// the sell price is derived from a live quote instead.
	minTrustedSellPrice = 0.03
	quoteSellDiscount   = 0.05

	dustShares = 0.0001
)

// orderClient is the per-agent surface the trader needs from a CLOB client.
type orderClient interface {
	SubmitOrder(ctx context.Context, tokenID string, price, size float64, side types.OrderSide) (*OrderResponse, error)
	GetMarket(ctx context.Context, conditionID string) (*types.ClobMarket, error)
	GetPrice(ctx context.Context, tokenID string, side types.OrderSide) (float64, error)
	GetCollateralBalance(ctx context.Context) (float64, error)
	GetConditionalBalance(ctx context.Context, tokenID string) (float64, error)
}

// Trader executes real copy orders for the agents that have CLOB
// credentials. Agents without a client participate virtually only.
type Trader struct {
	clients    map[string]orderClient
	tokenCache cache.Cache
	tokenTTL   time.Duration
	logger     *zap.Logger
}

// TraderConfig holds trader settings.
type TraderConfig struct {
	ClobURL    string
	Agents     []config.AgentCredentials
	TokenCache cache.Cache
	TokenTTL   time.Duration
	Logger     *zap.Logger
}

// NewTrader builds per-agent order clients from the configured credentials.
// Agents with incomplete credentials are skipped, not failed.
func NewTrader(cfg *TraderConfig) *Trader {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	t := &Trader{
		clients:    make(map[string]orderClient),
		tokenCache: cfg.TokenCache,
		tokenTTL:   ttl,
		logger:     logger,
	}

	for _, agent := range cfg.Agents {
		if agent.PrivateKey == "" || agent.APIKey == "" || agent.Secret == "" || agent.Passphrase == "" {
			continue
		}

		client, err := NewClobClient(&ClobClientConfig{
			BaseURL:    cfg.ClobURL,
			APIKey:     agent.APIKey,
			Secret:     agent.Secret,
			Passphrase: agent.Passphrase,
			PrivateKey: agent.PrivateKey,
			Funder:     agent.Funder,
			Logger:     logger.With(zap.String("agent-id", agent.AgentID)),
		})
		if err != nil {
			logger.Error("clob-client-init-failed",
				zap.String("agent-id", agent.AgentID),
				zap.Error(err))
			continue
		}

		t.clients[agent.AgentID] = client
		logger.Info("clob-client-ready",
			zap.String("agent-id", agent.AgentID),
			zap.String("address", client.Address()))
	}

	return t
}

// HasClient reports whether the agent can execute real orders.
func (t *Trader) HasClient(agentID string) bool {
	_, ok := t.clients[agentID]
	return ok
}

// ExecuteCopyTrade places a real FAK buy mirroring a donor entry. Returns
// nil with no error when the agent has no client. The returned fill carries
// the placed price and committed notional for ledger reconciliation.
func (t *Trader) ExecuteCopyTrade(ctx context.Context, order *types.CopyOrder) (*types.Fill, error) {
	client, ok := t.clients[order.AgentID]
	if !ok {
		return nil, nil
	}

	tokenID, err := t.resolveTokenID(ctx, client, order)
	if err != nil {
		return nil, err
	}

	price := math.Min(maxBuyPrice, roundCents(order.DonorPrice+buyPremium))
	shares := BuyShares(order.TargetUSDC, price)
	if shares <= 0 {
		return nil, fmt.Errorf("buy sizing produced no shares at price %.2f", price)
	}

	t.logger.Info("copy-buy-submitting",
		zap.String("agent-id", order.AgentID),
		zap.Float64("price", price),
		zap.Float64("shares", shares),
		zap.Float64("cost", shares*price))

	start := time.Now()
	resp, err := client.SubmitOrder(ctx, tokenID, price, shares, types.OrderBuy)
	OrderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		OrdersTotal.WithLabelValues(order.AgentID, "BUY", "error").Inc()
		return nil, fmt.Errorf("submit buy: %w", err)
	}
	if !resp.Accepted() {
		OrdersTotal.WithLabelValues(order.AgentID, "BUY", "rejected").Inc()
		return nil, fmt.Errorf("buy rejected: %s %s", resp.Status, resp.Error)
	}

	OrdersTotal.WithLabelValues(order.AgentID, "BUY", "filled").Inc()
	t.logger.Info("copy-buy-filled",
		zap.String("agent-id", order.AgentID),
		zap.String("order-id", resp.OrderID))

	return &types.Fill{
		Price:    price,
		Notional: shares * price,
		Shares:   shares,
		OrderID:  resp.OrderID,
	}, nil
}

// ExecuteCloseTrade places a real FAK sell mirroring a donor exit or a
// resolution close. Best effort: callers treat errors as a reconciliation
// gap, never as a ledger failure.
func (t *Trader) ExecuteCloseTrade(ctx context.Context, order *types.CopyOrder) error {
	client, ok := t.clients[order.AgentID]
	if !ok {
		return nil
	}

	tokenID, err := t.resolveTokenID(ctx, client, order)
	if err != nil {
		return err
	}

	held := order.Shares
	if held <= 0.01 {
		// No trusted share count from the ledger, ask the exchange.
		held, err = client.GetConditionalBalance(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("conditional balance: %w", err)
		}
		if held <= dustShares {
			t.logger.Info("close-skipped-dust-balance",
				zap.String("agent-id", order.AgentID),
				zap.String("token-id", tokenID))
			return nil
		}
	}

	price := t.sellPrice(ctx, client, tokenID, order.DonorPrice)
	shares := SellShares(held, price)
	if shares <= 0 {
		return nil
	}

	t.logger.Info("copy-sell-submitting",
		zap.String("agent-id", order.AgentID),
		zap.Float64("price", price),
		zap.Float64("shares", shares))

	start := time.Now()
	resp, err := client.SubmitOrder(ctx, tokenID, price, shares, types.OrderSell)
	OrderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		OrdersTotal.WithLabelValues(order.AgentID, "SELL", "error").Inc()
		return fmt.Errorf("submit sell: %w", err)
	}
	if !resp.Accepted() {
		OrdersTotal.WithLabelValues(order.AgentID, "SELL", "rejected").Inc()
		return fmt.Errorf("sell rejected: %s %s", resp.Status, resp.Error)
	}

	OrdersTotal.WithLabelValues(order.AgentID, "SELL", "filled").Inc()
	t.logger.Info("copy-sell-filled",
		zap.String("agent-id", order.AgentID),
		zap.String("order-id", resp.OrderID))
	return nil
}

// CollateralBalances queries each agent's USDC balance on the exchange.
// Agents whose query fails report zero rather than failing the batch.
func (t *Trader) CollateralBalances(ctx context.Context) map[string]float64 {
	balances := make(map[string]float64, len(t.clients))
	for agentID, client := range t.clients {
		balance, err := client.GetCollateralBalance(ctx)
		if err != nil {
			t.logger.Warn("collateral-balance-failed",
				zap.String("agent-id", agentID),
				zap.Error(err))
			balances[agentID] = 0
			continue
		}
		balances[agentID] = balance
	}
	return balances
}

// sellPrice derives the sell limit from the donor price when it is
// trustworthy, else from a live buy-side quote.
func (t *Trader) sellPrice(ctx context.Context, client orderClient, tokenID string, donorPrice float64) float64 {
	if donorPrice > minTrustedSellPrice {
		return math.Max(minSellPrice, roundCents(donorPrice-sellDiscount))
	}

	quote, err := client.GetPrice(ctx, tokenID, types.OrderBuy)
	if err == nil && quote > minSellPrice {
		return math.Max(minSellPrice, roundCents(quote-quoteSellDiscount))
	}
	return minSellPrice
}

// resolveTokenID maps a (market, outcome) slot to its conditional token id,
// taking the event-provided id when present and caching lookups.
func (t *Trader) resolveTokenID(ctx context.Context, client orderClient, order *types.CopyOrder) (string, error) {
	cacheKey := fmt.Sprintf("%s_%d", order.ConditionID, order.OutcomeIndex)

	if order.TokenID != "" {
		if t.tokenCache != nil {
			t.tokenCache.Set(cacheKey, order.TokenID, t.tokenTTL)
		}
		return order.TokenID, nil
	}

	if t.tokenCache != nil {
		if cached, ok := t.tokenCache.Get(cacheKey); ok {
			if tokenID, ok := cached.(string); ok {
				TokenCacheHitsTotal.Inc()
				return tokenID, nil
			}
		}
		TokenCacheMissesTotal.Inc()
	}

	market, err := client.GetMarket(ctx, order.ConditionID)
	if err != nil {
		return "", fmt.Errorf("get market: %w", err)
	}
	if order.OutcomeIndex >= len(market.Tokens) {
		return "", fmt.Errorf("market %s has no outcome %d", order.ConditionID, order.OutcomeIndex)
	}

	tokenID := market.Tokens[order.OutcomeIndex].TokenID
	if t.tokenCache != nil {
		t.tokenCache.Set(cacheKey, tokenID, t.tokenTTL)
	}
	return tokenID, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
