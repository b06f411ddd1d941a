package ledger

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/internal/dedup"
	"github.com/pechasssmaxx/polyfive-arena/internal/notify"
	"github.com/pechasssmaxx/polyfive-arena/internal/storage"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	donorWallet = "0xabcd000000000000000000000000000000000001"
	selfWallet  = "0xface000000000000000000000000000000000002"
	condBTC     = "0xc0nd1710n1d000000000000000000000000000000000000000000000000btc"
)

type fakeRoster struct {
	donors map[string][]string
	selves map[string]string
}

func (f *fakeRoster) AgentsForDonor(wallet string) []string { return f.donors[wallet] }

func (f *fakeRoster) SelfAgent(wallet string) (string, bool) {
	id, ok := f.selves[wallet]
	return id, ok
}

type fakeExecutor struct {
	mu    sync.Mutex
	buys  []*types.CopyOrder
	sells []*types.CopyOrder
	fill  *types.Fill
	err   error
}

func (f *fakeExecutor) ExecuteCopyTrade(ctx context.Context, order *types.CopyOrder) (*types.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buys = append(f.buys, order)
	return f.fill, f.err
}

func (f *fakeExecutor) ExecuteCloseTrade(ctx context.Context, order *types.CopyOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sells = append(f.sells, order)
	return f.err
}

func (f *fakeExecutor) buyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buys)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.EventKind
	stats  int
}

func (f *fakeNotifier) PushTradeEvent(kind notify.EventKind, trade *types.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, kind)
}

func (f *fakeNotifier) PushStatsUpdate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats++
}

type engineHarness struct {
	engine   *Engine
	store    *storage.MemoryStorage
	trader   *fakeExecutor
	notifier *fakeNotifier
}

func newTestEngine(t *testing.T) *engineHarness {
	t.Helper()

	store := storage.NewMemoryStorage(zap.NewNop())
	require.NoError(t, store.SeedAgents(context.Background(), []string{"claude", "gemini"}, 1000))

	trader := &fakeExecutor{}
	notifier := &fakeNotifier{}

	e := New(Config{
		Store: store,
		Locks: dedup.New(dedup.Config{}),
		Roster: &fakeRoster{
			donors: map[string][]string{donorWallet: {"claude", "gemini"}},
			selves: map[string]string{selfWallet: "claude"},
		},
		Trader:            trader,
		Notifier:          notifier,
		PositionBaseUSD:   1.10,
		PositionJitterUSD: 0.20,
		Logger:            zap.NewNop(),
	})
	e.randF = func() float64 { return 0.5 } // position size 1.20
	e.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	return &engineHarness{engine: e, store: store, trader: trader, notifier: notifier}
}

func buyIntent(txRef string) types.TradeIntent {
	return types.TradeIntent{
		Wallet:       donorWallet,
		Source:       types.SourcePoll,
		Side:         "BUY",
		Outcome:      "YES",
		Direction:    "UP",
		Asset:        "BTC",
		Price:        0.52,
		ConditionID:  condBTC,
		OutcomeIndex: 0,
		TokenID:      "123456789",
		TxRef:        txRef,
		Title:        "Bitcoin Up or Down",
		ObservedAt:   time.Unix(1_700_000_000, 0),
	}
}

func sellIntent(txRef string, price float64) types.TradeIntent {
	intent := buyIntent(txRef)
	intent.Side = "SELL"
	intent.Price = price
	return intent
}

func TestBuyIntent_OpensTradeForEveryMappedAgent(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.Wait()

	for _, agent := range []string{"claude", "gemini"} {
		open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
		require.NoError(t, err)
		require.Len(t, open, 2)

		balance, err := h.store.GetAgentBalance(ctx, agent)
		require.NoError(t, err)
		assert.InDelta(t, 998.80, balance, 1e-9, "1.20 deducted from %s", agent)
	}

	assert.Equal(t, 2, h.trader.buyCount())
	assert.InDelta(t, 0.52, h.trader.buys[0].DonorPrice, 1e-9)
	assert.InDelta(t, 1.20, h.trader.buys[0].TargetUSDC, 1e-9)
	assert.Equal(t, "123456789", h.trader.buys[0].TokenID)

	assert.Contains(t, h.notifier.events, notify.EventTradeOpen)
}

func TestBuyIntent_DuplicateTxRefSkipped(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.HandleIntent(ctx, buyIntent("0xtx1")) // poll replays the stream event
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	assert.Len(t, open, 2, "one trade per agent, not per delivery")
}

func TestBuyIntent_SecondBuySameMarketSkipped(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.HandleIntent(ctx, buyIntent("0xtx2"))
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	assert.Len(t, open, 2, "at most one open position per market slot per agent")
}

func TestBuyIntent_LowBalanceSkipped(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, h.store.DeductBalance(ctx, "claude", 999.50))

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "gemini", open[0].AgentID)
}

func TestBuyIntent_MissingPriceDefaultsToMidpoint(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	intent := buyIntent("0xtx1")
	intent.Price = 0 // price field absent in the activity payload

	h.engine.HandleIntent(ctx, intent)
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, trade := range open {
		assert.InDelta(t, 0.5, trade.EntryPrice, 1e-9)
	}

	// A total loss must still settle to a finite balance.
	require.NoError(t, h.engine.ResolveClose(ctx, open[0], 0.0))
	h.engine.Wait()

	balance, err := h.store.GetAgentBalance(ctx, open[0].AgentID)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(balance), "balance stays a number")
	assert.InDelta(t, 998.80, balance, 1e-9, "stake fully lost, nothing credited back")
}

func TestBuyIntent_PreExecutedSkipsRealOrder(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	locks := dedup.New(dedup.Config{})
	locks.MarkPreExecuted("0xtx1")
	h.engine.locks = locks

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	assert.Len(t, open, 2, "virtual trades still open")
	assert.Zero(t, h.trader.buyCount(), "real order already placed by the fast path")
}

func TestBuyIntent_RealFillReconciled(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	h.trader.fill = &types.Fill{Price: 0.55, Notional: 1.21, Shares: 2.2}

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, trade := range open {
		assert.InDelta(t, 0.55, trade.EntryPrice, 1e-9)
		assert.InDelta(t, 1.21, trade.PositionSize, 1e-9)
	}
}

func TestSellIntent_ClosesWithPnL(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.Wait()

	h.engine.HandleIntent(ctx, sellIntent("0xtx2", 0.61))
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	assert.Empty(t, open)

	// shares = 1.20/0.52, pnl = round2(shares * 0.09) = 0.21
	balance, err := h.store.GetAgentBalance(ctx, "claude")
	require.NoError(t, err)
	assert.InDelta(t, 1000.21, balance, 1e-9, "stake returned plus pnl")

	stats, err := h.store.GetAgentStats(ctx)
	require.NoError(t, err)
	for _, s := range stats {
		assert.Equal(t, 1, s.Wins)
		assert.Equal(t, 0, s.Losses)
	}

	// Real close uses the ledger share count.
	require.Len(t, h.trader.sells, 2)
	assert.InDelta(t, 1.20/0.52, h.trader.sells[0].Shares, 1e-9)
	assert.InDelta(t, 0.61, h.trader.sells[0].DonorPrice, 1e-9)

	assert.Contains(t, h.notifier.events, notify.EventTradeClose)
}

func TestSellIntent_NoOpenPositionIsNoop(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	h.engine.HandleIntent(ctx, sellIntent("0xtx1", 0.61))
	h.engine.Wait()

	assert.Empty(t, h.trader.sells)
	assert.Empty(t, h.notifier.events)
}

func TestSelfWalletIntent_NoRealExecution(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	intent := buyIntent("0xtx1")
	intent.Wallet = selfWallet

	h.engine.HandleIntent(ctx, intent)
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "claude", open[0].AgentID)
	assert.Empty(t, open[0].DonorWallet)
	assert.Zero(t, h.trader.buyCount())
}

func TestResolveClose_WinnerGetsRealClose(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	require.Len(t, open, 2)

	require.NoError(t, h.engine.ResolveClose(ctx, open[0], 1.0))
	h.engine.Wait()

	require.Len(t, h.trader.sells, 1)
	assert.InDelta(t, open[0].PositionSize/open[0].EntryPrice, h.trader.sells[0].Shares, 1e-9)

	// shares = 1.20/0.52, pnl = round2(shares * 0.48) = 1.11
	balance, err := h.store.GetAgentBalance(ctx, open[0].AgentID)
	require.NoError(t, err)
	assert.InDelta(t, 1001.11, balance, 1e-9)
}

func TestResolveClose_LoserSkipsRealClose(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.Wait()
	h.trader.mu.Lock()
	h.trader.buys = nil
	h.trader.mu.Unlock()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	require.Len(t, open, 2)

	require.NoError(t, h.engine.ResolveClose(ctx, open[0], 0.0))
	h.engine.Wait()

	assert.Empty(t, h.trader.sells, "nothing to sell on a losing outcome")

	// pnl = round2(shares * -0.52) = -1.20, stake fully lost
	balance, err := h.store.GetAgentBalance(ctx, open[0].AgentID)
	require.NoError(t, err)
	assert.InDelta(t, 998.80, balance, 1e-9)
}

type stubGuard struct{ disabled map[string]bool }

func (g *stubGuard) IsEnabled(agentID string) bool { return !g.disabled[agentID] }

func TestBuyIntent_BreakerVetoesRealOrderOnly(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	h.engine.guard = &stubGuard{disabled: map[string]bool{"claude": true}}

	h.engine.HandleIntent(ctx, buyIntent("0xtx1"))
	h.engine.Wait()

	open, err := h.store.GetOpenTradesByMarket(ctx, condBTC, 0)
	require.NoError(t, err)
	assert.Len(t, open, 2, "virtual trades open regardless of the breaker")

	require.Equal(t, 1, h.trader.buyCount())
	assert.Equal(t, "gemini", h.trader.buys[0].AgentID)
}

func TestRun_ConsumesUntilChannelCloses(t *testing.T) {
	h := newTestEngine(t)

	intents := make(chan types.TradeIntent, 1)
	intents <- buyIntent("0xtx1")
	close(intents)

	h.engine.Run(context.Background(), intents)

	open, err := h.store.GetOpenTradesByMarket(context.Background(), condBTC, 0)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}
