package resolution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	condBTC = "0xbtc"
	condETH = "0xeth"
)

type fakeTrades struct {
	trades []*types.Trade
	err    error
}

func (f *fakeTrades) GetOpenTrades(ctx context.Context) ([]*types.Trade, error) {
	return f.trades, f.err
}

type fakeMarkets struct {
	markets map[string]*types.GammaMarket
	err     error
	gotIDs  []string
}

func (f *fakeMarkets) MarketsByConditions(ctx context.Context, conditionIDs []string) (map[string]*types.GammaMarket, error) {
	f.gotIDs = conditionIDs
	return f.markets, f.err
}

type settledTrade struct {
	tradeID   string
	exitPrice float64
}

type fakeSettler struct {
	settled []settledTrade
	err     error
}

func (f *fakeSettler) ResolveClose(ctx context.Context, trade *types.Trade, exitPrice float64) error {
	if f.err != nil {
		return f.err
	}
	f.settled = append(f.settled, settledTrade{trade.ID, exitPrice})
	return nil
}

func openTrade(id, conditionID string, outcomeIndex int) *types.Trade {
	return &types.Trade{
		ID:           id,
		AgentID:      "claude",
		ConditionID:  conditionID,
		OutcomeIndex: outcomeIndex,
		EntryPrice:   0.52,
		PositionSize: 1.20,
		Status:       types.StatusOpen,
	}
}

func resolvedMarket(conditionID string, winnerPrices string) *types.GammaMarket {
	return &types.GammaMarket{
		ConditionID:   conditionID,
		Closed:        true,
		OutcomePrices: winnerPrices,
	}
}

func newTestPoller(trades *fakeTrades, markets *fakeMarkets, settler *fakeSettler) *Poller {
	return New(Config{
		Trades:  trades,
		Markets: markets,
		Settler: settler,
		Logger:  zap.NewNop(),
	})
}

func TestSweep_SettlesWinnersAndLosers(t *testing.T) {
	trades := &fakeTrades{trades: []*types.Trade{
		openTrade("t1", condBTC, 0), // holds the winning outcome
		openTrade("t2", condBTC, 1), // holds the losing outcome
	}}
	markets := &fakeMarkets{markets: map[string]*types.GammaMarket{
		condBTC: resolvedMarket(condBTC, `["0.995", "0.005"]`),
	}}
	settler := &fakeSettler{}

	newTestPoller(trades, markets, settler).Sweep(context.Background())

	require.Len(t, settler.settled, 2)
	byID := map[string]float64{}
	for _, s := range settler.settled {
		byID[s.tradeID] = s.exitPrice
	}
	assert.Equal(t, 1.0, byID["t1"])
	assert.Equal(t, 0.0, byID["t2"])
}

func TestSweep_OpenMarketLeftAlone(t *testing.T) {
	trades := &fakeTrades{trades: []*types.Trade{openTrade("t1", condBTC, 0)}}
	markets := &fakeMarkets{markets: map[string]*types.GammaMarket{
		condBTC: {ConditionID: condBTC, Closed: false, OutcomePrices: `["0.60", "0.40"]`},
	}}
	settler := &fakeSettler{}

	newTestPoller(trades, markets, settler).Sweep(context.Background())

	assert.Empty(t, settler.settled)
}

func TestSweep_ClosedWithoutWinnerWaits(t *testing.T) {
	// Closed flag set, prices still mid-range: settle on a later pass.
	trades := &fakeTrades{trades: []*types.Trade{openTrade("t1", condBTC, 0)}}
	markets := &fakeMarkets{markets: map[string]*types.GammaMarket{
		condBTC: resolvedMarket(condBTC, `["0.95", "0.05"]`),
	}}
	settler := &fakeSettler{}

	newTestPoller(trades, markets, settler).Sweep(context.Background())

	assert.Empty(t, settler.settled)
}

func TestSweep_BatchesConditionIDs(t *testing.T) {
	trades := &fakeTrades{trades: []*types.Trade{
		openTrade("t1", condBTC, 0),
		openTrade("t2", condBTC, 1),
		openTrade("t3", condETH, 0),
		openTrade("t4", "", 0), // no market id, never resolvable
	}}
	markets := &fakeMarkets{markets: map[string]*types.GammaMarket{}}

	newTestPoller(trades, markets, &fakeSettler{}).Sweep(context.Background())

	assert.ElementsMatch(t, []string{condBTC, condETH}, markets.gotIDs)
}

func TestSweep_FetchErrorSkipsSettling(t *testing.T) {
	trades := &fakeTrades{trades: []*types.Trade{openTrade("t1", condBTC, 0)}}
	markets := &fakeMarkets{err: errors.New("gamma down")}
	settler := &fakeSettler{}

	newTestPoller(trades, markets, settler).Sweep(context.Background())

	assert.Empty(t, settler.settled)
}

func TestRun_SweepsImmediately(t *testing.T) {
	trades := &fakeTrades{trades: []*types.Trade{openTrade("t1", condBTC, 0)}}
	markets := &fakeMarkets{markets: map[string]*types.GammaMarket{
		condBTC: resolvedMarket(condBTC, `["1.0", "0.0"]`),
	}}
	settler := &fakeSettler{}

	p := New(Config{
		Trades:   trades,
		Markets:  markets,
		Settler:  settler,
		Interval: time.Hour,
		Logger:   zap.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(settler.settled) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	require.Len(t, settler.settled, 1)
	assert.Equal(t, 1.0, settler.settled[0].exitPrice)
}
