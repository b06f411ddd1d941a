package onchain

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/pechasssmaxx/polyfive-arena/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDonorRoster struct {
	agents map[string][]string
}

func (f *fakeDonorRoster) AgentsForDonor(wallet string) []string { return f.agents[wallet] }

func (f *fakeDonorRoster) IsDonor(wallet string) bool {
	_, ok := f.agents[wallet]
	return ok
}

type fakeResolver struct {
	ref *types.MarketRef
	err error
}

func (f *fakeResolver) RefByToken(ctx context.Context, tokenID string) (*types.MarketRef, *types.GammaMarket, error) {
	return f.ref, nil, f.err
}

type fakeTrader struct {
	buys  []*types.CopyOrder
	sells []*types.CopyOrder
}

func (f *fakeTrader) ExecuteCopyTrade(ctx context.Context, order *types.CopyOrder) (*types.Fill, error) {
	f.buys = append(f.buys, order)
	return &types.Fill{Price: order.DonorPrice, Notional: order.TargetUSDC}, nil
}

func (f *fakeTrader) ExecuteCloseTrade(ctx context.Context, order *types.CopyOrder) error {
	f.sells = append(f.sells, order)
	return nil
}

type fakeMarker struct {
	marked map[string]bool
}

func newFakeMarker() *fakeMarker { return &fakeMarker{marked: make(map[string]bool)} }

func (f *fakeMarker) MarkPreExecuted(txRef string)     { f.marked[txRef] = true }
func (f *fakeMarker) WasPreExecuted(txRef string) bool { return f.marked[txRef] }

func newTestListener(t *testing.T, roster donorRoster, resolver tokenResolver, trader preExecutor, marker preExecMarker) *Listener {
	t.Helper()

	l, err := NewListener(ListenerConfig{
		WSURL:    "wss://unused.invalid",
		Roster:   roster,
		Resolver: resolver,
		Trader:   trader,
		Marker:   marker,
		Reconnect: websocket.ReconnectConfig{
			InitialDelay:      time.Millisecond,
			MaxDelay:          10 * time.Millisecond,
			BackoffMultiplier: 2,
		},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return l
}

func orderFilledLog(t *testing.T, maker, taker string, makerAssetID, takerAssetID, makerAmount, takerAmount *big.Int) gethtypes.Log {
	t.Helper()

	l := newTestListener(t, &fakeDonorRoster{}, &fakeResolver{}, &fakeTrader{}, newFakeMarker())
	data, err := l.parsedABI.Events["OrderFilled"].Inputs.NonIndexed().Pack(
		makerAssetID, takerAssetID, makerAmount, takerAmount, big.NewInt(0))
	require.NoError(t, err)

	return gethtypes.Log{
		Address: common.HexToAddress(CTFExchange),
		Topics: []common.Hash{
			l.topic,
			common.HexToHash("0x01"), // orderHash
			common.BytesToHash(common.HexToAddress(maker).Bytes()),
			common.BytesToHash(common.HexToAddress(taker).Bytes()),
		},
		Data:   data,
		TxHash: common.HexToHash("0xfeed"),
	}
}

func TestHandleLog_PreExecutesBuyForMappedAgents(t *testing.T) {
	token, _ := new(big.Int).SetString(tokenID, 10)
	roster := &fakeDonorRoster{agents: map[string][]string{
		"0xabcd000000000000000000000000000000000001": {"claude", "gemini"},
	}}
	resolver := &fakeResolver{ref: &types.MarketRef{ConditionID: "0xcond", OutcomeIndex: 1}}
	trader := &fakeTrader{}
	marker := newFakeMarker()

	l := newTestListener(t, roster, resolver, trader, marker)
	entry := orderFilledLog(t, donorAddr, strangerAddr,
		big.NewInt(0), token, usdc(1.10), usdc(2.0))

	l.handleLog(context.Background(), entry)

	require.Len(t, trader.buys, 2)
	assert.Equal(t, "claude", trader.buys[0].AgentID)
	assert.Equal(t, "0xcond", trader.buys[0].ConditionID)
	assert.Equal(t, 1, trader.buys[0].OutcomeIndex)
	assert.Equal(t, tokenID, trader.buys[0].TokenID)
	assert.InDelta(t, 0.55, trader.buys[0].DonorPrice, 1e-9)
	assert.InDelta(t, preExecBuySizeUSDC, trader.buys[0].TargetUSDC, 1e-9)

	assert.True(t, marker.WasPreExecuted(entry.TxHash.Hex()),
		"tx marked before the activity feed catches up")
}

func TestHandleLog_SellTriggersClose(t *testing.T) {
	token, _ := new(big.Int).SetString(tokenID, 10)
	roster := &fakeDonorRoster{agents: map[string][]string{
		"0xabcd000000000000000000000000000000000001": {"claude"},
	}}
	trader := &fakeTrader{}

	l := newTestListener(t, roster,
		&fakeResolver{ref: &types.MarketRef{ConditionID: "0xcond"}}, trader, newFakeMarker())
	entry := orderFilledLog(t, donorAddr, strangerAddr,
		token, big.NewInt(0), usdc(2.0), usdc(1.20))

	l.handleLog(context.Background(), entry)

	assert.Empty(t, trader.buys)
	require.Len(t, trader.sells, 1)
	assert.InDelta(t, 0.60, trader.sells[0].DonorPrice, 1e-9)
}

func TestHandleLog_AlreadyMarkedSkips(t *testing.T) {
	token, _ := new(big.Int).SetString(tokenID, 10)
	roster := &fakeDonorRoster{agents: map[string][]string{
		"0xabcd000000000000000000000000000000000001": {"claude"},
	}}
	trader := &fakeTrader{}
	marker := newFakeMarker()

	l := newTestListener(t, roster,
		&fakeResolver{ref: &types.MarketRef{ConditionID: "0xcond"}}, trader, marker)
	entry := orderFilledLog(t, donorAddr, strangerAddr,
		big.NewInt(0), token, usdc(1.10), usdc(2.0))

	marker.MarkPreExecuted(entry.TxHash.Hex())
	l.handleLog(context.Background(), entry)

	assert.Empty(t, trader.buys)
}

func TestHandleLog_StrangerFillIgnored(t *testing.T) {
	token, _ := new(big.Int).SetString(tokenID, 10)
	trader := &fakeTrader{}
	marker := newFakeMarker()

	l := newTestListener(t, &fakeDonorRoster{}, &fakeResolver{}, trader, marker)
	entry := orderFilledLog(t, strangerAddr, strangerAddr,
		big.NewInt(0), token, usdc(1.10), usdc(2.0))

	l.handleLog(context.Background(), entry)

	assert.Empty(t, trader.buys)
	assert.Empty(t, marker.marked)
}
