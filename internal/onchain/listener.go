package onchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/pechasssmaxx/polyfive-arena/pkg/websocket"
	"go.uber.org/zap"
)

// Polymarket exchange contracts on Polygon mainnet.
const (
	CTFExchange     = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskExchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
)

const orderFilledABI = `[{
	"anonymous": false,
	"inputs": [
		{"indexed": true, "name": "orderHash", "type": "bytes32"},
		{"indexed": true, "name": "maker", "type": "address"},
		{"indexed": true, "name": "taker", "type": "address"},
		{"indexed": false, "name": "makerAssetId", "type": "uint256"},
		{"indexed": false, "name": "takerAssetId", "type": "uint256"},
		{"indexed": false, "name": "makerAmountFilled", "type": "uint256"},
		{"indexed": false, "name": "takerAmountFilled", "type": "uint256"},
		{"indexed": false, "name": "fee", "type": "uint256"}
	],
	"name": "OrderFilled",
	"type": "event"
}]`

// Notional used for pre-executed buys; reconciled once the activity feed
// delivers the actual ledger sizing.
const preExecBuySizeUSDC = 1.15

// donorRoster resolves donor wallets to agents.
type donorRoster interface {
	AgentsForDonor(wallet string) []string
	IsDonor(wallet string) bool
}

// tokenResolver maps a conditional token id back to its market slot.
type tokenResolver interface {
	RefByToken(ctx context.Context, tokenID string) (*types.MarketRef, *types.GammaMarket, error)
}

// preExecutor places real orders ahead of the activity feed.
type preExecutor interface {
	ExecuteCopyTrade(ctx context.Context, order *types.CopyOrder) (*types.Fill, error)
	ExecuteCloseTrade(ctx context.Context, order *types.CopyOrder) error
}

// preExecMarker records transaction references already executed on-chain.
type preExecMarker interface {
	MarkPreExecuted(txRef string)
	WasPreExecuted(txRef string) bool
}

// Listener subscribes to OrderFilled logs on the CTF and NegRisk exchange
// contracts. It never writes to the ledger: it only pre-executes real
// orders and marks the transaction so the later-arriving activity event
// skips redundant execution.
type Listener struct {
	wsURL     string
	roster    donorRoster
	resolver  tokenResolver
	trader    preExecutor
	marker    preExecMarker
	reconnect *websocket.ReconnectManager
	logger    *zap.Logger

	parsedABI abi.ABI
	topic     common.Hash
	addresses []common.Address
}

// ListenerConfig holds on-chain listener settings.
type ListenerConfig struct {
	WSURL     string
	Roster    donorRoster
	Resolver  tokenResolver
	Trader    preExecutor
	Marker    preExecMarker
	Reconnect websocket.ReconnectConfig
	Logger    *zap.Logger
}

// NewListener creates the on-chain listener.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	parsed, err := abi.JSON(strings.NewReader(orderFilledABI))
	if err != nil {
		return nil, fmt.Errorf("parse OrderFilled abi: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Listener{
		wsURL:     cfg.WSURL,
		roster:    cfg.Roster,
		resolver:  cfg.Resolver,
		trader:    cfg.Trader,
		marker:    cfg.Marker,
		reconnect: websocket.NewReconnectManager(cfg.Reconnect, logger),
		logger:    logger,
		parsedABI: parsed,
		topic:     parsed.Events["OrderFilled"].ID,
		addresses: []common.Address{
			common.HexToAddress(CTFExchange),
			common.HexToAddress(NegRiskExchange),
		},
	}, nil
}

// Run maintains the log subscription until the context is cancelled,
// reconnecting with backoff on any subscription failure.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info("onchain-listener-starting", zap.String("ws-url", l.wsURL))

	for {
		err := l.reconnect.Reconnect(ctx, l.subscribe)
		if err != nil {
			l.logger.Info("onchain-listener-stopping")
			return
		}
		// subscribe returned nil after a dropped subscription; loop to
		// reconnect from the initial backoff delay.
		select {
		case <-ctx.Done():
			l.logger.Info("onchain-listener-stopping")
			return
		default:
		}
	}
}

// subscribe dials, subscribes and consumes logs until the subscription
// drops or the context ends.
func (l *Listener) subscribe(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, l.wsURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", l.wsURL, err)
	}
	defer client.Close()

	logs := make(chan gethtypes.Log, 64)
	sub, err := client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: l.addresses,
		Topics:    [][]common.Hash{{l.topic}},
	}, logs)
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	defer sub.Unsubscribe()

	l.logger.Info("onchain-subscribed",
		zap.String("ctf-exchange", CTFExchange),
		zap.String("negrisk-exchange", NegRiskExchange))
	ConnectsTotal.Inc()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			l.logger.Warn("onchain-subscription-dropped", zap.Error(err))
			DisconnectsTotal.Inc()
			return nil
		case entry := <-logs:
			l.handleLog(ctx, entry)
		}
	}
}

func (l *Listener) handleLog(ctx context.Context, entry gethtypes.Log) {
	if len(entry.Topics) < 4 {
		return
	}

	maker := common.HexToAddress(entry.Topics[2].Hex()).Hex()
	taker := common.HexToAddress(entry.Topics[3].Hex()).Hex()

	values, err := l.parsedABI.Unpack("OrderFilled", entry.Data)
	if err != nil || len(values) < 4 {
		l.logger.Warn("order-filled-decode-failed", zap.Error(err))
		return
	}

	makerAssetID, _ := values[0].(*big.Int)
	takerAssetID, _ := values[1].(*big.Int)
	makerAmount, _ := values[2].(*big.Int)
	takerAmount, _ := values[3].(*big.Int)
	if makerAssetID == nil || takerAssetID == nil || makerAmount == nil || takerAmount == nil {
		return
	}

	fill, ok := InferFill(maker, taker, makerAssetID, takerAssetID, makerAmount, takerAmount, l.roster.IsDonor)
	if !ok {
		return
	}

	txHash := entry.TxHash.Hex()
	if l.marker.WasPreExecuted(txHash) {
		return
	}
	// Mark before the async lookup: the activity feed may deliver the same
	// trade while we resolve the token.
	l.marker.MarkPreExecuted(txHash)
	FillsTotal.WithLabelValues(string(fill.Side)).Inc()

	l.logger.Info("onchain-donor-fill",
		zap.String("donor", fill.DonorWallet),
		zap.String("side", string(fill.Side)),
		zap.Float64("price", fill.Price),
		zap.String("tx-hash", txHash))

	l.preExecute(ctx, fill)
}

// preExecute places real orders for every agent copying this donor. The
// ledger open/close happens later via the activity feed; failures here are
// only a lost head start.
func (l *Listener) preExecute(ctx context.Context, fill Fill) {
	agents := l.roster.AgentsForDonor(fill.DonorWallet)
	if len(agents) == 0 {
		return
	}

	ref, _, err := l.resolver.RefByToken(ctx, fill.TokenID)
	if err != nil {
		l.logger.Warn("token-lookup-failed",
			zap.String("token-id", fill.TokenID),
			zap.Error(err))
		return
	}

	for _, agentID := range agents {
		order := &types.CopyOrder{
			AgentID:      agentID,
			ConditionID:  ref.ConditionID,
			OutcomeIndex: ref.OutcomeIndex,
			TokenID:      fill.TokenID,
			DonorPrice:   fill.Price,
			TargetUSDC:   preExecBuySizeUSDC,
		}

		start := time.Now()
		if fill.Side == types.OrderBuy {
			_, err = l.trader.ExecuteCopyTrade(ctx, order)
		} else {
			err = l.trader.ExecuteCloseTrade(ctx, order)
		}
		PreExecDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			l.logger.Warn("pre-execution-failed",
				zap.String("agent-id", agentID),
				zap.String("side", string(fill.Side)),
				zap.Error(err))
			continue
		}
		PreExecTotal.WithLabelValues(agentID, string(fill.Side)).Inc()
	}
}
