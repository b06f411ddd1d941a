// Package app wires the ingestion sources, the copy engine and the
// supporting services together and owns their lifecycle.
package app

import (
	"context"
	"sync"

	"github.com/pechasssmaxx/polyfive-arena/internal/circuitbreaker"
	"github.com/pechasssmaxx/polyfive-arena/internal/dedup"
	"github.com/pechasssmaxx/polyfive-arena/internal/execution"
	"github.com/pechasssmaxx/polyfive-arena/internal/ingest"
	"github.com/pechasssmaxx/polyfive-arena/internal/ledger"
	"github.com/pechasssmaxx/polyfive-arena/internal/markets"
	"github.com/pechasssmaxx/polyfive-arena/internal/notify"
	"github.com/pechasssmaxx/polyfive-arena/internal/onchain"
	"github.com/pechasssmaxx/polyfive-arena/internal/resolution"
	"github.com/pechasssmaxx/polyfive-arena/internal/roster"
	"github.com/pechasssmaxx/polyfive-arena/internal/storage"
	"github.com/pechasssmaxx/polyfive-arena/pkg/config"
	"github.com/pechasssmaxx/polyfive-arena/pkg/healthprobe"
	"github.com/pechasssmaxx/polyfive-arena/pkg/httpserver"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/pechasssmaxx/polyfive-arena/pkg/wallet"
	"github.com/pechasssmaxx/polyfive-arena/pkg/websocket"
	"go.uber.org/zap"
)

// App is the application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	store       storage.Storage
	agentRoster *roster.Roster
	coordinator *dedup.Coordinator
	markets     *markets.CachedClient
	trader      *execution.Trader // nil in virtual mode
	breaker     *circuitbreaker.Breaker
	bus         *notify.Bus
	engine      *ledger.Engine
	balanceSync *ledger.BalanceSyncer
	resolver    *resolution.Poller

	intents  chan types.TradeIntent
	poller   *ingest.Poller
	stream   *ingest.StreamListener
	wsMgr    *websocket.Manager
	onchain  *onchain.Listener
	walletTr *wallet.Tracker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}
