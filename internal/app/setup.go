package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
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
	"github.com/pechasssmaxx/polyfive-arena/pkg/cache"
	"github.com/pechasssmaxx/polyfive-arena/pkg/config"
	"github.com/pechasssmaxx/polyfive-arena/pkg/healthprobe"
	"github.com/pechasssmaxx/polyfive-arena/pkg/httpserver"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/pechasssmaxx/polyfive-arena/pkg/wallet"
	"github.com/pechasssmaxx/polyfive-arena/pkg/websocket"
	"go.uber.org/zap"
)

// New builds the application graph from configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		ctx:           ctx,
		cancel:        cancel,
	}

	err := a.setup()
	if err != nil {
		cancel()
		return nil, err
	}
	return a, nil
}

func (a *App) setup() error {
	cfg, logger := a.cfg, a.logger

	tokenCache, err := setupCache(logger)
	if err != nil {
		return fmt.Errorf("setup cache: %w", err)
	}

	a.store, err = setupStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	agentIDs := make([]string, 0, len(cfg.Agents))
	agentConfigs := make([]types.AgentConfig, 0, len(cfg.Agents))
	for _, agent := range cfg.Agents {
		agentIDs = append(agentIDs, agent.AgentID)
		agentConfigs = append(agentConfigs, types.AgentConfig{
			ID:     agent.AgentID,
			Wallet: agent.Funder,
		})
	}
	if err := a.store.SeedAgents(a.ctx, agentIDs, cfg.StartingBalanceUSD); err != nil {
		return fmt.Errorf("seed agents: %w", err)
	}

	a.agentRoster = roster.New(agentConfigs, logger)
	donors, err := roster.LoadDonorsFile(cfg.DonorsFile)
	if err != nil {
		return fmt.Errorf("load donors: %w", err)
	}
	a.agentRoster.Reload(donors)

	a.coordinator = dedup.New(dedup.Config{
		PreExecutedTTL: cfg.PreExecutedTTL,
		Logger:         logger,
	})

	gammaClient := markets.NewClient(markets.Config{
		BaseURL: cfg.GammaAPIURL,
		Timeout: cfg.ResolutionTimeout,
		Logger:  logger,
	})
	a.markets = markets.NewCachedClient(gammaClient, tokenCache, cfg.TokenCacheTTL)

	a.bus = notify.NewBus(64, logger)

	if cfg.ExecutionMode == "live" {
		a.trader = execution.NewTrader(&execution.TraderConfig{
			ClobURL:    cfg.ClobAPIURL,
			Agents:     cfg.Agents,
			TokenCache: tokenCache,
			TokenTTL:   cfg.TokenCacheTTL,
			Logger:     logger,
		})
		a.breaker, err = circuitbreaker.New(circuitbreaker.Config{
			Source:   a.trader,
			FloorUSD: cfg.MinAgentBalanceUSD,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("setup breaker: %w", err)
		}
	}

	engineCfg := ledger.Config{
		Store:             a.store,
		Locks:             a.coordinator,
		Roster:            a.agentRoster,
		Notifier:          a.bus,
		PositionBaseUSD:   cfg.PositionBaseUSD,
		PositionJitterUSD: cfg.PositionJitterUSD,
		MinBalanceUSD:     cfg.MinAgentBalanceUSD,
		EntryLockGrace:    cfg.EntryLockGrace,
		Logger:            logger,
	}
	if a.trader != nil {
		a.balanceSync = ledger.NewBalanceSyncer(a.trader, a.store,
			cfg.BalanceSyncFast, cfg.BalanceSyncSettle, logger)
		engineCfg.Trader = a.trader
		engineCfg.Guard = a.breaker
		engineCfg.Sync = a.balanceSync
	}
	a.engine = ledger.New(engineCfg)

	a.resolver = resolution.New(resolution.Config{
		Trades:   a.store,
		Markets:  a.markets,
		Settler:  a.engine,
		Interval: cfg.ResolutionInterval,
		Logger:   logger,
	})

	a.intents = make(chan types.TradeIntent, 256)
	a.poller = ingest.NewPoller(ingest.PollerConfig{
		Client: ingest.NewActivityClient(ingest.ActivityConfig{
			BaseURL:   cfg.DataAPIURL,
			Timeout:   cfg.PollTimeout,
			PageLimit: cfg.PollPageLimit,
			Logger:    logger,
		}),
		Roster:    a.agentRoster,
		Cursors:   a.coordinator,
		Intents:   a.intents,
		Interval:  cfg.PollInterval,
		Lookback:  cfg.PollLookback,
		RateLimit: cfg.PollRateLimit,
		Logger:    logger,
	})

	if cfg.StreamEnabled {
		a.wsMgr = websocket.New(websocket.Config{
			URL:                   cfg.StreamWSURL,
			DialTimeout:           cfg.WSDialTimeout,
			PingInterval:          cfg.WSPingInterval,
			ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
			ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
			ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
			MessageBufferSize:     cfg.WSMessageBufferSize,
			Logger:                logger,
		})
		a.stream = ingest.NewStreamListener(ingest.StreamConfig{
			Messages: a.wsMgr.MessageChan(),
			Roster:   a.agentRoster,
			Cursors:  a.coordinator,
			Intents:  a.intents,
			Logger:   logger,
		})
	}

	if cfg.OnchainEnabled && a.trader != nil {
		a.onchain, err = onchain.NewListener(onchain.ListenerConfig{
			WSURL:    cfg.PolygonWSURL,
			Roster:   a.agentRoster,
			Resolver: a.markets,
			Trader:   a.trader,
			Marker:   a.coordinator,
			Reconnect: websocket.ReconnectConfig{
				InitialDelay:      cfg.WSReconnectInitialDelay,
				MaxDelay:          cfg.WSReconnectMaxDelay,
				BackoffMultiplier: cfg.WSReconnectBackoffMult,
				JitterPercent:     0.2,
			},
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("setup onchain listener: %w", err)
		}
	}

	a.walletTr = setupWalletTracker(cfg, logger)

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.healthChecker,
		Ledger:        a.store,
	})

	return nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pg, nil
	}
	return storage.NewMemoryStorage(logger), nil
}

// setupWalletTracker monitors agents' funder wallets for gas and USDC.
// Agents without a funder address are simply not tracked.
func setupWalletTracker(cfg *config.Config, logger *zap.Logger) *wallet.Tracker {
	agents := make([]wallet.Agent, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if !roster.ValidAddress(a.Funder) {
			continue
		}
		agents = append(agents, wallet.Agent{
			ID:      a.AgentID,
			Address: common.HexToAddress(a.Funder),
		})
	}
	if len(agents) == 0 {
		return nil
	}

	tracker, err := wallet.New(&wallet.Config{
		RPCEndpoint:  cfg.PolygonWSURL,
		DataAPIURL:   cfg.DataAPIURL,
		Agents:       agents,
		PollInterval: cfg.EquityInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.Warn("wallet-tracker-disabled", zap.Error(err))
		return nil
	}
	return tracker
}
