package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/internal/dedup"
	"github.com/pechasssmaxx/polyfive-arena/internal/ingest"
	"github.com/pechasssmaxx/polyfive-arena/internal/ledger"
	"github.com/pechasssmaxx/polyfive-arena/internal/roster"
	"github.com/pechasssmaxx/polyfive-arena/internal/storage"
	"github.com/pechasssmaxx/polyfive-arena/internal/testutil"
	"github.com/pechasssmaxx/polyfive-arena/pkg/config"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	donorWallet = "0xabcd000000000000000000000000000000000001"
	condBTC     = "0xb70c000000000000000000000000000000000000000000000000000000000001"
)

func writeDonorsFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "donors.json")
	body := `[{"agentId": "claude", "proxyWallet": "` + donorWallet + `"}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func virtualConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogLevel:           "info",
		HTTPPort:           "0",
		DataAPIURL:         "http://unused.invalid",
		GammaAPIURL:        "http://unused.invalid",
		ClobAPIURL:         "http://unused.invalid",
		PollInterval:       3 * time.Second,
		PollLookback:       30 * time.Second,
		PollPageLimit:      100,
		PollRateLimit:      10,
		ExecutionMode:      "virtual",
		PositionBaseUSD:    1.10,
		PositionJitterUSD:  0.20,
		MinAgentBalanceUSD: 1.0,
		StartingBalanceUSD: 1000,
		StorageMode:        "memory",
		DonorsFile:         writeDonorsFile(t),
		Agents: []config.AgentCredentials{
			{AgentID: "claude"},
			{AgentID: "gemini"},
		},
	}
}

func TestNew_BuildsVirtualModeGraph(t *testing.T) {
	a, err := New(virtualConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.cancel()

	assert.Nil(t, a.trader, "virtual mode places no real orders")
	assert.Nil(t, a.breaker)
	assert.Nil(t, a.onchain)
	assert.Nil(t, a.wsMgr, "stream disabled")
	assert.NotNil(t, a.engine)
	assert.NotNil(t, a.poller)
	assert.True(t, a.agentRoster.IsDonor(donorWallet))

	// Agents seeded at the starting balance.
	balance, err := a.store.GetAgentBalance(context.Background(), "claude")
	require.NoError(t, err)
	assert.InDelta(t, 1000, balance, 1e-9)
}

func TestNew_MissingDonorsFileFails(t *testing.T) {
	cfg := virtualConfig(t)
	cfg.DonorsFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
}

// End-to-end through the poll path: a donor BUY on the mock data API
// becomes an open ledger trade.
func TestPipeline_PollToLedger(t *testing.T) {
	dataAPI := testutil.NewMockDataAPI()
	defer dataAPI.Close()
	dataAPI.AddActivity(testutil.CreateTestActivity(
		donorWallet, "BUY", condBTC, 0, 0.52, time.Now().Unix()-5))

	store := storage.NewMemoryStorage(zap.NewNop())
	require.NoError(t, store.SeedAgents(context.Background(), []string{"claude"}, 1000))

	agentRoster := roster.New(nil, zap.NewNop())
	agentRoster.Reload([]types.DonorConfig{{AgentID: "claude", ProxyWallet: donorWallet}})

	coordinator := dedup.New(dedup.Config{})
	intents := make(chan types.TradeIntent, 16)

	engine := ledger.New(ledger.Config{
		Store:             store,
		Locks:             coordinator,
		Roster:            agentRoster,
		PositionBaseUSD:   1.10,
		PositionJitterUSD: 0.20,
		Logger:            zap.NewNop(),
	})

	poller := ingest.NewPoller(ingest.PollerConfig{
		Client: ingest.NewActivityClient(ingest.ActivityConfig{
			BaseURL: dataAPI.URL,
			Logger:  zap.NewNop(),
		}),
		Roster:   agentRoster,
		Cursors:  coordinator,
		Intents:  intents,
		Interval: time.Hour, // first cycle only
		Logger:   zap.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)
	go engine.Run(ctx, intents)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		open, err := store.GetOpenTradesByMarket(ctx, condBTC, 0)
		require.NoError(t, err)
		if len(open) == 1 {
			trade := open[0]
			assert.Equal(t, "claude", trade.AgentID)
			assert.Equal(t, donorWallet, trade.DonorWallet)
			assert.InDelta(t, 0.52, trade.EntryPrice, 1e-9)
			assert.GreaterOrEqual(t, trade.PositionSize, 1.10)
			assert.LessOrEqual(t, trade.PositionSize, 1.30)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("trade never reached the ledger")
}
