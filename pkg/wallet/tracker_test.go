package wallet

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func validTrackerConfig() *Config {
	return &Config{
		RPCEndpoint:  "https://rpc.example",
		DataAPIURL:   "https://data.example",
		PollInterval: time.Minute,
		Logger:       zap.NewNop(),
		Agents: []Agent{
			{ID: "claude", Address: common.HexToAddress("0x1111111111111111111111111111111111111111")},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"nil logger", func(c *Config) { c.Logger = nil }, true},
		{"empty rpc", func(c *Config) { c.RPCEndpoint = "" }, true},
		{"no agents", func(c *Config) { c.Agents = nil }, true},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTrackerConfig()
			tt.mutate(cfg)

			_, err := New(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateMetrics(t *testing.T) {
	tracker, err := New(validTrackerConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	balances := &Balances{
		MATIC:         big.NewInt(2e18),  // 2 MATIC
		USDC:          big.NewInt(50e6),  // 50 USDC
		USDCAllowance: big.NewInt(100e6), // 100 USDC
	}

	positions := []Position{
		{MarketSlug: "a", Value: 3.0, InitialValue: 2.5, CashPnL: 0.5},
		{MarketSlug: "b", Value: 1.0, InitialValue: 1.5, CashPnL: -0.5},
	}

	// Must not panic; gauge values are observable via the metrics endpoint.
	tracker.updateMetrics("claude", balances, positions)
}
