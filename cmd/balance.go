package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pechasssmaxx/polyfive-arena/internal/roster"
	"github.com/pechasssmaxx/polyfive-arena/pkg/config"
	"github.com/pechasssmaxx/polyfive-arena/pkg/wallet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check agent funder wallet balances and positions",
	Long: `Display each configured agent's funding wallet state:
- MATIC balance (for gas)
- USDC balance (for real orders)
- USDC allowance (approved to the CTF Exchange)
- Active positions (outcome tokens held)`,
	RunE: runBalance,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	showPositions bool
	balanceRPC    string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().BoolVarP(&showPositions, "positions", "p", true, "Show active positions")
	balanceCmd.Flags().StringVarP(&balanceRPC, "rpc", "r", "https://polygon-rpc.com", "Polygon RPC endpoint")
}

func runBalance(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := wallet.NewClient(balanceRPC, cfg.DataAPIURL, zap.NewNop())
	if err != nil {
		return fmt.Errorf("create wallet client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	found := 0
	for _, agent := range cfg.Agents {
		if !roster.ValidAddress(agent.Funder) {
			continue
		}
		found++

		fmt.Printf("\n=== %s (%s) ===\n", agent.AgentID, agent.Funder)

		balances, err := client.GetBalances(ctx, common.HexToAddress(agent.Funder))
		if err != nil {
			fmt.Printf("  balance lookup failed: %v\n", err)
			continue
		}

		fmt.Printf("  MATIC:          %s\n", formatUnits(balances.MATIC, 18))
		fmt.Printf("  USDC:           %s\n", formatUnits(balances.USDC, 6))
		fmt.Printf("  USDC allowance: %s\n", formatUnits(balances.USDCAllowance, 6))

		if !showPositions {
			continue
		}

		positions, err := client.GetPositions(ctx, agent.Funder)
		if err != nil {
			fmt.Printf("  position lookup failed: %v\n", err)
			continue
		}
		if len(positions) == 0 {
			fmt.Println("  no open positions")
			continue
		}
		for _, p := range positions {
			fmt.Printf("  %-40s %-4s %8.2f shares  $%.2f (%+.2f%%)\n",
				p.MarketSlug, p.Outcome, p.Size, p.Value, p.PercentPnL)
		}
	}

	if found == 0 {
		fmt.Println("No agents with a funder wallet configured (BOT_<n>_FUNDER).")
	}
	return nil
}

func formatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	f := new(big.Float).Quo(
		new(big.Float).SetInt(v),
		new(big.Float).SetFloat64(float64pow10(decimals)))
	return f.Text('f', 4)
}

func float64pow10(n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}
