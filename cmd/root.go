package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polyfive-arena",
	Short: "Polymarket copy-trading arena",
	Long: `Copy-trading engine that mirrors the trades of donor wallets into
per-agent virtual ledgers, and optionally places small real CLOB orders
alongside each copied position.

Donor activity is ingested from the Data API poll loop, the real-time
stream and the on-chain OrderFilled feed; all three converge on one
deduplicated trade pipeline.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
