package cmd

import (
	"fmt"

	"github.com/pechasssmaxx/polyfive-arena/internal/roster"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var donorsCmd = &cobra.Command{
	Use:   "donors [file]",
	Short: "Validate a donors file",
	Long: `Parses and validates a donors JSON file without starting the engine.
Reports each agent's donor wallets and flags malformed addresses.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDonors,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(donorsCmd)
}

func runDonors(cmd *cobra.Command, args []string) error {
	path := "donors.json"
	if len(args) == 1 {
		path = args[0]
	}

	donors, err := roster.LoadDonorsFile(path)
	if err != nil {
		return fmt.Errorf("invalid donors file: %w", err)
	}

	invalid := 0
	for _, d := range donors {
		fmt.Printf("%s:\n", d.AgentID)
		for _, w := range []string{d.ProxyWallet, d.OnchainWallet} {
			if w == "" {
				continue
			}
			if roster.ValidAddress(w) {
				fmt.Printf("  %s\n", w)
			} else {
				fmt.Printf("  %s  (INVALID ADDRESS)\n", w)
				invalid++
			}
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d invalid wallet address(es)", invalid)
	}

	fmt.Printf("\n%d donor entries OK.\n", len(donors))
	return nil
}
