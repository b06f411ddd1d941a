package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/pechasssmaxx/polyfive-arena/internal/app"
	"github.com/pechasssmaxx/polyfive-arena/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the copy-trading engine",
	Long: `Starts the copy-trading engine, which will:
1. Load the donor roster and seed agent ledgers
2. Poll donor wallet activity and subscribe to the real-time stream
3. Mirror donor trades into each copying agent's virtual ledger
4. In live mode, place small real CLOB orders alongside each copy
5. Settle open positions when their markets resolve`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	// .env is optional; env vars may come from the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	return application.Run()
}
