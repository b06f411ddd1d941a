package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/pechasssmaxx/polyfive-arena/internal/storage"
	"github.com/pechasssmaxx/polyfive-arena/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe the ledger and reseed agent balances",
	Long: `Deletes all trades and equity history and resets every agent's
balance and statistics to the starting balance. Requires --confirm.`,
	RunE: runReset,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resetConfirm bool

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetConfirm, "confirm", false, "Actually perform the reset")
}

func runReset(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !resetConfirm {
		return fmt.Errorf("refusing to wipe the ledger without --confirm")
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.StorageMode != "postgres" {
		fmt.Println("STORAGE_MODE=memory holds no persistent state; nothing to reset.")
		return nil
	}

	store, err := storage.NewPostgresStorage(&storage.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = store.Reset(ctx, cfg.StartingBalanceUSD)
	if err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}

	fmt.Printf("Ledger reset; agents reseeded at $%.2f.\n", cfg.StartingBalanceUSD)
	return nil
}
