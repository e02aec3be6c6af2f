// Command bakeryctl runs operator tasks against the bakery database:
// migrations, catalogue seeding and free-plan renewal.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"bakery/internal/config"
	"bakery/internal/logger"
	"bakery/internal/repository"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	log zerolog.Logger
	cfg *config.ToolConfig
)

var rootCmd = &cobra.Command{
	Use:           "bakeryctl",
	Short:         "Operator commands for the bakery API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		c, err := config.LoadTool()
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedCmd, renewCmd)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openDB(ctx context.Context) (*sql.DB, error) {
	return repository.Open(ctx, cfg.DBConnectionString, cfg.Environment)
}

func main() {
	log = logger.New()
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
