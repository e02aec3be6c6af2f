package main

import (
	"bakery/migrations"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := migrations.Apply(ctx, db)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			log.Info().Msg("schema is up to date")
			return nil
		}
		log.Info().Strs("applied", applied).Msg("migrations applied")
		return nil
	},
}
