package main

import (
	"fmt"
	"time"

	"bakery/internal/model"
	"bakery/internal/repository"
	"bakery/internal/service"

	"github.com/spf13/cobra"
)

var renewInterval time.Duration

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Top free-plan users up to their monthly allowance",
	Long: `Runs one renewal pass. With --interval it keeps running a pass on every
tick until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if renewInterval < 0 {
			return fmt.Errorf("--interval must not be negative")
		}
		ctx, cancel := signalContext()
		defer cancel()

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		svc := service.NewRenewalService(repository.NewCreditRepo(db), model.CreditsFromFloat(cfg.FreePlanCredits), log)
		if renewInterval == 0 {
			res, err := svc.RunOnce(ctx, time.Now())
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d top-ups failed", res.Failed, res.Candidates)
			}
			return nil
		}
		return svc.Run(ctx, renewInterval)
	},
}

func init() {
	renewCmd.Flags().DurationVar(&renewInterval, "interval", 0, "repeat every interval until SIGINT/SIGTERM (0 runs once)")
}
