package main

import (
	"bakery/internal/cache"
	"bakery/internal/catalog"
	"bakery/internal/repository"
	"bakery/internal/service"

	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the plan, pack and model-cost catalogue",
	Long: `Replaces the stored catalogue with the built-in one, or with the YAML
file given by --file, and drops the cached plan and pack lists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		c := catalog.Default()
		if seedFile != "" {
			var err error
			if c, err = catalog.Load(seedFile); err != nil {
				return err
			}
		}

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		jsonCache := cache.NopCache()
		if cfg.RedisAddr != "" {
			rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
				Address:  cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
				UseTLS:   cfg.RedisTLS,
			})
			if err != nil {
				return err
			}
			defer rdb.Close()
			jsonCache = cache.NewRedisCache(rdb, "bakery:")
		}

		svc := service.NewCatalogService(repository.NewCatalogRepo(db), jsonCache, catalog.Default(), log)
		return svc.Seed(ctx, c)
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "catalogue YAML file (default: built-in catalogue)")
}
