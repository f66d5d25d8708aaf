package main

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/opsmind/monchat/config"
	"github.com/opsmind/monchat/internal/embedding"
	"github.com/opsmind/monchat/internal/etl"
	"github.com/opsmind/monchat/internal/vectorstore"
)

func etlCMD() *cobra.Command {
	var cfgPath string
	var once bool
	var cmd = &cobra.Command{
		Use:   "etl",
		Short: "Run the ingestion pipeline, one-shot or on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			logger := log.New(log.Writer(), "[ETL] ", log.LstdFlags)
			ctx := context.Background()

			// Setup failures (bad DSN, unreachable store) are the only
			// non-zero exits; empty dates inside a run are routine.
			var sink etl.DocumentSink
			if cfg.Storage.Postgres.Enabled {
				dsn, err := cfg.Storage.Postgres.DSN()
				if err != nil {
					return err
				}
				store, err := vectorstore.New(ctx, dsn, cfg.Storage.Postgres.EmbeddingDim)
				if err != nil {
					return err
				}
				defer store.Close()
				sink = store
			}

			pipeline := etl.NewPipeline(cfg, etl.BuildSources(cfg, logger), embedding.Default(cfg.Embedding), sink, logger)

			if cfg.ETL.SchedulerEnabled && !once {
				var rdb *redis.Client
				if cfg.Storage.Redis.Addr != "" {
					rdb = redis.NewClient(&redis.Options{
						Addr:     cfg.Storage.Redis.Addr,
						Password: cfg.Storage.Redis.Password,
						DB:       cfg.Storage.Redis.DB,
					})
				}
				return etl.NewScheduler(pipeline, cfg.ETL.Cron, rdb, logger).Run(ctx)
			}

			reports, err := pipeline.Run(ctx)
			if err != nil {
				return err
			}
			for _, r := range reports {
				switch {
				case r.Err != "":
					logger.Printf("date %s: failed: %s", r.Date, r.Err)
				case r.Skipped:
					logger.Printf("date %s: no data", r.Date)
				default:
					logger.Printf("date %s: %d rows, %d documents", r.Date, r.Rows, r.Inserted)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single window pass even when the scheduler is enabled")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
