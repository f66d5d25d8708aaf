package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsmind/monchat/config"
	"github.com/opsmind/monchat/internal/vectorstore"
)

func schemaCMD() *cobra.Command {
	var cfgPath string
	var cmd = &cobra.Command{
		Use:   "schema",
		Short: "Ensure the vector store schema (extension, table, index) exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := vectorstore.New(ctx, dsn, cfg.Storage.Postgres.EmbeddingDim)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Println("schema_ok")
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
