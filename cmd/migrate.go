package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"apinode/internal/db"
)

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the public.request table if it does not exist",
	Long:  "Create the public.request table if it does not exist. The table is normally provisioned outside this service; use this for local development.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(pool.DB()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("public.request is up to date")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(MigrateCmd)
}
