package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/airtide/airtide/engine/infra/postgres"
	"github.com/airtide/airtide/pkg/config"
	"github.com/airtide/airtide/pkg/logger"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			ctx := logger.ContextWithLogger(cmd.Context(), newLogger(cfg))
			if err := postgres.ApplyMigrationsWithLock(ctx, storeConfig(cfg).DSN()); err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}
			logger.FromContext(ctx).Info("migrations applied")
			return nil
		},
	}
}
