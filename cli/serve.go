package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/airtide/airtide/engine/infra/postgres"
	"github.com/airtide/airtide/engine/infra/server"
	"github.com/airtide/airtide/engine/workflow"
	"github.com/airtide/airtide/pkg/config"
	"github.com/airtide/airtide/pkg/logger"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log := newLogger(cfg)
	ctx, stop := signal.NotifyContext(
		logger.ContextWithLogger(parent, log),
		syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	store, err := postgres.NewStore(ctx, storeConfig(cfg))
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Error("closing store", "error", err)
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := postgres.ApplyMigrationsWithLock(ctx, storeConfig(cfg).DSN()); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
	}
	catalog, err := workflow.LoadCatalog(ctx, cfg.Catalog.Dir)
	if err != nil {
		return fmt.Errorf("loading workflow catalog: %w", err)
	}
	taskRepo := postgres.NewTaskRepo(store.Pool())
	return server.NewServer(cfg, store, taskRepo, catalog).Run(ctx)
}

func newLogger(cfg *config.Config) logger.Logger {
	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.LogLevel(cfg.Log.Level)
	logCfg.JSON = cfg.Log.JSON
	return logger.NewLogger(logCfg)
}

func storeConfig(cfg *config.Config) *postgres.Config {
	return &postgres.Config{
		ConnString: cfg.Database.DSN,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		DBName:     cfg.Database.Name,
		SSLMode:    cfg.Database.SSLMode,
	}
}
