package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"partnerhub/internal/app"
	"partnerhub/internal/config"
	"partnerhub/internal/logger"
	"partnerhub/internal/migration"
)

const configFlag = "config"

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "partnerhub",
		Short:         "partnerhub API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		// без подкоманды запускаем сервер
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	cmd.PersistentFlags().String(configFlag, config.DefaultPath, "path to the YAML config file")

	cmd.AddCommand(serveCommand(), migrateCommand())
	return cmd
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *migration.Migrator) error { return m.Up() })
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "roll back every migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *migration.Migrator) error { return m.Down() })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *migration.Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func load(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString(configFlag)
	cfg, err := config.Load(cmd.Context(), path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Logging), nil
}

func runServe(cmd *cobra.Command) error {
	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}

func withMigrator(cmd *cobra.Command, fn func(*migration.Migrator) error) error {
	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := app.OpenDB(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := migration.New(db, log)
	if err != nil {
		return err
	}
	return fn(m)
}
