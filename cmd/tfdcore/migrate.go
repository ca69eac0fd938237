package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tfdcore/internal/config"
	"tfdcore/internal/infra/persistence/postgres"
	"tfdcore/internal/infra/persistence/sqlite"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema for the configured storage driver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch cfg.StorageDriver {
			case "sqlite":
				p, err := sqlite.Open(ctx, cfg.SQLitePath)
				if err != nil {
					return err
				}
				defer p.Close()
				if err := sqlite.Migrate(ctx, p.DB()); err != nil {
					return err
				}
			case "postgres":
				db, pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
				if err != nil {
					return err
				}
				defer pool.Close()
				defer db.Close()
				if err := postgres.Migrate(ctx, db); err != nil {
					return err
				}
			default:
				return fmt.Errorf("storage driver %q has no managed schema", cfg.StorageDriver)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.StorageDriver)
			return nil
		},
	}
}
