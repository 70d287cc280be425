package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txn2/dobby/pkg/database/migrate"
	"github.com/txn2/dobby/pkg/platform"
)

var errNoDSN = errors.New(platform.DatabaseDSNKey + " is required for migrations")

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL session schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts.cfg, migrate.Run)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations, dropping stored sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts.cfg, migrate.Down)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts.cfg, func(db *sql.DB) error {
					version, dirty, err := migrate.Version(db)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

// withDatabase opens the configured database, runs fn and closes it.
func withDatabase(ctx context.Context, cfg *platform.Config, fn func(*sql.DB) error) error {
	if cfg.Database.DSN == "" {
		return errNoDSN
	}
	db, err := platform.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}
