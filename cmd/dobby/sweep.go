package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txn2/dobby/internal/server"
)

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove idle sessions once and print how many were removed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *opts.cfg
			// one sweep only; the repeating task would run a second one
			cfg.Scheduler.Disabled = true

			p, err := server.New(&cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := p.Start(ctx); err != nil {
				return fmt.Errorf("starting platform: %w", err)
			}
			defer func() { _ = p.Stop(ctx) }()

			removed, err := p.Sessions().Sweep(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d sessions\n", removed)
			if err != nil {
				return fmt.Errorf("sweeping sessions: %w", err)
			}
			return nil
		},
	}
}
