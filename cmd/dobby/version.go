package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txn2/dobby/internal/server"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dobby version %s\n", server.Version)
		},
	}
}
