package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/txn2/dobby/internal/server"
	"github.com/txn2/dobby/pkg/platform"
)

// rootOptions holds the persistent flags and the configuration loaded
// before any subcommand runs.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg *platform.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "dobby",
		Short: "Request parsing and session lifecycle service",
		Long: "dobby parses line-oriented requests and manages server-side sessions,\n" +
			"sweeping the ones that have been idle longer than the configured maximum age.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides dobby.log.level)")

	cmd.AddCommand(
		newRunCmd(opts),
		newParseCmd(),
		newSweepCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and installs the JSON logger on stderr.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := server.LoadConfig(o.configPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := server.NewLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	return nil
}
