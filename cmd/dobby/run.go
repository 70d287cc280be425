package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/txn2/dobby/internal/server"
	"github.com/txn2/dobby/pkg/health"
	"github.com/txn2/dobby/pkg/platform"
)

const (
	// shutdownTimeout bounds Platform.Stop after a signal.
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var healthAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the session service and its cleanup schedule",
		Long: "Start the platform and run until SIGINT or SIGTERM. With a shared\n" +
			"postgres or redis store this process sweeps idle sessions for every\n" +
			"instance using the store.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if healthAddr != "" {
				opts.cfg.HealthAddr = healthAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPlatform(ctx, opts.cfg)
		},
	}
	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "listen address for /healthz and /readyz (overrides config)")
	return cmd
}

// runPlatform starts the platform, waits for ctx to end and stops it.
func runPlatform(ctx context.Context, cfg *platform.Config) error {
	p, err := server.New(cfg)
	if err != nil {
		return err
	}

	checker := health.NewChecker(p.Ping)
	if cfg.HealthAddr != "" {
		srv, addr, err := startHealthServer(cfg.HealthAddr, checker)
		if err != nil {
			return err
		}
		slog.Info("dobby: health endpoints listening", "addr", addr.String())
		defer shutdownHealthServer(srv)
	}

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}
	checker.SetReady()
	slog.Info("dobby: started", "version", server.Version, "store", string(cfg.Store))

	<-ctx.Done()
	checker.SetDraining()
	slog.Info("dobby: shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		return fmt.Errorf("stopping platform: %w", err)
	}
	return nil
}

// startHealthServer binds addr and serves the checker's endpoints.
func startHealthServer(addr string, checker *health.Checker) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           checker.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("dobby: health server failed", "error", err)
		}
	}()
	return srv, ln.Addr(), nil
}

func shutdownHealthServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("dobby: health server shutdown failed", "error", err)
	}
}
