// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wardenid/wardenid/internal/identity/postgres"
	"github.com/wardenid/wardenid/internal/logging"
	"github.com/wardenid/wardenid/internal/observability"
)

const defaultMetricsAddr = "127.0.0.1:9100"

// serveConfig holds configuration for the serve command.
type serveConfig struct {
	metricsAddr string
}

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics and health endpoint server",
		Long: `Run a long-lived process exposing Prometheus operation metrics and
Kubernetes-style health probes. Readiness reflects PostgreSQL
connectivity.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", defaultMetricsAddr, "metrics/health HTTP listen address")

	return cmd
}

func runServe(cmd *cobra.Command, cfg *serveConfig) error {
	if cfg.metricsAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("metrics-addr is required")
	}

	appCfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	databaseURL, err := appCfg.requireDatabaseURL()
	if err != nil {
		return err
	}

	logging.SetDefault("wardenid", version, appCfg.LogFormat)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool, err := postgres.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	ready := func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	}

	obsServer := observability.NewServer(cfg.metricsAddr, ready)
	errCh, err := obsServer.Start()
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Printf("serving metrics on %s\n", obsServer.Addr())
	slog.Info("wardenid serve ready", "metrics_addr", obsServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
	case serveErr := <-errCh:
		if serveErr != nil {
			return oops.With("addr", cfg.metricsAddr).Wrap(serveErr)
		}
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
