package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lininn/gitlab-review-mcp/internal/mcp"
	"github.com/lininn/gitlab-review-mcp/internal/metrics"
)

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over stdin/stdout (default)",
	Long: `Serve the Model Context Protocol over stdin/stdout.

This is what MCP clients run. stdout carries JSON-RPC only; logs go to
stderr, or to a file when DEBUG is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	service, err := newService(cfg, appLogger)
	if err != nil {
		return err
	}
	if cfg.Token == "" {
		appLogger.Warn("No GitLab token configured; requests will be unauthenticated")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			appLogger.Info("Serving metrics", "addr", cfg.MetricsAddr)
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				appLogger.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	server := mcp.NewServer(cfg, appLogger, service, version)
	return server.Serve(ctx, os.Stdin, os.Stdout)
}
