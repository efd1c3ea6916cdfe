package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/echomindr/echomindr/internal/app"
	"github.com/echomindr/echomindr/internal/mcpserver"
	"github.com/echomindr/echomindr/pkg/config"
	"github.com/echomindr/echomindr/pkg/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol server",
	Long:  "Serves the search_experience, get_experience_detail and find_similar_experiences tools over stdio or SSE.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if transport, _ := cmd.Flags().GetString("transport"); transport != "" {
			cfg.MCP.Transport = transport
		}
		// stdout carries the protocol in stdio mode.
		logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
		if cfg.MCP.Transport == config.TransportStdio {
			cfg.Metrics.Enabled = false
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(cfg, app.Options{})
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				slog.Error("shutdown error", "error", err)
			}
		}()
		if err := a.Start(ctx); err != nil {
			return err
		}

		slog.Info("starting mcp server", "transport", cfg.MCP.Transport, "tools", mcpserver.ToolNames())
		return mcpserver.Serve(ctx, mcpserver.NewServer(a.Facade, version), cfg.MCP)
	},
}

func init() {
	mcpCmd.Flags().String("transport", "", "override mcp.transport (stdio or sse)")
	rootCmd.AddCommand(mcpCmd)
}
