package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/echomindr/echomindr/internal/app"
	"github.com/echomindr/echomindr/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, metrics endpoint and Kafka consumers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
		slog.Info("starting echomindr",
			"version", version,
			"port", cfg.Server.Port,
			"source", cfg.Source.Driver,
			"kafka", cfg.Kafka.Enabled,
			"redis", cfg.Redis.Enabled,
		)

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
			slog.Info("echomindr stopped")
		}()

		if err := a.Start(ctx); err != nil {
			return err
		}
		return a.ServeHTTP(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
