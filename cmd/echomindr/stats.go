package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/echomindr/echomindr/internal/loader"
	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/pkg/logger"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Load the configured corpus and print its statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger.SetupWriter(cmd.ErrOrStderr(), "warn", cfg.Logging.Format)

		src, closeSrc, err := loader.Open(cfg)
		defer closeSrc()
		if err != nil {
			return fmt.Errorf("opening source: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		moments, report, err := loader.Load(ctx, src)
		if err != nil {
			return err
		}
		store, err := moment.NewStore(moments)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Source: %s (%d read, %d skipped)\n", report.Source, report.Read, report.Skipped)
		for _, line := range moment.ComputeStats(store).Lines() {
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
