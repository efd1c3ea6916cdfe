package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/echomindr/echomindr/pkg/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "echomindr",
	Short:         "Search founder experiences from startup podcasts",
	Long:          "echomindr serves a curated corpus of founder moments over HTTP and the Model Context Protocol.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to YAML config file (defaults plus ECHOMINDR_* env when empty)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
