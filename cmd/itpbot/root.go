package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/itpbot/internal/config"
	"github.com/aretw0/itpbot/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "itpbot",
	Short: "itpbot calculates the transfer tax of used vehicles in Spain",
	Long: `itpbot is a conversational assistant for the Impuesto de Transmisiones
Patrimoniales (ITP) paid when a used vehicle changes hands in Spain.

It runs as an HTTP service with a messaging webhook, as an interactive chat,
as an MCP server, or as one-shot commands over the vehicle catalog.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig reads the configuration and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, nil)
	if err != nil {
		return nil, nil, err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.FromConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
