package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mapshock/internal/config"
	"mapshock/internal/logging"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mapshock",
	Short: "MAPSHOCK - protocol-driven intelligence analysis service",
	Long: `MAPSHOCK turns a natural-language query into a structured analysis:
context extraction, deterministic protocol selection over the MAPSHOCK
catalog, LLM research, and a formatted report.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		return logging.Initialize(cfg.Logging.Level, cfg.Logging.JSON)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
