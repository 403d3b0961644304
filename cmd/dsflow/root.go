package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/dsflow/internal/config"
	"github.com/aretw0/dsflow/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "dsflow",
	Short: "dsflow is an LLM driven data science assistant",
	Long: `dsflow turns a data science request into a plan, generated code, sandboxed
execution and a validated report, reporting every step as it happens.`,
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
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a dsflow.yaml configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig reads the configuration selected by the persistent flags and
// builds the logger it asks for.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.NewLoader().WithConfigFile(path).Load()
	if err != nil {
		return nil, nil, err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(level), nil
}
