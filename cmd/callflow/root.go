package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/callflow/internal/cli"
	"github.com/aretw0/callflow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "callflow",
	Short: "Callflow designs and rehearses AI phone-call scripts",
	Long: `Callflow edits conversation flows (the script an AI agent follows on a call)
as directed graphs, checks them for unreachable nodes and unresolved placeholders,
and simulates calls against them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "callflow.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// setup loads the configuration and logger every command starts from.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, cli.NewLogger(debug, cfg.Level()), nil
}

// openBackend is setup plus the configured storage backend.
func openBackend(cmd *cobra.Command) (*cli.Backend, *slog.Logger, config.Config, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, nil, cfg, err
	}
	b, err := cli.OpenBackend(cfg, logger)
	if err != nil {
		return nil, nil, cfg, err
	}
	return b, logger, cfg, nil
}
