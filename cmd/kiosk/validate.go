package main

import (
	"fmt"

	"github.com/aretw0/kiosk/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [source]",
	Short: "Check the flow document for consistency",
	Long: `Decodes the flow document, reports reachable and unreachable nodes per language,
and fails on dangling references or unknown node types.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.Flow.Source = args[0]
		}
		if cfg.Flow.Source == "" {
			return fmt.Errorf("no flow source: pass one or set flow.source")
		}
		logger, err := cli.NewLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		source := cli.NewSource(cfg.Flow.Source, logger)
		if err := cli.RunValidate(cmd.Context(), cmd.OutOrStdout(), source, cfg.Flow.EntryNode); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
