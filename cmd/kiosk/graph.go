package main

import (
	"github.com/aretw0/kiosk/internal/cli"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the flow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of one language flow.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		lang, _ := cmd.Flags().GetString("lang")
		if lang == "" {
			lang = cfg.Flow.DefaultLanguage
		}

		var doc *domain.FlowDocument
		if cfg.Flow.Source == "" {
			doc = flow.Fallback()
		} else {
			logger, err := cli.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			doc, err = cli.LoadDocument(cmd.Context(), cli.NewSource(cfg.Flow.Source, logger))
			if err != nil {
				return err
			}
		}
		return cli.RunGraph(cmd.OutOrStdout(), doc, lang, cfg.Flow.EntryNode)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("lang", "l", "", "Language flow to draw (defaults to the configured one)")
}
