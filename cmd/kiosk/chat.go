package main

import (
	"github.com/aretw0/kiosk/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hold a conversation on the terminal",
	Long: `Runs one conversation against the configured flow. Type a choice number,
free text or a yes/no answer. Lines starting with : are commands (:quit, :restart en).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		lang, _ := cmd.Flags().GetString("lang")
		jsonMode, _ := cmd.Flags().GetBool("json")
		voiceMode, _ := cmd.Flags().GetBool("voice")

		return cli.RunChat(cmd.Context(), app, cli.ChatOptions{
			Language: lang,
			JSON:     jsonMode,
			Voice:    voiceMode,
			In:       cmd.InOrStdin(),
			Out:      cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("lang", "l", "", "Conversation language (defaults to the configured one)")
	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().Bool("voice", false, "Print every bot message through the console synthesizer")

	rootCmd.RunE = chatCmd.RunE
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())
}
