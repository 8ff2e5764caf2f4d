package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/aretw0/kiosk/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stateless HTTP server",
	Long: `Starts the kiosk engine in stateless server mode, exposing a JSON API over HTTP
with server-sent events for flow changes and conversation diffs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if cmd.Flags().Changed("addr") {
			app.Config.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		if manage, _ := cmd.Flags().GetBool("management"); manage {
			app.Config.Management.Enabled = true
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cli.RunServe(ctx, app, nil); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("management", false, "Enable the flow management endpoints")
}
