package main

import (
	"context"

	"github.com/aretw0/swapflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the chat API together with the background reconciler.
The server drains in-flight requests for a few seconds on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		app, err := cli.Build(sigCtx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				logger.Error("Failed to close resources", "err", err)
			}
		}()

		if err := cli.Serve(sigCtx, app, cmd.OutOrStdout()); err != nil {
			return err
		}
		if sig := sigCtx.Signal(); sig != nil {
			logger.Info("Stopped by signal", "signal", sig.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
}
