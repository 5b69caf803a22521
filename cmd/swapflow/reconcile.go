package main

import (
	"github.com/aretw0/swapflow/internal/cli"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass",
	Long: `Records transactions whose execution was interrupted before they reached the
ledger and settles pending records, then prints what was done.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.ReconcileOnce(cmd.Context(), app.Reconciler, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
