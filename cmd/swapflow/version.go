package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/swapflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of swapflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "swapflow version %s\n", strings.TrimSpace(swapflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
