package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/swapflow/internal/cli"
	"github.com/aretw0/swapflow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "swapflow",
	Short: "Swapflow is a custodial trading chat backend",
	Long: `Swapflow serves guided buy, sell and withdraw conversations over HTTP,
keeping each user's progress in a session and custody of their wallet keys.`,
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
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level")
}

// loadConfig reads the configuration and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cli.NewLogger(cfg.Log, debug), nil
}
