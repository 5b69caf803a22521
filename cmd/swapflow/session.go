package main

import (
	"github.com/aretw0/swapflow/internal/cli"
	"github.com/aretw0/swapflow/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage chat sessions",
	Long:  `List, inspect, and remove sessions in the configured session store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all active sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.SessionStore) error {
			return cli.ListSessions(cmd.Context(), store, cmd.OutOrStdout())
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.SessionStore) error {
			return cli.InspectSession(cmd.Context(), store, args[0], cmd.OutOrStdout())
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.SessionStore) error {
			return cli.RemoveSessions(cmd.Context(), store, args, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}

// withStore opens the configured session store for the duration of fn.
// The memory backend only sees sessions of this process, so these commands
// are meant for the redis backend.
func withStore(cmd *cobra.Command, fn func(ports.SessionStore) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, _, closeStore, err := cli.NewSessionStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(store)
}
