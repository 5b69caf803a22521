package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/swapflow/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Administer custodial wallets",
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a private key for a user",
	Long:  `Reads a private key from the terminal (without echo) or from stdin and seals it for the user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		key, err := readSecret("Private key: ")
		if err != nil {
			return err
		}

		ledger, vault, err := cli.OpenCustody(cfg)
		if err != nil {
			return err
		}
		defer ledger.Close()
		return cli.ImportWallet(cmd.Context(), vault, userID, key, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletImportCmd.Flags().StringP("user", "u", "", "User id that owns the wallet")
	_ = walletImportCmd.MarkFlagRequired("user")
}

func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
