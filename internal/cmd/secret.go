package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stacksx402/stacks-agent/internal/utils"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the wallet encryption secret",
	Long: `Manage the wallet encryption secret in the OS keyring.

The secret protects every stored signing key. It can also be supplied via
the WALLET_ENCRYPTION_SECRET environment variable or a .env file; the
keyring is the fallback. Minimum length is 32 characters.

Changing the secret does not re-encrypt existing wallets; keys sealed
under the old secret become unreadable.`,
}

var secretSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the wallet encryption secret in the OS keyring",
	Run: func(cmd *cobra.Command, args []string) {
		secret, err := promptSecret("Enter wallet encryption secret: ")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		confirmed, err := promptSecret("Confirm secret: ")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if secret != confirmed {
			fmt.Println("Error: Secrets do not match")
			os.Exit(1)
		}

		if err := utils.StoreWalletSecret(secret); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Secret stored in OS keyring")
	},
}

var secretClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the wallet encryption secret from the OS keyring",
	Run: func(cmd *cobra.Command, args []string) {
		if err := utils.DeleteWalletSecret(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Secret removed from OS keyring")
		fmt.Println("Wallets sealed under it can no longer be opened until it is restored")
	},
}

// promptSecret reads a secret from the terminal without echo
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %v", err)
	}
	return string(raw), nil
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretClearCmd)
	rootCmd.AddCommand(secretCmd)
}
