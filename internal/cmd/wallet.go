package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	walletUser       string
	walletPrivateKey string
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage custodial agent wallets",
	Long: `Manage custodial per-user wallets.

Each user gets one wallet, provisioned on first use. The signing key is
generated locally, encrypted with the wallet encryption secret and stored
in the wallet store. Keys are only decrypted for the moment a payment is
signed.`,
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create (or fetch) the wallet for a user",
	Long: `Create the wallet for a user. Creation is idempotent: if the user
already has a wallet, it is returned unchanged.

Example:
  stacks-agent wallet create --user agent-1`,
	Run: func(cmd *cobra.Command, args []string) {
		if walletUser == "" {
			fmt.Println("Error: --user is required")
			os.Exit(1)
		}

		walletManager := mustWalletManager()

		wallet, err := walletManager.GetOrCreateWallet(walletUser)
		if err != nil {
			fmt.Printf("Error: Failed to create wallet: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Wallet ready")
		fmt.Printf("User:     %s\n", wallet.UserID)
		fmt.Printf("Address:  %s\n", wallet.Address)
		fmt.Printf("Network:  %s\n", wallet.Network)
		if wallet.Network == "testnet" {
			fmt.Println()
			fmt.Println("Fund it at https://explorer.hiro.so/sandbox/faucet?chain=testnet")
		}
	},
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an existing signing key for a user",
	Long: `Import an externally generated signing key (hex or base58) for a user.

SECURITY WARNING: Never share your private key with anyone or enter it on
untrusted systems. The private key grants full control over the wallet.

Example:
  stacks-agent wallet import --user agent-1 --private-key 0x1234...`,
	Run: func(cmd *cobra.Command, args []string) {
		if walletUser == "" || walletPrivateKey == "" {
			fmt.Println("Error: --user and --private-key are required")
			os.Exit(1)
		}

		walletManager := mustWalletManager()

		wallet, err := walletManager.ImportWallet(walletUser, walletPrivateKey)
		if err != nil {
			fmt.Printf("Error: Failed to import wallet: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Wallet imported")
		fmt.Printf("User:     %s\n", wallet.UserID)
		fmt.Printf("Address:  %s\n", wallet.Address)
		fmt.Printf("Network:  %s\n", wallet.Network)
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all provisioned wallets",
	Run: func(cmd *cobra.Command, args []string) {
		walletManager := mustWalletManager()

		wallets, err := walletManager.ListWallets()
		if err != nil {
			fmt.Printf("Error: Failed to list wallets: %v\n", err)
			os.Exit(1)
		}

		if len(wallets) == 0 {
			fmt.Println("No wallets provisioned yet")
			return
		}

		for _, wallet := range wallets {
			fmt.Printf("%-24s %s  %s  created %s\n",
				wallet.UserID, wallet.Address, wallet.Network,
				wallet.CreatedAt.Format("2006-01-02 15:04"))
		}
	},
}

var walletInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show a user's wallet details",
	Run: func(cmd *cobra.Command, args []string) {
		if walletUser == "" {
			fmt.Println("Error: --user is required")
			os.Exit(1)
		}

		walletManager := mustWalletManager()

		wallet, err := walletManager.GetOrCreateWallet(walletUser)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("User:       %s\n", wallet.UserID)
		fmt.Printf("Address:    %s\n", wallet.Address)
		fmt.Printf("Network:    %s\n", wallet.Network)
		fmt.Printf("Created:    %s\n", wallet.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Last used:  %s\n", wallet.LastUsedAt.Format("2006-01-02 15:04:05"))
	},
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show a user's on-chain balance",
	Run: func(cmd *cobra.Command, args []string) {
		if walletUser == "" {
			fmt.Println("Error: --user is required")
			os.Exit(1)
		}

		walletManager := mustWalletManager()

		balance, err := walletManager.GetBalance(context.Background(), walletUser)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Balance: %s micro-STX\n", balance.String())
	},
}

func init() {
	walletCmd.PersistentFlags().StringVarP(&walletUser, "user", "u", "", "user ID the wallet belongs to")
	walletImportCmd.Flags().StringVarP(&walletPrivateKey, "private-key", "k", "", "signing key to import (hex or base58)")

	walletCmd.AddCommand(walletCreateCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletListCmd)
	walletCmd.AddCommand(walletInfoCmd)
	walletCmd.AddCommand(walletBalanceCmd)
	rootCmd.AddCommand(walletCmd)
}
