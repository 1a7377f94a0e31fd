package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stacksx402/stacks-agent/internal/database"
	"github.com/stacksx402/stacks-agent/internal/payment"
	"github.com/stacksx402/stacks-agent/internal/utils"
)

var (
	configPath string
	config     *utils.ConfigManager
	logger     *utils.LogsManager
	db         *database.SQLiteManager
)

var rootCmd = &cobra.Command{
	Use:   "stacks-agent",
	Short: "Custodial STX wallet and x402 payment client",
	Long: `stacks-agent lets autonomous agents pay for metered HTTP APIs with
micro-STX. It answers x402 payment challenges (HTTP 402 with
machine-readable terms) by paying on-chain from a custodial per-user
wallet and retrying the request with the transaction as proof.

Signing keys are encrypted at rest with AES-256-GCM under a key derived
from the wallet encryption secret.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config = utils.NewConfigManager(configPath)
		logger = utils.NewLogsManager(config)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
		if logger != nil {
			logger.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// mustWalletManager builds the wallet stack or exits. Commands that touch
// wallets call this instead of doing it in PersistentPreRun, so commands
// like "secret set" work before a secret exists.
func mustWalletManager() *payment.WalletManager {
	var err error
	db, err = database.NewSQLiteManager(config, logger)
	if err != nil {
		fmt.Printf("Error: Failed to open wallet store: %v\n", err)
		os.Exit(1)
	}

	ledger := payment.NewStacksLedgerClient(config, logger)

	walletManager, err := payment.NewWalletManager(config, logger, db, ledger)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return walletManager
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
}
