package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stacksx402/stacks-agent/internal/payment"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Inspect submitted transactions",
}

var txStatusCmd = &cobra.Command{
	Use:   "status <txid>",
	Short: "Look up the status of a submitted transaction",
	Long: `Look up a transaction on the ledger. Useful follow-up when a payment
was submitted but the origin server never accepted the proof: the error
carries the transaction ID, and this command tells you whether the
transfer actually settled.

Example:
  stacks-agent tx status 0x4e8f...`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ledger := payment.NewStacksLedgerClient(config, logger)

		status, err := ledger.GetTransactionStatus(context.Background(), args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Transaction:  %s\n", status.TxID)
		fmt.Printf("Status:       %s\n", status.Status)
		if status.BlockHash != "" {
			fmt.Printf("Block:        %s\n", status.BlockHash)
		}
	},
}

func init() {
	txCmd.AddCommand(txStatusCmd)
	rootCmd.AddCommand(txCmd)
}
