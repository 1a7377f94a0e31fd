package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	logUser   string
	logLimit  int
	logOffset int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show a user's payment audit log",
	Long: `Show the append-only payment log for a user, newest first. Each row
records the transaction ID, recipient and amount of one settled challenge,
with an integrity checksum.

Example:
  stacks-agent log --user agent-1 --limit 20`,
	Run: func(cmd *cobra.Command, args []string) {
		if logUser == "" {
			fmt.Println("Error: --user is required")
			os.Exit(1)
		}

		walletManager := mustWalletManager()

		entries, err := walletManager.ListPayments(logUser, logLimit, logOffset)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			fmt.Println("No payments recorded")
			return
		}

		for _, entry := range entries {
			service := entry.Service
			if service == "" {
				service = "-"
			}
			integrity := "ok"
			if !db.VerifyPaymentLogEntry(entry) {
				integrity = "CHECKSUM MISMATCH"
			}
			fmt.Printf("%s  %-12s %12s micro-STX  -> %s  tx %s  [%s]\n",
				entry.CreatedAt.Format("2006-01-02 15:04:05"),
				service, entry.MicroSTX, entry.Recipient, entry.TxID, integrity)
		}
	},
}

func init() {
	logCmd.Flags().StringVarP(&logUser, "user", "u", "", "user ID to show payments for")
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 50, "maximum rows to show")
	logCmd.Flags().IntVar(&logOffset, "offset", 0, "rows to skip")
	rootCmd.AddCommand(logCmd)
}
