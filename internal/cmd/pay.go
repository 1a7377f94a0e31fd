package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacksx402/stacks-agent/internal/payment"
	"github.com/stacksx402/stacks-agent/internal/utils"
)

var (
	payUser    string
	payURL     string
	payService string
	payPath    string
	payMethod  string
	payData    string
)

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Fetch a URL, settling a payment challenge if one comes back",
	Long: `Perform an HTTP request on behalf of a user. If the server answers
with a 402 payment challenge, pay it from the user's wallet and retry the
request with the transaction as proof.

The target is either a full --url, or a --service label from the service
registry combined with a --path.

Examples:
  stacks-agent pay --user agent-1 --url https://api.example.com/research
  stacks-agent pay --user agent-1 --service research --path /v1/report`,
	Run: func(cmd *cobra.Command, args []string) {
		if payUser == "" {
			fmt.Println("Error: --user is required")
			os.Exit(1)
		}

		url := payURL
		if url == "" {
			if payService == "" {
				fmt.Println("Error: provide --url, or --service with --path")
				os.Exit(1)
			}
			registry, err := utils.LoadServiceRegistry(config)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			base, err := registry.Resolve(payService)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				if labels := registry.Labels(); len(labels) > 0 {
					fmt.Printf("Known services: %s\n", strings.Join(labels, ", "))
				}
				os.Exit(1)
			}
			url = strings.TrimSuffix(base, "/") + payPath
		}

		walletManager := mustWalletManager()
		client := payment.NewX402Client(config, logger, walletManager)

		var body []byte
		if payData != "" {
			body = []byte(payData)
		}

		resp, receipt, err := client.FetchWithPayment(context.Background(), payUser, payMethod, url, body, payService)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		content, err := io.ReadAll(resp.Body)
		if err != nil {
			fmt.Printf("Error: Failed to read response: %v\n", err)
			os.Exit(1)
		}

		if receipt.Paid {
			fmt.Fprintf(os.Stderr, "Paid %s micro-STX to %s (tx %s, %d attempt(s))\n",
				receipt.Amount.String(), receipt.PayTo, receipt.TxID, receipt.Attempts)
		}
		fmt.Fprintf(os.Stderr, "HTTP %d\n", resp.StatusCode)
		os.Stdout.Write(content)
	},
}

func init() {
	payCmd.Flags().StringVarP(&payUser, "user", "u", "", "user ID whose wallet pays")
	payCmd.Flags().StringVar(&payURL, "url", "", "full URL to fetch")
	payCmd.Flags().StringVarP(&payService, "service", "s", "", "service label from the service registry")
	payCmd.Flags().StringVarP(&payPath, "path", "p", "/", "path under the service base URL")
	payCmd.Flags().StringVarP(&payMethod, "method", "X", "GET", "HTTP method")
	payCmd.Flags().StringVarP(&payData, "data", "d", "", "request body (sent as JSON)")
	rootCmd.AddCommand(payCmd)
}
