package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/google/uuid"

	"github.com/stacksx402/stacks-agent/internal/utils"
)

// StacksLedgerClient talks to a Stacks-node-style HTTP API
type StacksLedgerClient struct {
	baseURL    string
	network    string
	feeRate    *big.Int
	httpClient *http.Client
	config     *utils.ConfigManager
	logger     *utils.LogsManager
}

// NewStacksLedgerClient creates a ledger client from config. The API base
// URL defaults by network when ledger_api_url is unset.
func NewStacksLedgerClient(config *utils.ConfigManager, logger *utils.LogsManager) *StacksLedgerClient {
	network := config.GetConfigWithDefault("stacks_network", "testnet")

	defaultURL := "https://api.testnet.hiro.so"
	if network == "mainnet" {
		defaultURL = "https://api.hiro.so"
	}
	baseURL := strings.TrimSuffix(config.GetConfigWithDefault("ledger_api_url", defaultURL), "/")

	timeout := config.GetConfigDuration("ledger_timeout", 10*time.Second)
	fee := big.NewInt(int64(config.GetConfigInt("transfer_fee_microstx", 200, 0, 1_000_000)))

	client := &StacksLedgerClient{
		baseURL: baseURL,
		network: network,
		feeRate: fee,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config: config,
		logger: logger,
	}

	logger.Info(fmt.Sprintf("Ledger client initialized: url=%s, network=%s", baseURL, network), "ledger")

	return client
}

type accountResponse struct {
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// GetBalance returns the spendable micro-STX balance of an address.
// Any failure to get an answer is an error; an unreachable ledger never
// reads as an empty wallet.
func (c *StacksLedgerClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	url := fmt.Sprintf("%s/v2/accounts/%s?proof=0", c.baseURL, address)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var account accountResponse
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("failed to parse account response: %v", err)
	}

	// Node returns the balance as a 0x-prefixed hex string
	balance, ok := new(big.Int).SetString(account.Balance, 0)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q for %s", account.Balance, address)
	}

	return balance, nil
}

// getNonce returns the account's next transaction nonce
func (c *StacksLedgerClient) getNonce(ctx context.Context, address string) (uint64, error) {
	url := fmt.Sprintf("%s/v2/accounts/%s?proof=0", c.baseURL, address)

	body, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}

	var account accountResponse
	if err := json.Unmarshal(body, &account); err != nil {
		return 0, fmt.Errorf("failed to parse account response: %v", err)
	}

	return account.Nonce, nil
}

type transferRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee"`
	Nonce     uint64 `json:"nonce"`
	Memo      string `json:"memo,omitempty"`
	Network   string `json:"network"`
	RequestID string `json:"request_id"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

type transferResponse struct {
	TxID   string `json:"txid"`
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// signingDigest is the canonical digest a transfer signature commits to
func signingDigest(req *transferRequest) []byte {
	payload := strings.Join([]string{
		req.Sender,
		req.Recipient,
		req.Amount,
		req.Fee,
		fmt.Sprintf("%d", req.Nonce),
		req.Memo,
		req.Network,
		req.RequestID,
	}, "|")
	digest := sha256.Sum256([]byte(payload))
	return digest[:]
}

// SubmitTransfer signs and broadcasts a token transfer
func (c *StacksLedgerClient) SubmitTransfer(ctx context.Context, key *btcec.PrivateKey, transfer *Transfer) (string, error) {
	if transfer.MicroSTX == nil || transfer.MicroSTX.Sign() <= 0 {
		return "", fmt.Errorf("%w: transfer amount must be positive", ErrLedgerRejected)
	}

	network := transfer.Network
	if network == "" {
		network = c.network
	}

	sender, err := AddressFromKey(key, network)
	if err != nil {
		return "", err
	}

	nonce, err := c.getNonce(ctx, sender)
	if err != nil {
		return "", err
	}

	req := &transferRequest{
		Sender:    sender,
		Recipient: transfer.Recipient,
		Amount:    transfer.MicroSTX.String(),
		Fee:       c.feeRate.String(),
		Nonce:     nonce,
		Memo:      transfer.Memo,
		Network:   network,
		RequestID: uuid.NewString(),
		PublicKey: hex.EncodeToString(key.PubKey().SerializeCompressed()),
	}

	signature := ecdsa.SignCompact(key, signingDigest(req), true)
	req.Signature = hex.EncodeToString(signature)

	url := c.baseURL + "/v2/transactions"

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transfer: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "stacks-agent/1.0")

	c.logger.Debug(fmt.Sprintf("Submitting transfer: %s -> %s, %s micro-STX", sender, transfer.Recipient, req.Amount), "ledger")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", ErrLedgerTimeout
		}
		return "", ErrLedgerUnavailable
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %v", err)
	}

	if httpResp.StatusCode >= 500 {
		c.logger.Warn(fmt.Sprintf("Ledger server error (HTTP %d)", httpResp.StatusCode), "ledger")
		return "", ErrLedgerUnavailable
	}

	if httpResp.StatusCode >= 400 {
		var resp transferResponse
		if err := json.Unmarshal(respBody, &resp); err == nil && resp.Reason != "" {
			return "", fmt.Errorf("%w: %s", ErrLedgerRejected, resp.Reason)
		}
		return "", fmt.Errorf("%w: HTTP %d", ErrLedgerRejected, httpResp.StatusCode)
	}

	var resp transferResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		// Some nodes return the txid as a bare JSON string
		var txid string
		if err2 := json.Unmarshal(respBody, &txid); err2 == nil && txid != "" {
			return txid, nil
		}
		return "", fmt.Errorf("failed to parse transfer response: %v", err)
	}
	if resp.TxID == "" {
		return "", fmt.Errorf("%w: no transaction ID in response", ErrLedgerRejected)
	}

	c.logger.Info(fmt.Sprintf("Transfer submitted: tx=%s", resp.TxID), "ledger")
	return resp.TxID, nil
}

// GetTransactionStatus looks up a submitted transaction
func (c *StacksLedgerClient) GetTransactionStatus(ctx context.Context, txID string) (*TxStatus, error) {
	url := fmt.Sprintf("%s/extended/v1/tx/%s", c.baseURL, txID)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var status TxStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse transaction status: %v", err)
	}
	if status.TxID == "" {
		status.TxID = txID
	}

	return &status, nil
}

// get performs a GET and maps transport and status failures to ledger errors
func (c *StacksLedgerClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "stacks-agent/1.0")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrLedgerTimeout
		}
		return nil, ErrLedgerUnavailable
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	if httpResp.StatusCode >= 500 {
		c.logger.Warn(fmt.Sprintf("Ledger server error (HTTP %d) for %s", httpResp.StatusCode, url), "ledger")
		return nil, ErrLedgerUnavailable
	}
	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrLedgerRejected, httpResp.StatusCode)
	}

	return body, nil
}
