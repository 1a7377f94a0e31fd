package payment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/stacksx402/stacks-agent/internal/utils"
)

// FlowState tracks where a paid fetch is in the challenge-response flow
type FlowState string

const (
	StateSent              FlowState = "sent"
	StateChallengeReceived FlowState = "challenge_received"
	StatePaying            FlowState = "paying"
	StateAwaitingSettle    FlowState = "awaiting_settlement"
	StateRetrying          FlowState = "retrying"
	StateSucceeded         FlowState = "succeeded"
	StateFailed            FlowState = "failed"
)

// X402Client performs HTTP fetches that transparently settle x402 payment
// challenges: request, read the 402 terms, pay on-chain, then retry the
// request carrying the transaction ID as proof.
type X402Client struct {
	wallet        *WalletManager
	httpClient    *http.Client
	config        *utils.ConfigManager
	logger        *utils.LogsManager
	maxRetries    int
	paymentHeader string

	// settlementWait runs once between payment and the first retry; backoff
	// spaces the retries after that
	settlementWait time.Duration
	backoff        BackoffPolicy
}

// NewX402Client creates a payment-challenge client around a wallet manager
func NewX402Client(config *utils.ConfigManager, logger *utils.LogsManager, wallet *WalletManager) *X402Client {
	timeout := config.GetConfigDuration("x402_request_timeout", 30*time.Second)
	maxRetries := config.GetConfigInt("x402_max_retries", 3, 1, 10)
	settlementWait := config.GetConfigDuration("x402_settlement_wait", 2*time.Second)
	confirmationWait := config.GetConfigDuration("x402_confirmation_wait", 5*time.Second)
	retryWait := config.GetConfigDuration("x402_retry_wait", 3*time.Second)
	paymentHeader := config.GetConfigWithDefault("x402_payment_header", "payment-signature")

	// Callers who want the transfer fully confirmed before the first retry
	// get the longer confirmation wait instead of the quick settlement one
	if config.GetConfigBool("x402_wait_for_confirmation", false) {
		settlementWait = confirmationWait
	}

	client := &X402Client{
		wallet: wallet,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:         config,
		logger:         logger,
		maxRetries:     maxRetries,
		paymentHeader:  paymentHeader,
		settlementWait: settlementWait,
		backoff:        &FixedBackoff{Interval: retryWait},
	}

	logger.Info(fmt.Sprintf("x402 client initialized: header=%s, max_retries=%d", paymentHeader, maxRetries), "x402")

	return client
}

// SetBackoff replaces the retry backoff policy
func (c *X402Client) SetBackoff(policy BackoffPolicy) {
	c.backoff = policy
}

// SetSettlementWait replaces the post-payment settlement wait
func (c *X402Client) SetSettlementWait(wait time.Duration) {
	c.settlementWait = wait
}

// FetchWithPayment performs the request and settles a payment challenge if
// the server answers 402. On success the returned response body is the paid
// content, unread; the receipt says whether a payment happened. The caller
// closes the response body.
func (c *X402Client) FetchWithPayment(ctx context.Context, userID string, method string, url string, body []byte, service string) (*http.Response, *PaymentReceipt, error) {
	resp, err := c.doRequest(ctx, method, url, body, "")
	if err != nil {
		return nil, nil, err
	}
	c.logState(url, StateSent)

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, &PaymentReceipt{Paid: false}, nil
	}

	c.logState(url, StateChallengeReceived)

	terms, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read challenge body: %v", err)
	}

	challenge, err := ParseChallenge(terms)
	if err != nil {
		c.logState(url, StateFailed)
		return nil, nil, err
	}

	c.logger.Info(fmt.Sprintf("Payment challenge: %s micro-STX to %s", challenge.Amount.String(), challenge.PayTo), "x402")

	c.logState(url, StatePaying)

	// Provision the payer's wallet on first use and verify funds before the
	// transfer; the wallet manager re-checks under its own lock
	wallet, err := c.wallet.GetOrCreateWallet(userID)
	if err != nil {
		c.logState(url, StateFailed)
		return nil, nil, err
	}

	balance, err := c.wallet.GetBalance(ctx, userID)
	if err != nil {
		c.logState(url, StateFailed)
		return nil, nil, err
	}
	if balance.Cmp(challenge.Amount) < 0 {
		c.logState(url, StateFailed)
		return nil, nil, &InsufficientFundsError{
			Address:  wallet.Address,
			Balance:  balance,
			Required: challenge.Amount,
			Network:  wallet.Network,
		}
	}

	txID, err := c.wallet.SendPayment(ctx, userID, challenge.PayTo, challenge.Amount, service)
	if err != nil {
		c.logState(url, StateFailed)
		return nil, nil, err
	}

	receipt := &PaymentReceipt{
		TxID:   txID,
		Amount: new(big.Int).Set(challenge.Amount),
		PayTo:  challenge.PayTo,
		Paid:   true,
	}

	c.logState(url, StateAwaitingSettle)
	if err := c.wait(ctx, c.settlementWait); err != nil {
		receipt.Attempts = 0
		return nil, receipt, c.verificationFailure(txID, 0, err)
	}

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		c.logState(url, StateRetrying)
		receipt.Attempts = attempt

		resp, err := c.doRequest(ctx, method, url, body, txID)
		if err != nil {
			c.logState(url, StateFailed)
			return nil, receipt, c.verificationFailure(txID, attempt, err)
		}

		if resp.StatusCode != http.StatusPaymentRequired {
			c.logState(url, StateSucceeded)
			c.logger.Info(fmt.Sprintf("Payment accepted after %d attempt(s): tx=%s", attempt, txID), "x402")
			return resp, receipt, nil
		}

		// Still 402: the payment has not settled from the server's view
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		if attempt < c.maxRetries {
			if err := c.wait(ctx, c.backoff.NextDelay(attempt)); err != nil {
				c.logState(url, StateFailed)
				return nil, receipt, c.verificationFailure(txID, attempt, err)
			}
		}
	}

	c.logState(url, StateFailed)
	c.logger.Error(fmt.Sprintf("Payment not accepted after %d attempts: tx=%s", c.maxRetries, txID), "x402")
	return nil, receipt, &PaymentVerificationError{
		TxID:     txID,
		Attempts: c.maxRetries,
		Err:      ErrRetriesExhausted,
	}
}

// verificationFailure wraps an error so the transaction ID survives: the
// funds are already spent at this point
func (c *X402Client) verificationFailure(txID string, attempts int, err error) error {
	if err == context.DeadlineExceeded || err == context.Canceled {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &PaymentVerificationError{
		TxID:     txID,
		Attempts: attempts,
		Err:      err,
	}
}

// doRequest performs one HTTP request, attaching the payment proof header
// when a transaction ID is present
func (c *X402Client) doRequest(ctx context.Context, method string, url string, body []byte, txID string) (*http.Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "stacks-agent/1.0")
	if txID != "" {
		req.Header.Set(c.paymentHeader, txID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("request failed: %v", err)
	}
	return resp, nil
}

// wait sleeps for the duration unless the context ends first
func (c *X402Client) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (c *X402Client) logState(url string, state FlowState) {
	c.logger.Debug(fmt.Sprintf("Payment flow %s: %s", url, state), "x402")
}
