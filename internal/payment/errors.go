package payment

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// Challenge parsing errors
	ErrMalformedChallenge = errors.New("malformed payment challenge")
	ErrUnsupportedAsset   = errors.New("unsupported payment asset")

	// Ledger errors
	ErrLedgerUnavailable = errors.New("ledger service unavailable")
	ErrLedgerTimeout     = errors.New("ledger service timeout")
	ErrLedgerRejected    = errors.New("transaction rejected by ledger")

	// Wallet errors
	ErrWalletNotFound = errors.New("wallet not found")
	ErrBalanceUnknown = errors.New("wallet balance unknown")
	ErrInvalidKey     = errors.New("invalid signing key")
	ErrInvalidNetwork = errors.New("invalid network")

	// Protocol errors
	ErrRetriesExhausted = errors.New("payment retries exhausted")
	ErrTimeout          = errors.New("payment flow timed out")
)

// TestnetFaucetURL is included in funding hints on testnet
const TestnetFaucetURL = "https://explorer.hiro.so/sandbox/faucet?chain=testnet"

// InsufficientFundsError reports a wallet that cannot cover the requested
// amount. Balance and Required are micro-STX.
type InsufficientFundsError struct {
	Address  string
	Balance  *big.Int
	Required *big.Int
	Network  string
}

func (e *InsufficientFundsError) Error() string {
	msg := fmt.Sprintf("insufficient funds: address %s has %s micro-STX, needs %s micro-STX",
		e.Address, e.Balance.String(), e.Required.String())
	if e.Network == "testnet" {
		msg += fmt.Sprintf(" (fund it at %s)", TestnetFaucetURL)
	}
	return msg
}

// PaymentVerificationError reports a payment that was submitted on-chain but
// never accepted by the origin server. TxID lets the operator follow up: the
// funds left the wallet even though the content was not delivered.
type PaymentVerificationError struct {
	TxID     string
	Attempts int
	Err      error
}

func (e *PaymentVerificationError) Error() string {
	return fmt.Sprintf("payment not accepted after %d attempts (tx %s)", e.Attempts, e.TxID)
}

func (e *PaymentVerificationError) Unwrap() error {
	return e.Err
}
