package payment

import (
	"context"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// LedgerClient is the capability boundary to the token ledger. Transport
// failures surface as ErrLedgerUnavailable or ErrLedgerTimeout; a submitted
// but refused transaction surfaces as ErrLedgerRejected. The split matters:
// transport failures are retryable, rejections are not.
type LedgerClient interface {
	// GetBalance returns the spendable balance in micro-STX. A failed query
	// is an error, never a zero balance.
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// SubmitTransfer signs and broadcasts a token transfer, returning the
	// transaction ID assigned by the ledger
	SubmitTransfer(ctx context.Context, key *btcec.PrivateKey, transfer *Transfer) (string, error)

	// GetTransactionStatus looks up a previously submitted transaction
	GetTransactionStatus(ctx context.Context, txID string) (*TxStatus, error)
}
