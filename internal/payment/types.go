package payment

import (
	"math/big"
)

// PaymentChallenge is the normalized form of an HTTP 402 challenge body,
// whichever wire shape it arrived in.
type PaymentChallenge struct {
	PayTo          string   // recipient address
	Amount         *big.Int // micro-STX, arbitrary precision
	Asset          string   // normalized asset symbol, always "STX"
	Network        string   // testnet or mainnet, empty if unstated
	Scheme         string   // payment scheme hint, informational
	FacilitatorURL string   // settlement facilitator hint, informational
}

// Transfer describes one on-chain token transfer to submit
type Transfer struct {
	Recipient string
	MicroSTX  *big.Int
	Memo      string
	Network   string
}

// TxStatus is the ledger's view of a submitted transaction
type TxStatus struct {
	TxID      string `json:"tx_id"`
	Status    string `json:"tx_status"`
	BlockHash string `json:"block_hash,omitempty"`
}

// Confirmed reports whether the transaction was anchored successfully
func (s *TxStatus) Confirmed() bool {
	return s.Status == "success"
}

// PaymentReceipt summarizes a completed paid fetch
type PaymentReceipt struct {
	TxID     string
	Amount   *big.Int
	PayTo    string
	Attempts int
	Paid     bool
}
