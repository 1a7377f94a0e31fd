package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/stacksx402/stacks-agent/internal/database"
	"github.com/stacksx402/stacks-agent/internal/utils"
)

const testSecret = "unit-test-wallet-encryption-secret-0123456789"

// fakeLedger is an in-memory LedgerClient. Balances are debited on submit so
// double-spend tests observe real fund movement.
type fakeLedger struct {
	mu         sync.Mutex
	balances   map[string]*big.Int
	submitted  []*Transfer
	txCounter  int
	balanceErr error
	submitErr  error
	statuses   map[string]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[string]*big.Int),
		statuses: make(map[string]string),
	}
}

func (f *fakeLedger) fund(address string, microSTX int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = big.NewInt(microSTX)
}

func (f *fakeLedger) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	balance, exists := f.balances[address]
	if !exists {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

func (f *fakeLedger) SubmitTransfer(ctx context.Context, key *btcec.PrivateKey, transfer *Transfer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}

	sender, err := AddressFromKey(key, transfer.Network)
	if err != nil {
		return "", err
	}
	balance, exists := f.balances[sender]
	if !exists || balance.Cmp(transfer.MicroSTX) < 0 {
		return "", fmt.Errorf("%w: insufficient funds on chain", ErrLedgerRejected)
	}
	balance.Sub(balance, transfer.MicroSTX)

	f.txCounter++
	txID := fmt.Sprintf("0xfake%04d", f.txCounter)
	f.submitted = append(f.submitted, transfer)
	f.statuses[txID] = "success"
	return txID, nil
}

func (f *fakeLedger) GetTransactionStatus(ctx context.Context, txID string) (*TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, exists := f.statuses[txID]
	if !exists {
		return nil, fmt.Errorf("%w: unknown transaction", ErrLedgerRejected)
	}
	return &TxStatus{TxID: txID, Status: status}, nil
}

func newTestWalletManager(t *testing.T, ledger LedgerClient) *WalletManager {
	t.Helper()

	cm := utils.NewConfigManager("")
	cm.SetConfig("database_file", filepath.Join(t.TempDir(), "test.db"))
	cm.SetConfig("wallet_encryption_secret", testSecret)
	cm.SetConfig("stacks_network", "testnet")

	logger := utils.NewLogsManager(cm)
	t.Cleanup(func() { logger.Close() })

	db, err := database.NewSQLiteManager(cm, logger)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	wm, err := NewWalletManager(cm, logger, db, ledger)
	if err != nil {
		t.Fatalf("Failed to create wallet manager: %v", err)
	}
	return wm
}

func TestWalletManagerRejectsShortSecret(t *testing.T) {
	cm := utils.NewConfigManager("")
	cm.SetConfig("database_file", filepath.Join(t.TempDir(), "test.db"))
	cm.SetConfig("wallet_encryption_secret", "too-short")

	logger := utils.NewLogsManager(cm)
	defer logger.Close()

	db, err := database.NewSQLiteManager(cm, logger)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := NewWalletManager(cm, logger, db, newFakeLedger()); err == nil {
		t.Fatal("Expected error for short encryption secret")
	}
}

func TestGetOrCreateWalletIdempotent(t *testing.T) {
	wm := newTestWalletManager(t, newFakeLedger())

	first, err := wm.GetOrCreateWallet("agent-1")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	if !ValidAddress(first.Address, "testnet") {
		t.Fatalf("Created wallet has invalid address: %s", first.Address)
	}

	second, err := wm.GetOrCreateWallet("agent-1")
	if err != nil {
		t.Fatalf("Failed to get wallet again: %v", err)
	}
	if second.Address != first.Address {
		t.Fatalf("Second call returned a different wallet: %s vs %s", second.Address, first.Address)
	}
}

func TestGetOrCreateWalletConcurrent(t *testing.T) {
	wm := newTestWalletManager(t, newFakeLedger())

	const workers = 6
	var wg sync.WaitGroup
	addresses := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wallet, err := wm.GetOrCreateWallet("agent-race")
			if err != nil {
				t.Errorf("Concurrent create failed: %v", err)
				return
			}
			addresses <- wallet.Address
		}()
	}
	wg.Wait()
	close(addresses)

	seen := make(map[string]bool)
	for addr := range addresses {
		seen[addr] = true
	}
	if len(seen) != 1 {
		t.Fatalf("Concurrent creates produced %d distinct wallets", len(seen))
	}
}

func TestWalletKeyEncryptedAtRest(t *testing.T) {
	wm := newTestWalletManager(t, newFakeLedger())

	wallet, err := wm.GetOrCreateWallet("agent-1")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	// A raw secp256k1 key is 32 bytes; the stored blob must be sealed,
	// so it carries version, nonce and tag overhead on top
	if len(wallet.EncryptedKey) <= 32 {
		t.Fatalf("Stored key looks unencrypted: %d bytes", len(wallet.EncryptedKey))
	}

	key, err := wm.openKey(wallet)
	if err != nil {
		t.Fatalf("Failed to reopen stored key: %v", err)
	}
	address, err := AddressFromKey(key, "testnet")
	if err != nil {
		t.Fatalf("Failed to derive address: %v", err)
	}
	if address != wallet.Address {
		t.Fatalf("Decrypted key derives %s, wallet says %s", address, wallet.Address)
	}
}

func TestImportWallet(t *testing.T) {
	wm := newTestWalletManager(t, newFakeLedger())

	key, _ := GenerateSigningKey()
	material := fmt.Sprintf("%x", KeyToBytes(key))

	wallet, err := wm.ImportWallet("agent-import", material)
	if err != nil {
		t.Fatalf("Failed to import wallet: %v", err)
	}

	want, _ := AddressFromKey(key, "testnet")
	if wallet.Address != want {
		t.Fatalf("Imported wallet address %s, expected %s", wallet.Address, want)
	}
}

func TestGetBalanceUnknownIsNotZero(t *testing.T) {
	ledger := newFakeLedger()
	wm := newTestWalletManager(t, ledger)

	if _, err := wm.GetOrCreateWallet("agent-1"); err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	ledger.balanceErr = ErrLedgerUnavailable

	_, err := wm.GetBalance(context.Background(), "agent-1")
	if !errors.Is(err, ErrBalanceUnknown) {
		t.Fatalf("Expected ErrBalanceUnknown, got %v", err)
	}
}

func TestGetBalanceUnknownWallet(t *testing.T) {
	wm := newTestWalletManager(t, newFakeLedger())

	if _, err := wm.GetBalance(context.Background(), "nobody"); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("Expected ErrWalletNotFound, got %v", err)
	}
}

func TestSendPayment(t *testing.T) {
	ledger := newFakeLedger()
	wm := newTestWalletManager(t, ledger)

	wallet, err := wm.GetOrCreateWallet("agent-1")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	ledger.fund(wallet.Address, 1_000_000)

	recipientKey, _ := GenerateSigningKey()
	recipient, _ := AddressFromKey(recipientKey, "testnet")

	txID, err := wm.SendPayment(context.Background(), "agent-1", recipient, big.NewInt(150_000), "research")
	if err != nil {
		t.Fatalf("Failed to send payment: %v", err)
	}
	if txID == "" {
		t.Fatal("Empty transaction ID")
	}

	remaining, err := wm.GetBalance(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}
	if remaining.Cmp(big.NewInt(850_000)) != 0 {
		t.Fatalf("Expected balance 850000 after spend, got %s", remaining.String())
	}

	payments, err := wm.ListPayments("agent-1", 10, 0)
	if err != nil {
		t.Fatalf("Failed to list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("Expected 1 payment log entry, got %d", len(payments))
	}
	entry := payments[0]
	if entry.TxID != txID || entry.MicroSTX != "150000" || entry.Service != "research" {
		t.Fatalf("Bad payment log entry: %+v", entry)
	}
}

func TestSendPaymentInsufficientFunds(t *testing.T) {
	ledger := newFakeLedger()
	wm := newTestWalletManager(t, ledger)

	wallet, err := wm.GetOrCreateWallet("agent-1")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	ledger.fund(wallet.Address, 100)

	recipientKey, _ := GenerateSigningKey()
	recipient, _ := AddressFromKey(recipientKey, "testnet")

	_, err = wm.SendPayment(context.Background(), "agent-1", recipient, big.NewInt(150_000), "")

	var insufficientErr *InsufficientFundsError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("Expected InsufficientFundsError, got %v", err)
	}
	if insufficientErr.Address != wallet.Address {
		t.Fatalf("Error names wrong address: %s", insufficientErr.Address)
	}
	if insufficientErr.Balance.Cmp(big.NewInt(100)) != 0 || insufficientErr.Required.Cmp(big.NewInt(150_000)) != 0 {
		t.Fatalf("Error carries wrong amounts: %+v", insufficientErr)
	}
	// Testnet errors carry a funding hint
	if !strings.Contains(insufficientErr.Error(), TestnetFaucetURL) {
		t.Fatalf("Error missing faucet hint: %s", insufficientErr.Error())
	}

	// Nothing reached the ledger or the log
	if len(ledger.submitted) != 0 {
		t.Fatal("Transfer submitted despite insufficient funds")
	}
	payments, _ := wm.ListPayments("agent-1", 10, 0)
	if len(payments) != 0 {
		t.Fatal("Payment log written despite insufficient funds")
	}
}

func TestSendPaymentUnknownBalanceRefusesToSpend(t *testing.T) {
	ledger := newFakeLedger()
	wm := newTestWalletManager(t, ledger)

	if _, err := wm.GetOrCreateWallet("agent-1"); err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	ledger.balanceErr = ErrLedgerTimeout

	recipientKey, _ := GenerateSigningKey()
	recipient, _ := AddressFromKey(recipientKey, "testnet")

	_, err := wm.SendPayment(context.Background(), "agent-1", recipient, big.NewInt(10), "")
	if !errors.Is(err, ErrBalanceUnknown) {
		t.Fatalf("Expected ErrBalanceUnknown, got %v", err)
	}
	if len(ledger.submitted) != 0 {
		t.Fatal("Transfer submitted while balance unknown")
	}
}

func TestSendPaymentRejectsBadRecipient(t *testing.T) {
	wm := newTestWalletManager(t, newFakeLedger())

	if _, err := wm.GetOrCreateWallet("agent-1"); err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	if _, err := wm.SendPayment(context.Background(), "agent-1", "not-an-address", big.NewInt(10), ""); err == nil {
		t.Fatal("Expected error for invalid recipient")
	}
	if _, err := wm.SendPayment(context.Background(), "agent-1", "", big.NewInt(10), ""); err == nil {
		t.Fatal("Expected error for empty recipient")
	}
}

func TestSendPaymentSerializedPerUser(t *testing.T) {
	ledger := newFakeLedger()
	wm := newTestWalletManager(t, ledger)

	wallet, err := wm.GetOrCreateWallet("agent-1")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	// Funds cover exactly one of the two concurrent payments
	ledger.fund(wallet.Address, 150_000)

	recipientKey, _ := GenerateSigningKey()
	recipient, _ := AddressFromKey(recipientKey, "testnet")

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := wm.SendPayment(context.Background(), "agent-1", recipient, big.NewInt(150_000), "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficientErr *InsufficientFundsError
		if !errors.As(err, &insufficientErr) {
			t.Fatalf("Unexpected error from concurrent spend: %v", err)
		}
		failed++
	}

	if succeeded != 1 || failed != 1 {
		t.Fatalf("Expected exactly one spend to win, got %d wins and %d losses", succeeded, failed)
	}
	if len(ledger.submitted) != 1 {
		t.Fatalf("Expected 1 submitted transfer, got %d", len(ledger.submitted))
	}
}
