package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/stacksx402/stacks-agent/internal/crypto"
	"github.com/stacksx402/stacks-agent/internal/database"
	"github.com/stacksx402/stacks-agent/internal/utils"
)

// WalletManager provisions and operates custodial per-user wallets.
// Signing keys live vault-sealed in the store; they are decrypted just in
// time for a signature and scrubbed immediately after.
type WalletManager struct {
	db      *database.SQLiteManager
	ledger  LedgerClient
	secret  string
	network string
	config  *utils.ConfigManager
	logger  *utils.LogsManager

	// Per-user locks serialize spends so concurrent payments for the same
	// user cannot both pass the balance check
	userLocks map[string]*sync.Mutex
	lockMu    sync.Mutex
}

// NewWalletManager creates a wallet manager. Fails when the wallet
// encryption secret is missing or too short.
func NewWalletManager(config *utils.ConfigManager, logger *utils.LogsManager, db *database.SQLiteManager, ledger LedgerClient) (*WalletManager, error) {
	secret, err := utils.ResolveWalletSecret(config)
	if err != nil {
		return nil, err
	}

	return &WalletManager{
		db:        db,
		ledger:    ledger,
		secret:    secret,
		network:   config.GetConfigWithDefault("stacks_network", "testnet"),
		config:    config,
		logger:    logger,
		userLocks: make(map[string]*sync.Mutex),
	}, nil
}

// userLock returns the spend lock for a user, creating it on first use
func (wm *WalletManager) userLock(userID string) *sync.Mutex {
	wm.lockMu.Lock()
	defer wm.lockMu.Unlock()

	lock, exists := wm.userLocks[userID]
	if !exists {
		lock = &sync.Mutex{}
		wm.userLocks[userID] = lock
	}
	return lock
}

// sealKey vault-seals a signing key under a fresh per-wallet salt
func (wm *WalletManager) sealKey(key *btcec.PrivateKey) (blob, salt []byte, err error) {
	salt, err = crypto.GenerateSalt()
	if err != nil {
		return nil, nil, err
	}

	encKey, err := crypto.DeriveKey(wm.secret, salt)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.ZeroBytes(encKey)

	raw := KeyToBytes(key)
	defer crypto.ZeroBytes(raw)

	blob, err = crypto.Seal(raw, encKey)
	if err != nil {
		return nil, nil, err
	}
	return blob, salt, nil
}

// openKey decrypts a wallet's signing key. The caller owns the returned key
// bytes inside the btcec key and must not retain them beyond the operation.
func (wm *WalletManager) openKey(wallet *database.WalletRecord) (*btcec.PrivateKey, error) {
	encKey, err := crypto.DeriveKey(wm.secret, wallet.KDFSalt)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(encKey)

	raw, err := crypto.Open(wallet.EncryptedKey, encKey)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(raw)

	return KeyFromBytes(raw)
}

// GetOrCreateWallet returns the user's wallet, provisioning one on first
// use. Creation is idempotent: losing the insert race returns the winning
// row, never a second wallet.
func (wm *WalletManager) GetOrCreateWallet(userID string) (*database.WalletRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	wallet, err := wm.db.GetWalletByUser(userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, database.ErrWalletNotFound) {
		return nil, err
	}

	key, err := GenerateSigningKey()
	if err != nil {
		return nil, err
	}

	return wm.storeKey(userID, key)
}

// ImportWallet provisions a wallet for a user from externally generated key
// material (hex or base58). Fails if the user already has a wallet.
func (wm *WalletManager) ImportWallet(userID string, material string) (*database.WalletRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	key, err := ImportSigningKey(material)
	if err != nil {
		return nil, err
	}

	wallet, err := wm.storeKey(userID, key)
	if err != nil {
		return nil, err
	}

	wm.logger.Info(fmt.Sprintf("Imported wallet for user %s: %s", userID, wallet.Address), "wallet")
	return wallet, nil
}

// storeKey seals and persists a signing key, resolving create races by
// re-reading the winning row
func (wm *WalletManager) storeKey(userID string, key *btcec.PrivateKey) (*database.WalletRecord, error) {
	address, err := AddressFromKey(key, wm.network)
	if err != nil {
		return nil, err
	}

	blob, salt, err := wm.sealKey(key)
	if err != nil {
		return nil, err
	}

	wallet := &database.WalletRecord{
		UserID:       userID,
		Address:      address,
		EncryptedKey: blob,
		KDFSalt:      salt,
		Network:      wm.network,
	}

	err = wm.db.CreateWallet(wallet)
	if errors.Is(err, database.ErrDuplicateUser) {
		// Lost the race; the winner's wallet is the wallet
		return wm.db.GetWalletByUser(userID)
	}
	if err != nil {
		return nil, err
	}

	wm.logger.Info(fmt.Sprintf("Created wallet for user %s: %s", userID, address), "wallet")
	return wallet, nil
}

// GetBalance returns the user's on-chain balance in micro-STX. A failed
// query is ErrBalanceUnknown, never zero: an unreachable ledger must not
// read as an empty wallet.
func (wm *WalletManager) GetBalance(ctx context.Context, userID string) (*big.Int, error) {
	wallet, err := wm.db.GetWalletByUser(userID)
	if errors.Is(err, database.ErrWalletNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}

	balance, err := wm.ledger.GetBalance(ctx, wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalanceUnknown, err)
	}
	return balance, nil
}

// SendPayment moves micro-STX from the user's wallet to a recipient and
// records the transfer in the payment log. Spends for the same user are
// serialized; the balance is re-checked under the lock.
func (wm *WalletManager) SendPayment(ctx context.Context, userID string, recipient string, amount *big.Int, service string) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("payment amount must be positive")
	}
	if !ValidAddress(recipient, wm.network) {
		return "", fmt.Errorf("invalid recipient address %q for network %s", recipient, wm.network)
	}

	lock := wm.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	wallet, err := wm.db.GetWalletByUser(userID)
	if errors.Is(err, database.ErrWalletNotFound) {
		return "", ErrWalletNotFound
	}
	if err != nil {
		return "", err
	}

	balance, err := wm.ledger.GetBalance(ctx, wallet.Address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBalanceUnknown, err)
	}

	if balance.Cmp(amount) < 0 {
		return "", &InsufficientFundsError{
			Address:  wallet.Address,
			Balance:  balance,
			Required: amount,
			Network:  wallet.Network,
		}
	}

	key, err := wm.openKey(wallet)
	if err != nil {
		return "", err
	}
	defer key.Zero()

	transfer := &Transfer{
		Recipient: recipient,
		MicroSTX:  amount,
		Network:   wallet.Network,
	}

	txID, err := wm.ledger.SubmitTransfer(ctx, key, transfer)
	if err != nil {
		return "", err
	}

	entry := &database.PaymentLogEntry{
		UserID:    userID,
		TxID:      txID,
		Recipient: recipient,
		MicroSTX:  amount.String(),
		Service:   service,
	}
	if err := wm.db.AppendPaymentLog(entry); err != nil {
		if errors.Is(err, database.ErrDuplicateTx) {
			// Transfer already recorded; the spend itself succeeded
			wm.logger.Warn(fmt.Sprintf("Payment log already has tx %s", txID), "wallet")
		} else {
			wm.logger.Error(fmt.Sprintf("Failed to record payment %s: %v", txID, err), "wallet")
		}
	}

	if err := wm.db.TouchWalletLastUsed(userID); err != nil {
		wm.logger.Warn(fmt.Sprintf("Failed to touch wallet for user %s: %v", userID, err), "wallet")
	}

	wm.logger.Info(fmt.Sprintf("Payment sent: user=%s, tx=%s, amount=%s micro-STX", userID, txID, amount.String()), "wallet")
	return txID, nil
}

// GetTransactionStatus looks up a previously submitted transaction
func (wm *WalletManager) GetTransactionStatus(ctx context.Context, txID string) (*TxStatus, error) {
	return wm.ledger.GetTransactionStatus(ctx, txID)
}

// ListWallets returns all provisioned wallets without key material
func (wm *WalletManager) ListWallets() ([]*database.WalletRecord, error) {
	return wm.db.ListWallets()
}

// ListPayments returns the user's payment audit log, newest first
func (wm *WalletManager) ListPayments(userID string, limit, offset int) ([]*database.PaymentLogEntry, error) {
	return wm.db.ListPaymentLog(userID, limit, offset)
}
