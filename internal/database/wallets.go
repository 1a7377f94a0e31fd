package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// WalletRecord represents a custodial wallet row.
// EncryptedKey is the vault-sealed signing key; the plaintext key never
// touches the database.
type WalletRecord struct {
	UserID       string    `json:"user_id"`
	Address      string    `json:"address"`
	EncryptedKey []byte    `json:"-"`
	KDFSalt      []byte    `json:"-"`
	Network      string    `json:"network"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// InitWalletsTable creates the wallets table
func (sqlm *SQLiteManager) InitWalletsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		encrypted_key BLOB NOT NULL,
		kdf_salt BLOB NOT NULL,
		network TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		last_used_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_wallets_address ON wallets(address);
	`

	_, err := sqlm.db.Exec(query)
	return err
}

// CreateWallet inserts a new wallet row. The insert is atomic: a concurrent
// insert for the same user surfaces as ErrDuplicateUser and the caller
// re-reads the winning row.
func (sqlm *SQLiteManager) CreateWallet(wallet *WalletRecord) error {
	query := `
	INSERT INTO wallets (user_id, address, encrypted_key, kdf_salt, network, created_at, last_used_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().Unix()
	if !wallet.CreatedAt.IsZero() {
		now = wallet.CreatedAt.Unix()
	}

	_, err := sqlm.db.Exec(query,
		wallet.UserID,
		wallet.Address,
		wallet.EncryptedKey,
		wallet.KDFSalt,
		wallet.Network,
		now,
		now,
	)

	if isUniqueConstraintErr(err) {
		return ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	wallet.CreatedAt = time.Unix(now, 0)
	wallet.LastUsedAt = time.Unix(now, 0)
	return nil
}

// GetWalletByUser retrieves a wallet by user ID
func (sqlm *SQLiteManager) GetWalletByUser(userID string) (*WalletRecord, error) {
	query := `
	SELECT user_id, address, encrypted_key, kdf_salt, network, created_at, last_used_at
	FROM wallets
	WHERE user_id = ?
	`

	wallet := &WalletRecord{}
	var createdAt, lastUsedAt int64

	err := sqlm.db.QueryRow(query, userID).Scan(
		&wallet.UserID,
		&wallet.Address,
		&wallet.EncryptedKey,
		&wallet.KDFSalt,
		&wallet.Network,
		&createdAt,
		&lastUsedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet: %w", err)
	}

	wallet.CreatedAt = time.Unix(createdAt, 0)
	wallet.LastUsedAt = time.Unix(lastUsedAt, 0)

	// Every read counts as use
	now := time.Now()
	if _, err := sqlm.db.Exec(`UPDATE wallets SET last_used_at = ? WHERE user_id = ?`, now.Unix(), userID); err != nil {
		sqlm.logger.Log("warning", fmt.Sprintf("Failed to update wallet last_used_at for %s: %v", userID, err), "database")
	} else {
		wallet.LastUsedAt = time.Unix(now.Unix(), 0)
	}

	return wallet, nil
}

// ListWallets retrieves all wallet rows without key material
func (sqlm *SQLiteManager) ListWallets() ([]*WalletRecord, error) {
	query := `
	SELECT user_id, address, network, created_at, last_used_at
	FROM wallets
	ORDER BY created_at ASC
	`

	rows, err := sqlm.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	wallets := make([]*WalletRecord, 0)
	for rows.Next() {
		wallet := &WalletRecord{}
		var createdAt, lastUsedAt int64

		if err := rows.Scan(&wallet.UserID, &wallet.Address, &wallet.Network, &createdAt, &lastUsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %w", err)
		}

		wallet.CreatedAt = time.Unix(createdAt, 0)
		wallet.LastUsedAt = time.Unix(lastUsedAt, 0)
		wallets = append(wallets, wallet)
	}

	return wallets, rows.Err()
}

// TouchWalletLastUsed updates the wallet's last_used_at timestamp
func (sqlm *SQLiteManager) TouchWalletLastUsed(userID string) error {
	query := `UPDATE wallets SET last_used_at = strftime('%s', 'now') WHERE user_id = ?`

	result, err := sqlm.db.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("failed to touch wallet: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrWalletNotFound
	}
	return nil
}
