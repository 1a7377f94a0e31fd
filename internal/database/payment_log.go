package database

import (
	"fmt"
	"time"

	"github.com/stacksx402/stacks-agent/internal/utils"
)

// PaymentLogEntry is one append-only audit row for a submitted payment.
// MicroSTX is stored as a decimal string, never as a float.
type PaymentLogEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	TxID      string    `json:"tx_id"`
	Recipient string    `json:"recipient"`
	MicroSTX  string    `json:"micro_stx"`
	Service   string    `json:"service,omitempty"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// entryChecksum covers the fields an auditor needs to be unmodified
func entryChecksum(userID, txID, recipient, microSTX, service string) string {
	return utils.HashString(userID + "|" + txID + "|" + recipient + "|" + microSTX + "|" + service)
}

// InitPaymentLogTable creates the payment_log table
func (sqlm *SQLiteManager) InitPaymentLogTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS payment_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		tx_id TEXT NOT NULL UNIQUE,
		recipient TEXT NOT NULL,
		micro_stx TEXT NOT NULL,
		service TEXT,
		checksum TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_payment_log_user ON payment_log(user_id);
	`

	_, err := sqlm.db.Exec(query)
	return err
}

// AppendPaymentLog records a submitted payment. The tx_id UNIQUE constraint
// makes the append idempotent: recording the same transaction twice surfaces
// as ErrDuplicateTx.
func (sqlm *SQLiteManager) AppendPaymentLog(entry *PaymentLogEntry) error {
	entry.Checksum = entryChecksum(entry.UserID, entry.TxID, entry.Recipient, entry.MicroSTX, entry.Service)

	query := `
	INSERT INTO payment_log (user_id, tx_id, recipient, micro_stx, service, checksum, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().Unix()

	result, err := sqlm.db.Exec(query,
		entry.UserID,
		entry.TxID,
		entry.Recipient,
		entry.MicroSTX,
		entry.Service,
		entry.Checksum,
		now,
	)

	if isUniqueConstraintErr(err) {
		return ErrDuplicateTx
	}
	if err != nil {
		return fmt.Errorf("failed to append payment log: %w", err)
	}

	entry.ID, _ = result.LastInsertId()
	entry.CreatedAt = time.Unix(now, 0)
	return nil
}

// ListPaymentLog retrieves payment-log rows for a user, newest first
func (sqlm *SQLiteManager) ListPaymentLog(userID string, limit, offset int) ([]*PaymentLogEntry, error) {
	query := `
	SELECT id, user_id, tx_id, recipient, micro_stx, COALESCE(service, ''), checksum, created_at
	FROM payment_log
	WHERE user_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ? OFFSET ?
	`

	rows, err := sqlm.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment log: %w", err)
	}
	defer rows.Close()

	entries := make([]*PaymentLogEntry, 0)
	for rows.Next() {
		entry := &PaymentLogEntry{}
		var createdAt int64

		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.TxID, &entry.Recipient,
			&entry.MicroSTX, &entry.Service, &entry.Checksum, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment log row: %w", err)
		}

		entry.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// VerifyPaymentLogEntry recomputes the checksum of a stored entry
func (sqlm *SQLiteManager) VerifyPaymentLogEntry(entry *PaymentLogEntry) bool {
	return entry.Checksum == entryChecksum(entry.UserID, entry.TxID, entry.Recipient, entry.MicroSTX, entry.Service)
}
