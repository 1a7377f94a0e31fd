package database

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicateUser is returned when a wallet already exists for the user
	ErrDuplicateUser = errors.New("wallet already exists for user")

	// ErrDuplicateTx is returned when a payment-log entry with the same
	// transaction ID was already recorded
	ErrDuplicateTx = errors.New("payment already recorded for transaction")

	// ErrWalletNotFound is returned when no wallet exists for the user
	ErrWalletNotFound = errors.New("wallet not found")
)

// isUniqueConstraintErr reports whether err is a SQLite UNIQUE violation
func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
