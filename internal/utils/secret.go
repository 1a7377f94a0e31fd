package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "stacks-agent"
	keyringUser    = "wallet-encryption-secret"

	// MinSecretLength is the minimum length of the wallet encryption secret.
	// Shorter secrets are rejected outright.
	MinSecretLength = 32
)

// ResolveWalletSecret returns the wallet encryption secret, checking sources in
// order: config file, WALLET_ENCRYPTION_SECRET environment variable (the .env
// overlay is loaded by the ConfigManager), then the OS keyring.
func ResolveWalletSecret(cm *ConfigManager) (string, error) {
	secret, _ := cm.GetConfig("wallet_encryption_secret")
	secret = strings.TrimSpace(secret)

	if secret == "" {
		secret = strings.TrimSpace(os.Getenv("WALLET_ENCRYPTION_SECRET"))
	}

	if secret == "" {
		stored, err := keyring.Get(keyringService, keyringUser)
		if err == nil {
			secret = strings.TrimSpace(stored)
		}
	}

	if secret == "" {
		return "", fmt.Errorf("wallet encryption secret not set: provide wallet_encryption_secret in the config, the WALLET_ENCRYPTION_SECRET environment variable, or the OS keyring")
	}

	if len(secret) < MinSecretLength {
		return "", fmt.Errorf("wallet encryption secret too short: got %d characters, need at least %d", len(secret), MinSecretLength)
	}

	return secret, nil
}

// StoreWalletSecret saves the wallet encryption secret in the OS keyring
func StoreWalletSecret(secret string) error {
	secret = strings.TrimSpace(secret)
	if len(secret) < MinSecretLength {
		return fmt.Errorf("wallet encryption secret too short: got %d characters, need at least %d", len(secret), MinSecretLength)
	}
	if err := keyring.Set(keyringService, keyringUser, secret); err != nil {
		return fmt.Errorf("failed to store secret in keyring: %w", err)
	}
	return nil
}

// DeleteWalletSecret removes the wallet encryption secret from the OS keyring
func DeleteWalletSecret() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil {
		return fmt.Errorf("failed to delete secret from keyring: %w", err)
	}
	return nil
}
