package utils

import (
	"strings"
	"testing"
)

func TestResolveWalletSecretFromConfig(t *testing.T) {
	cm := NewConfigManager("")
	cm.SetConfig("wallet_encryption_secret", strings.Repeat("s", 40))

	secret, err := ResolveWalletSecret(cm)
	if err != nil {
		t.Fatalf("Failed to resolve secret: %v", err)
	}
	if len(secret) != 40 {
		t.Fatalf("Wrong secret length: %d", len(secret))
	}
}

func TestResolveWalletSecretFromEnv(t *testing.T) {
	cm := NewConfigManager("")
	cm.SetConfig("wallet_encryption_secret", "")
	t.Setenv("WALLET_ENCRYPTION_SECRET", strings.Repeat("e", 32))

	secret, err := ResolveWalletSecret(cm)
	if err != nil {
		t.Fatalf("Failed to resolve secret from env: %v", err)
	}
	if secret != strings.Repeat("e", 32) {
		t.Fatal("Env secret not used")
	}
}

func TestResolveWalletSecretTooShort(t *testing.T) {
	cm := NewConfigManager("")
	cm.SetConfig("wallet_encryption_secret", "short")

	if _, err := ResolveWalletSecret(cm); err == nil {
		t.Fatal("Expected error for short secret")
	}
}

func TestResolveWalletSecretConfigWinsOverEnv(t *testing.T) {
	cm := NewConfigManager("")
	cm.SetConfig("wallet_encryption_secret", strings.Repeat("c", 32))
	t.Setenv("WALLET_ENCRYPTION_SECRET", strings.Repeat("e", 32))

	secret, err := ResolveWalletSecret(cm)
	if err != nil {
		t.Fatalf("Failed to resolve secret: %v", err)
	}
	if secret != strings.Repeat("c", 32) {
		t.Fatal("Config secret should win over env")
	}
}

func TestStoreWalletSecretRejectsShort(t *testing.T) {
	if err := StoreWalletSecret("short"); err == nil {
		t.Fatal("Expected error storing short secret")
	}
}
