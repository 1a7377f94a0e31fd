package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmbeddedDefaultsLoaded(t *testing.T) {
	cm := NewConfigManager("")

	if got := cm.GetConfigWithDefault("x402_payment_header", ""); got != "payment-signature" {
		t.Fatalf("Expected default payment header, got %q", got)
	}
	if got := cm.GetConfigInt("x402_max_retries", 0, 0, 10); got != 3 {
		t.Fatalf("Expected 3 max retries, got %d", got)
	}
	if got := cm.GetConfigDuration("x402_settlement_wait", 0); got != 2*time.Second {
		t.Fatalf("Expected 2s settlement wait, got %v", got)
	}
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs")
	content := "stacks_network=mainnet\nx402_max_retries=5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cm := NewConfigManager(path)

	if got := cm.GetConfigWithDefault("stacks_network", ""); got != "mainnet" {
		t.Fatalf("Expected mainnet, got %q", got)
	}
	if got := cm.GetConfigInt("x402_max_retries", 0, 0, 10); got != 5 {
		t.Fatalf("Expected 5 retries, got %d", got)
	}
	// Keys absent from the file fall back to the caller's default
	if got := cm.GetConfigWithDefault("x402_payment_header", "payment-signature"); got != "payment-signature" {
		t.Fatalf("Expected fallback payment header, got %q", got)
	}
}

func TestGetConfigWithDefaultTreatsEmptyAsUnset(t *testing.T) {
	cm := NewConfigManager("")

	// wallet_encryption_secret ships empty on purpose
	if got := cm.GetConfigWithDefault("wallet_encryption_secret", "fallback"); got != "fallback" {
		t.Fatalf("Empty config value should yield the default, got %q", got)
	}
}

func TestSetConfigRuntimeOverride(t *testing.T) {
	cm := NewConfigManager("")

	cm.SetConfig("stacks_network", "mainnet")
	if got := cm.GetConfigWithDefault("stacks_network", ""); got != "mainnet" {
		t.Fatalf("SetConfig not visible, got %q", got)
	}

	cm.SetConfig("ledger_timeout", "3s")
	if got := cm.GetConfigDuration("ledger_timeout", time.Second); got != 3*time.Second {
		t.Fatalf("Expected 3s, got %v", got)
	}
}

func TestGetConfigIntClamping(t *testing.T) {
	cm := NewConfigManager("")

	cm.SetConfig("x402_max_retries", "100")
	if got := cm.GetConfigInt("x402_max_retries", 3, 1, 10); got != 3 {
		t.Fatalf("Out-of-range value should fall back to default, got %d", got)
	}

	cm.SetConfig("x402_max_retries", "not-a-number")
	if got := cm.GetConfigInt("x402_max_retries", 3, 1, 10); got != 3 {
		t.Fatalf("Unparseable value should fall back to default, got %d", got)
	}
}
