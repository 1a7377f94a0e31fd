package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("Failed to generate salt: %v", err)
	}

	key, err := DeriveKey("correct horse battery staple extended secret", salt)
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}

	plaintext := []byte("0123456789abcdef0123456789abcdef")

	blob, err := Seal(plaintext, key)
	if err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}

	if blob[0] != vaultVersion {
		t.Fatalf("Expected version byte %d, got %d", vaultVersion, blob[0])
	}

	recovered, err := Open(blob, key)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}

	if !bytes.Equal(recovered, plaintext) {
		t.Fatal("Recovered plaintext does not match original")
	}
}

func TestSealProducesUniqueBlobs(t *testing.T) {
	salt, _ := GenerateSalt()
	key, err := DeriveKey("correct horse battery staple extended secret", salt)
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}

	plaintext := []byte("same plaintext")

	blob1, err := Seal(plaintext, key)
	if err != nil {
		t.Fatalf("Failed to seal first blob: %v", err)
	}
	blob2, err := Seal(plaintext, key)
	if err != nil {
		t.Fatalf("Failed to seal second blob: %v", err)
	}

	if bytes.Equal(blob1, blob2) {
		t.Fatal("Two seals of the same plaintext produced identical blobs (nonce reuse)")
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	salt, _ := GenerateSalt()
	key, err := DeriveKey("correct horse battery staple extended secret", salt)
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}

	blob, err := Seal([]byte("sensitive key material"), key)
	if err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}

	wrongKey, err := DeriveKey("a completely different secret of sufficient length", salt)
	if err != nil {
		t.Fatalf("Failed to derive wrong key: %v", err)
	}

	if _, err := Open(blob, wrongKey); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Expected ErrIntegrity with wrong key, got %v", err)
	}
}

func TestOpenTamperedBlob(t *testing.T) {
	salt, _ := GenerateSalt()
	key, err := DeriveKey("correct horse battery staple extended secret", salt)
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}

	blob, err := Seal([]byte("sensitive key material"), key)
	if err != nil {
		t.Fatalf("Failed to seal: %v", err)
	}

	// Flip one ciphertext bit
	tampered := make([]byte, len(blob))
	copy(tampered, blob)
	tampered[len(tampered)-1] ^= 0x01

	if _, err := Open(tampered, key); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Expected ErrIntegrity for tampered blob, got %v", err)
	}
}

func TestOpenTruncatedBlob(t *testing.T) {
	salt, _ := GenerateSalt()
	key, err := DeriveKey("correct horse battery staple extended secret", salt)
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}

	for _, n := range []int{0, 1, nonceSize, minBlobSize - 1} {
		if _, err := Open(make([]byte, n), key); !errors.Is(err, ErrIntegrity) {
			t.Fatalf("Expected ErrIntegrity for %d-byte blob, got %v", n, err)
		}
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, _ := GenerateSalt()

	key1, err := DeriveKey("correct horse battery staple extended secret", salt)
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}
	key2, err := DeriveKey("correct horse battery staple extended secret", salt)
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}

	if !bytes.Equal(key1, key2) {
		t.Fatal("Same secret and salt derived different keys")
	}

	otherSalt, _ := GenerateSalt()
	key3, err := DeriveKey("correct horse battery staple extended secret", otherSalt)
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}
	if bytes.Equal(key1, key3) {
		t.Fatal("Different salts derived the same key")
	}
}

func TestDeriveKeyRejectsBadInput(t *testing.T) {
	salt, _ := GenerateSalt()

	if _, err := DeriveKey("", salt); err == nil {
		t.Fatal("Expected error for empty secret")
	}
	if _, err := DeriveKey("secret", []byte{1, 2, 3}); err == nil {
		t.Fatal("Expected error for short salt")
	}
}

func TestZeroBytes(t *testing.T) {
	key := []byte{0xde, 0xad, 0xbe, 0xef}
	ZeroBytes(key)
	for i, b := range key {
		if b != 0 {
			t.Fatalf("Byte %d not zeroed: %x", i, b)
		}
	}
}
