package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// ErrIntegrity is returned when a sealed blob fails authentication. The blob
// was tampered with or the encryption key is wrong; no plaintext is released.
var ErrIntegrity = errors.New("vault: integrity check failed")

const (
	// Argon2id parameters (recommended by OWASP)
	argon2Time      = 3         // Number of iterations
	argon2Memory    = 64 * 1024 // Memory in KiB (64 MB)
	argon2Threads   = 4         // Number of threads
	argon2KeyLength = 32        // Output key length (256 bits for AES-256)

	// SaltSize is the key-derivation salt length in bytes
	SaltSize = 32

	nonceSize = 12 // 96 bits (standard for AES-GCM)

	// Current sealed blob format version
	vaultVersion = 1

	// 1 version byte + nonce + GCM tag
	minBlobSize = 1 + nonceSize + 16
)

// DeriveKey derives a 256-bit encryption key from a secret using Argon2id
func DeriveKey(secret string, salt []byte) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("vault: secret cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("vault: invalid salt size: %d", len(salt))
	}
	return argon2.IDKey(
		[]byte(secret),
		salt,
		argon2Time,
		argon2Memory,
		argon2Threads,
		argon2KeyLength,
	), nil
}

// GenerateSalt generates a random key-derivation salt
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("vault: failed to generate salt: %v", err)
	}
	return salt, nil
}

// Seal encrypts plaintext with AES-256-GCM under key. The result is a single
// opaque blob: 1 version byte, 12-byte nonce, ciphertext with appended tag.
func Seal(plaintext, key []byte) ([]byte, error) {
	if len(key) != argon2KeyLength {
		return nil, fmt.Errorf("vault: invalid key size: %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create cipher: %v", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create GCM: %v", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vault: failed to generate nonce: %v", err)
	}

	blob := make([]byte, 0, 1+nonceSize+len(plaintext)+gcm.Overhead())
	blob = append(blob, vaultVersion)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, plaintext, nil)

	return blob, nil
}

// Open decrypts a blob produced by Seal. Any authentication failure, including
// a truncated or tampered blob, returns ErrIntegrity and no plaintext.
func Open(blob, key []byte) ([]byte, error) {
	if len(key) != argon2KeyLength {
		return nil, fmt.Errorf("vault: invalid key size: %d", len(key))
	}
	if len(blob) < minBlobSize {
		return nil, ErrIntegrity
	}
	if blob[0] != vaultVersion {
		return nil, fmt.Errorf("vault: unsupported blob version: %d", blob[0])
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create cipher: %v", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create GCM: %v", err)
	}

	nonce := blob[1 : 1+nonceSize]
	ciphertext := blob[1+nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}

	return plaintext, nil
}

// ZeroBytes securely zeros out sensitive material from memory.
// Call immediately after a decrypted key has been used.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
