package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

// GenerateSigningKey creates a new random secp256k1 signing key
func GenerateSigningKey() (*btcec.PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %v", err)
	}
	return key, nil
}

// ImportSigningKey parses externally generated key material. Accepted
// formats: 64 hex characters, 66 hex characters with a trailing 01
// compression flag, or base58. The raw scalar must be a valid secp256k1 key.
func ImportSigningKey(material string) (*btcec.PrivateKey, error) {
	material = strings.TrimSpace(material)
	material = strings.TrimPrefix(material, "0x")

	var raw []byte
	if decoded, err := hex.DecodeString(material); err == nil {
		raw = decoded
	} else if decoded, err := base58.Decode(material); err == nil {
		raw = decoded
	} else {
		return nil, fmt.Errorf("%w: not hex or base58", ErrInvalidKey)
	}

	if len(raw) == 33 && raw[32] == 0x01 {
		raw = raw[:32]
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidKey, len(raw))
	}

	key, _ := btcec.PrivKeyFromBytes(raw)
	if key.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	return key, nil
}

// hash160 is ripemd160(sha256(data)), the standard address digest
func hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	return ripe.Sum(nil)
}

// AddressFromKey derives the Stacks address of a signing key on a network.
// The address commits to the compressed public key.
func AddressFromKey(key *btcec.PrivateKey, network string) (string, error) {
	var version byte
	switch network {
	case "mainnet":
		version = c32VersionMainnet
	case "testnet":
		version = c32VersionTestnet
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidNetwork, network)
	}

	pubKey := key.PubKey().SerializeCompressed()
	return c32CheckEncode(version, hash160(pubKey))
}

// KeyToBytes returns the raw 32-byte scalar; callers must scrub it
func KeyToBytes(key *btcec.PrivateKey) []byte {
	return key.Serialize()
}

// KeyFromBytes rebuilds a signing key from a raw 32-byte scalar
func KeyFromBytes(raw []byte) (*btcec.PrivateKey, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidKey, len(raw))
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	if key.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	return key, nil
}
