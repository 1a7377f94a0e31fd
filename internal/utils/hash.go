package utils

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashBytes calculates the BLAKE3 hash of a byte slice as a hex string
func HashBytes(data []byte) string {
	hasher := blake3.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hex.EncodeToString(hash)
}

// HashString calculates the BLAKE3 hash of a string
func HashString(data string) string {
	return HashBytes([]byte(data))
}
