package payment

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

// Crockford base32 alphabet used by Stacks c32check addresses
const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Address version bytes. Mainnet addresses render as SP..., testnet as ST...
const (
	c32VersionMainnet = 22
	c32VersionTestnet = 26
)

var c32Lookup = func() [128]int8 {
	var table [128]int8
	for i := range table {
		table[i] = -1
	}
	for i, ch := range c32Alphabet {
		table[ch] = int8(i)
	}
	// Crockford aliases
	table['O'] = 0
	table['L'] = 1
	table['I'] = 1
	return table
}()

// c32Encode encodes bytes as Crockford base32. Leading zero bytes are
// preserved as leading '0' characters.
func c32Encode(data []byte) string {
	leadingZeros := 0
	for _, b := range data {
		if b != 0 {
			break
		}
		leadingZeros++
	}

	value := new(big.Int).SetBytes(data)
	base := big.NewInt(32)
	mod := new(big.Int)

	var sb strings.Builder
	for value.Sign() > 0 {
		value.DivMod(value, base, mod)
		sb.WriteByte(c32Alphabet[mod.Int64()])
	}

	encoded := sb.String()
	// Reverse
	runes := []byte(encoded)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}

	return strings.Repeat("0", leadingZeros) + string(runes)
}

// c32Decode decodes a Crockford base32 string into bytes of the given length
func c32Decode(encoded string, outLen int) ([]byte, error) {
	encoded = strings.ToUpper(encoded)

	leadingZeros := 0
	for _, ch := range encoded {
		if ch != '0' {
			break
		}
		leadingZeros++
	}

	value := big.NewInt(0)
	base := big.NewInt(32)
	for _, ch := range encoded {
		if ch >= 128 || c32Lookup[ch] < 0 {
			return nil, fmt.Errorf("invalid c32 character %q", ch)
		}
		value.Mul(value, base)
		value.Add(value, big.NewInt(int64(c32Lookup[ch])))
	}

	raw := value.Bytes()
	if leadingZeros+len(raw) > outLen {
		return nil, fmt.Errorf("c32 payload too long: %d bytes", leadingZeros+len(raw))
	}

	out := make([]byte, outLen)
	copy(out[outLen-len(raw):], raw)
	return out, nil
}

// c32Checksum is the first 4 bytes of a double SHA-256 over version || payload
func c32Checksum(version byte, payload []byte) []byte {
	buf := make([]byte, 0, 1+len(payload))
	buf = append(buf, version)
	buf = append(buf, payload...)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// c32CheckEncode renders a 20-byte hash160 as a Stacks address for the
// version byte: 'S' + version character + c32(hash160 || checksum).
func c32CheckEncode(version byte, hash160 []byte) (string, error) {
	if len(hash160) != 20 {
		return "", fmt.Errorf("hash160 must be 20 bytes, got %d", len(hash160))
	}
	if int(version) >= len(c32Alphabet) {
		return "", fmt.Errorf("invalid address version %d", version)
	}

	checksum := c32Checksum(version, hash160)
	payload := make([]byte, 0, 24)
	payload = append(payload, hash160...)
	payload = append(payload, checksum...)

	return "S" + string(c32Alphabet[version]) + c32Encode(payload), nil
}

// c32CheckDecode parses a Stacks address back into version and hash160,
// verifying the checksum
func c32CheckDecode(address string) (byte, []byte, error) {
	if len(address) < 6 || address[0] != 'S' {
		return 0, nil, fmt.Errorf("invalid address %q", address)
	}

	versionChar := address[1]
	if versionChar >= 128 || c32Lookup[versionChar] < 0 {
		return 0, nil, fmt.Errorf("invalid address version character %q", versionChar)
	}
	version := byte(c32Lookup[versionChar])

	payload, err := c32Decode(address[2:], 24)
	if err != nil {
		return 0, nil, err
	}

	hash160 := payload[:20]
	checksum := payload[20:]
	expected := c32Checksum(version, hash160)
	for i := range checksum {
		if checksum[i] != expected[i] {
			return 0, nil, fmt.Errorf("address checksum mismatch for %q", address)
		}
	}

	return version, hash160, nil
}

// ValidAddress reports whether the string is a well-formed Stacks address
// on the given network
func ValidAddress(address, network string) bool {
	version, _, err := c32CheckDecode(address)
	if err != nil {
		return false
	}
	switch network {
	case "mainnet":
		return version == c32VersionMainnet
	case "testnet":
		return version == c32VersionTestnet
	default:
		return version == c32VersionMainnet || version == c32VersionTestnet
	}
}
