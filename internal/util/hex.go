package util

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexToBytes converts a hex string to bytes
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// BytesToHex converts bytes to a lowercase hex string without prefix.
// Pool-side fields (blob, nonce, result) are unprefixed on the wire.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// MustHexToBytes converts hex string to bytes, panics on error
func MustHexToBytes(s string) []byte {
	b, err := HexToBytes(s)
	if err != nil {
		panic(fmt.Sprintf("invalid hex string: %s", s))
	}
	return b
}

// NonceToHex formats a 32-bit nonce as 8 zero-padded big-endian hex chars
func NonceToHex(nonce uint32) string {
	return fmt.Sprintf("%08x", nonce)
}

// IsValidHex checks if string is valid hexadecimal
func IsValidHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	_, err := hex.DecodeString(s)
	return err == nil
}

// ValidateNonce validates nonce format (4 bytes / 8 hex chars)
func ValidateNonce(nonce string) bool {
	if len(nonce) != 8 {
		return false
	}
	return IsValidHex(nonce)
}

// ValidateHash validates hash format (32 bytes / 64 hex chars)
func ValidateHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	return IsValidHex(hash)
}

// PadBytes pads bytes to the specified length (right-pad with zeros)
func PadBytes(b []byte, length int) []byte {
	if len(b) >= length {
		return b
	}
	padded := make([]byte, length)
	copy(padded, b)
	return padded
}

// FormatHashrate renders a hashes-per-second figure with a human unit
func FormatHashrate(hs float64) string {
	switch {
	case hs >= 1e9:
		return fmt.Sprintf("%.2f GH/s", hs/1e9)
	case hs >= 1e6:
		return fmt.Sprintf("%.2f MH/s", hs/1e6)
	case hs >= 1e3:
		return fmt.Sprintf("%.2f kH/s", hs/1e3)
	default:
		return fmt.Sprintf("%.2f H/s", hs)
	}
}

// FormatRuntime renders a duration in seconds as h:mm:ss
func FormatRuntime(seconds uint64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
