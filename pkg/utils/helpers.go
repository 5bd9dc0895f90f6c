package utils

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrEmptyHash = errors.New("empty block hash")

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// NormalizeHash trims a block hash reported by an explorer. 0x-prefixed hashes
// must be valid even-length hex and are lowercased so EVM sources agree on the same block;
// anything else (base58, base32, bare hex) is kept verbatim.
func NormalizeHash(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyHash
	}
	if !hasHexPrefix(s) {
		return s, nil
	}
	body := strings.ToLower(s[2:])
	if body == "" {
		return "", ErrEmptyHash
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("invalid hex hash %q: %w", raw, err)
	}
	return "0x" + body, nil
}

// ParseHeight parses a block height that explorers send as a string, either
// decimal ("19000000") or 0x-prefixed hex ("0x121eac0").
func ParseHeight(raw string) (uint64, error) {
	s := strings.TrimSpace(raw)
	if hasHexPrefix(s) {
		h, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid hex height %q: %w", raw, err)
		}
		return h, nil
	}
	h, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid height %q: %w", raw, err)
	}
	return h, nil
}
