// Package ethaddr validates and normalises Ethereum account addresses.
package ethaddr

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// IsValid reports whether s is a well-formed 20-byte hex address. Mixed-case
// addresses must additionally carry a correct EIP-55 checksum; all-lower and
// all-upper addresses are accepted without one.
func IsValid(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	body := s[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return false
	}
	lower := strings.ToLower(body)
	upper := strings.ToUpper(body)
	if body == lower || body == upper {
		return true
	}
	return Checksum(s) == s
}

// Checksum returns the EIP-55 mixed-case form of the address. The input must
// already be a hex address; the case of its letters is ignored.
func Checksum(s string) string {
	body := strings.ToLower(strings.TrimPrefix(s, "0x"))

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(body))
	digest := h.Sum(nil)

	out := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 'a' && c <= 'f' {
			nibble := digest[i/2]
			if i%2 == 0 {
				nibble >>= 4
			}
			if nibble&0x0f >= 8 {
				c = c - 'a' + 'A'
			}
		}
		out[i] = c
	}
	return "0x" + string(out)
}

// Normalize lowercases an address for case-insensitive comparison and storage
// keys. It does not validate.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Equal compares two addresses case-insensitively.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
