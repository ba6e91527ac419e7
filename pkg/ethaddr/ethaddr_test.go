package ethaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	cases := []struct {
		name    string
		address string
		valid   bool
	}{
		{"checksummed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"all lower", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"all upper", "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", true},
		{"bad checksum", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1beAed", false},
		{"too short", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beae", false},
		{"missing prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00", false},
		{"non hex", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaeg", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, IsValid(tc.address))
		})
	}
}

func TestChecksum(t *testing.T) {
	// Reference vectors from EIP-55.
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Checksum("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.Equal(t, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", Checksum("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("0xABCdef0000000000000000000000000000000000", "0xabcDEF0000000000000000000000000000000000"))
	assert.False(t, Equal("0xabc0000000000000000000000000000000000000", "0xdef0000000000000000000000000000000000000"))
}
