// Package keccak wraps the Keccak-256 primitive used by the block-hash
// verifier.
package keccak

import (
	"golang.org/x/crypto/sha3"
)

// Size is the digest length in bytes.
const Size = 32

// Sum256 returns the Keccak-256 digest of data.
func Sum256(data ...[]byte) [Size]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [Size]byte
	h.Sum(out[:0])
	return out
}
