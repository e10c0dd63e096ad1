package cryptoutils

import (
	"crypto/sha256"
	"crypto/subtle"
)

// Hash computes the SHA-256 digest of data.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// VerifyHash reports whether data hashes to the expected digest, using a
// constant-time comparison.
func VerifyHash(data []byte, digest [32]byte) bool {
	actual := sha256.Sum256(data)
	return subtle.ConstantTimeCompare(actual[:], digest[:]) == 1
}
