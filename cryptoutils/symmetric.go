package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Symmetric cipher parameters. The key length and KDF iteration count match
// the wrapped-key material already in circulation, so they are fixed.
const (
	// SymmetricKeyLength is the AES-128 key size in bytes.
	SymmetricKeyLength = 16

	// SaltLength is the PBKDF2 salt size in bytes.
	SaltLength = 16

	// NonceLength is the AES-GCM nonce size in bytes (96 bits).
	NonceLength = 12

	// KDFIterations is the fixed PBKDF2 iteration count.
	KDFIterations = 100000
)

// GenerateSymmetricKey derives a fresh AES-128 document encryption key from
// a random 32-byte seed passed through PBKDF2-SHA256. The salt is returned
// for protocol symmetry with password-derived keys; it is not needed again
// once the key is exported.
func GenerateSymmetricKey() (key, salt []byte, err error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	salt = make([]byte, SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	key = pbkdf2.Key(seed, salt, KDFIterations, SymmetricKeyLength, sha256.New)
	Zeroize(seed)
	return key, salt, nil
}

// DeriveKeyFromPassword deterministically derives an AES-128 key from a
// password and salt. The same (password, salt) pair always yields the same
// key. Returns ErrKeyDerivation on a malformed salt.
func DeriveKeyFromPassword(password string, salt []byte) ([]byte, error) {
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrKeyDerivation, SaltLength, len(salt))
	}
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrKeyDerivation)
	}

	return pbkdf2.Key([]byte(password), salt, KDFIterations, SymmetricKeyLength, sha256.New), nil
}

// EncryptSymmetric encrypts plaintext under the given key with AES-GCM,
// generating a fresh random 96-bit nonce per call. A nonce is never reused
// under the same key because every call draws a new one.
func EncryptSymmetric(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// DecryptSymmetric decrypts AES-GCM ciphertext. A failed integrity tag is a
// hard failure reported as ErrAuthentication; no plaintext is returned.
func DecryptSymmetric(key, ciphertext, nonce []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != NonceLength {
		return nil, fmt.Errorf("%w: invalid nonce length %d", ErrAuthentication, len(nonce))
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	return plaintext, nil
}

// Zeroize overwrites key material in place. Callers discard DEKs with this
// as soon as all wraps for a seal are produced.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aead, nil
}
