package cryptoutils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsymmetricRoundTrip(t *testing.T) {
	pair, err := GenerateKeyPair()
	require.NoError(t, err)

	plaintext := []byte("a 16-byte DEK goes here!")
	ciphertext, err := EncryptWithPublicKey(pair.Public, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	decrypted, err := DecryptWithPrivateKey(pair.Private, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestAsymmetricPlaintextBound(t *testing.T) {
	pair, err := GenerateKeyPair()
	require.NoError(t, err)

	bound, err := MaxAsymmetricPlaintext(pair.Public)
	require.NoError(t, err)
	require.Equal(t, 190, bound) // 2048-bit modulus, OAEP/SHA-256

	// At the bound encryption succeeds.
	_, err = EncryptWithPublicKey(pair.Public, make([]byte, bound))
	require.NoError(t, err)

	// One byte over fails with the asymmetric cipher error.
	_, err = EncryptWithPublicKey(pair.Public, make([]byte, bound+1))
	require.ErrorIs(t, err, ErrAsymmetricCrypto)
}

func TestAsymmetricWrongKeyFails(t *testing.T) {
	pair1, err := GenerateKeyPair()
	require.NoError(t, err)
	pair2, err := GenerateKeyPair()
	require.NoError(t, err)

	ciphertext, err := EncryptWithPublicKey(pair1.Public, []byte("secret"))
	require.NoError(t, err)

	_, err = DecryptWithPrivateKey(pair2.Private, ciphertext)
	require.ErrorIs(t, err, ErrAsymmetricCrypto)
}

func TestPublicKeyFromPrivate(t *testing.T) {
	pair, err := GenerateKeyPair()
	require.NoError(t, err)

	derived, err := pair.Private.PublicKey()
	require.NoError(t, err)
	require.Equal(t, pair.Public, derived)

	fp1, err := pair.Public.Fingerprint()
	require.NoError(t, err)
	fp2, err := derived.Fingerprint()
	require.NoError(t, err)
	require.Equal(t, fp1, fp2)
	require.Len(t, fp1, 64)
}

func TestSymmetricRoundTrip(t *testing.T) {
	key, salt, err := GenerateSymmetricKey()
	require.NoError(t, err)
	require.Len(t, key, SymmetricKeyLength)
	require.Len(t, salt, SaltLength)

	plaintext := []byte("patient record body")
	ciphertext, nonce, err := EncryptSymmetric(key, plaintext)
	require.NoError(t, err)
	require.Len(t, nonce, NonceLength)

	decrypted, err := DecryptSymmetric(key, ciphertext, nonce)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestSymmetricNonceFreshness(t *testing.T) {
	key, _, err := GenerateSymmetricKey()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		_, nonce, err := EncryptSymmetric(key, []byte("same plaintext"))
		require.NoError(t, err)
		require.False(t, seen[string(nonce)], "nonce reused under the same key")
		seen[string(nonce)] = true
	}
}

func TestSymmetricTamperDetection(t *testing.T) {
	key, _, err := GenerateSymmetricKey()
	require.NoError(t, err)

	ciphertext, nonce, err := EncryptSymmetric(key, []byte("do not alter"))
	require.NoError(t, err)

	// Flip one byte anywhere in ciphertext or tag: decryption must fail
	// with an authentication error and return no plaintext.
	for _, i := range []int{0, len(ciphertext) / 2, len(ciphertext) - 1} {
		tampered := bytes.Clone(ciphertext)
		tampered[i] ^= 0x01

		plaintext, err := DecryptSymmetric(key, tampered, nonce)
		require.ErrorIs(t, err, ErrAuthentication)
		require.Nil(t, plaintext)
	}
}

func TestDeriveKeyFromPassword(t *testing.T) {
	_, salt, err := GenerateSymmetricKey()
	require.NoError(t, err)

	key1, err := DeriveKeyFromPassword("correct horse battery staple", salt)
	require.NoError(t, err)
	key2, err := DeriveKeyFromPassword("correct horse battery staple", salt)
	require.NoError(t, err)
	require.Equal(t, key1, key2, "same (password, salt) must yield the same key")

	key3, err := DeriveKeyFromPassword("different password", salt)
	require.NoError(t, err)
	require.NotEqual(t, key1, key3)

	_, err = DeriveKeyFromPassword("pw", []byte("short"))
	require.ErrorIs(t, err, ErrKeyDerivation)
}

func TestHashVerify(t *testing.T) {
	data := []byte("hello")
	digest := Hash(data)

	assert.True(t, VerifyHash(data, digest))
	assert.False(t, VerifyHash([]byte("hellp"), digest))
}
