package cryptoutils

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// oaepOverhead is the OAEP padding overhead for SHA-256: 2*hLen + 2 bytes.
const oaepOverhead = 2*sha256.Size + 2

// MaxAsymmetricPlaintext returns the largest plaintext the given public key
// can encrypt under OAEP/SHA-256. Only key material is a legitimate payload
// here; document bodies go through the symmetric cipher.
func MaxAsymmetricPlaintext(pub PublicKey) (int, error) {
	key, err := pub.parse()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAsymmetricCrypto, err)
	}
	return key.Size() - oaepOverhead, nil
}

// EncryptWithPublicKey encrypts data under the recipient's RSA public key
// using OAEP with SHA-256. The plaintext length is bounded by the modulus
// minus the padding overhead; larger inputs fail with ErrAsymmetricCrypto.
func EncryptWithPublicKey(pub PublicKey, data []byte) ([]byte, error) {
	key, err := pub.parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAsymmetricCrypto, err)
	}

	if len(data) > key.Size()-oaepOverhead {
		return nil, fmt.Errorf("%w: plaintext exceeds %d byte OAEP bound", ErrAsymmetricCrypto, key.Size()-oaepOverhead)
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, key, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAsymmetricCrypto, err)
	}

	return ciphertext, nil
}

// DecryptWithPrivateKey decrypts data produced by EncryptWithPublicKey.
// All decryption failures, including padding check failures, are reported
// as the same ErrAsymmetricCrypto so the error reveals nothing about which
// check failed.
func DecryptWithPrivateKey(priv PrivateKey, ciphertext []byte) ([]byte, error) {
	key, err := priv.parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAsymmetricCrypto, err)
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decryption failed", ErrAsymmetricCrypto)
	}

	return plaintext, nil
}
