// Package envelope implements the hybrid envelope codec: a document is
// encrypted once under a per-document symmetric key (DEK), and that DEK is
// separately wrapped under each authorized recipient's asymmetric public
// key. Every recipient class, owner included, opens a document through the
// same path; no separate owner mode exists.
package envelope

import (
	"errors"
	"fmt"

	"github.com/Lazizjon-web-dev/medchain/cryptoutils"
	"github.com/Lazizjon-web-dev/medchain/interfaces"
)

// ErrEnvelope is returned when sealing or opening an envelope fails. It
// wraps the underlying cipher error.
var ErrEnvelope = errors.New("envelope operation failed")

// SealedDocument is the output of one seal: the authenticated ciphertext,
// its nonce, and one wrapped key per recipient. The DEK itself is discarded
// before Seal returns; its wrapped forms are its only durable
// representations.
type SealedDocument struct {
	Ciphertext []byte
	Nonce      []byte
	Algorithm  interfaces.CipherAlgorithm

	// WrappedKeys holds the DEK wrapped under each recipient key, keyed by
	// the recipient key's fingerprint.
	WrappedKeys map[interfaces.KeyID]interfaces.WrappedKey
}

// Seal encrypts content under a fresh DEK and wraps the DEK for every
// recipient public key. The DEK is zeroized after all wraps are produced
// and is never returned. At least one recipient is required; a document
// with no wrapped keys would be unrecoverable.
func Seal(content []byte, recipients []interfaces.PublicKey) (*SealedDocument, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrEnvelope)
	}

	dek, _, err := cryptoutils.GenerateSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	defer cryptoutils.Zeroize(dek)

	ciphertext, nonce, err := cryptoutils.EncryptSymmetric(dek, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}

	wrapped := make(map[interfaces.KeyID]interfaces.WrappedKey, len(recipients))
	for _, pub := range recipients {
		keyID, err := interfaces.NewKeyID(pub)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
		}

		wrap, err := cryptoutils.EncryptWithPublicKey(pub, dek)
		if err != nil {
			return nil, fmt.Errorf("%w: wrapping for %s: %v", ErrEnvelope, keyID, err)
		}

		wrapped[keyID] = interfaces.WrappedKey{RecipientKeyID: keyID, Ciphertext: wrap}
	}

	return &SealedDocument{
		Ciphertext:  ciphertext,
		Nonce:       nonce,
		Algorithm:   interfaces.AES128GCM,
		WrappedKeys: wrapped,
	}, nil
}

// Open recovers a document: it unwraps the DEK with the recipient's private
// key, then decrypts and authenticates the ciphertext. Either failure is
// reported as ErrEnvelope wrapping the cipher error; a wrapped key from a
// superseded generation fails authentication here rather than silently
// yielding stale or altered plaintext.
func Open(ciphertext, nonce []byte, wrapped interfaces.WrappedKey, priv interfaces.PrivateKey) ([]byte, error) {
	dek, err := cryptoutils.DecryptWithPrivateKey(priv, wrapped.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrapping key: %w", ErrEnvelope, err)
	}
	defer cryptoutils.Zeroize(dek)

	content, err := cryptoutils.DecryptSymmetric(dek, ciphertext, nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypting content: %w", ErrEnvelope, err)
	}

	return content, nil
}
