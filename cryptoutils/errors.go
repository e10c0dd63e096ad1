package cryptoutils

import "errors"

var (
	// ErrKeyGeneration is returned when asymmetric or symmetric key
	// generation fails, typically on an entropy or parameter failure.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrKeyDerivation is returned when password-based key derivation
	// receives a malformed salt or password.
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrAsymmetricCrypto is returned for any asymmetric encryption or
	// decryption failure: malformed keys, oversized plaintext, or a failed
	// padding check on decrypt. Decryption failures are reported uniformly
	// so that a padding failure is indistinguishable from any other.
	ErrAsymmetricCrypto = errors.New("asymmetric cipher operation failed")

	// ErrAuthentication is returned when an AES-GCM integrity tag does not
	// verify. This is a hard failure: no partial plaintext is ever returned.
	ErrAuthentication = errors.New("symmetric authentication failed")
)
