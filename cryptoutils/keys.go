package cryptoutils

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
)

// RSA key size used for all principal key pairs. Matches the OAEP/SHA-256
// parameters the wrapped-key format is sized for.
const rsaKeyBits = 2048

// PublicKey is a PEM-encoded PKIX RSA public key belonging to a principal.
type PublicKey []byte

// PrivateKey is a PEM-encoded PKCS#8 RSA private key. Private keys never
// leave the owning principal's local context; the core only receives them
// as explicit arguments to decryption operations.
type PrivateKey []byte

// KeyPair holds a principal's asymmetric key pair.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// GenerateKeyPair produces a fresh RSA-2048 key pair suitable for OAEP
// encryption with SHA-256. Returns ErrKeyGeneration on entropy or
// parameter failure.
func GenerateKeyPair() (KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	return KeyPair{
		Public:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}),
		Private: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}),
	}, nil
}

// Fingerprint returns the hex-encoded SHA-256 digest of the public key's
// DER encoding. It identifies the recipient of a wrapped key.
func (pub PublicKey) Fingerprint() (string, error) {
	block, _ := pem.Decode(pub)
	if block == nil {
		return "", errors.New("failed to decode public key PEM")
	}
	sum := sha256.Sum256(block.Bytes)
	return hex.EncodeToString(sum[:]), nil
}

// PublicKey derives the PEM-encoded public key from a private key.
func (priv PrivateKey) PublicKey() (PublicKey, error) {
	key, err := priv.parse()
	if err != nil {
		return nil, err
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), nil
}

// parse decodes the PEM block and parses the PKCS#8 RSA private key.
func (priv PrivateKey) parse() (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(priv)
	if block == nil {
		return nil, errors.New("failed to decode private key PEM")
	}

	keyInterface, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	key, ok := keyInterface.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA private key")
	}

	return key, nil
}

// parse decodes the PEM block and parses the PKIX RSA public key.
func (pub PublicKey) parse() (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pub)
	if block == nil {
		return nil, errors.New("failed to decode public key PEM")
	}

	keyInterface, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	key, ok := keyInterface.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}

	return key, nil
}
