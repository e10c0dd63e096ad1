// Package cryptoutils provides the cipher primitives used by the medchain
// key-management core: RSA-OAEP asymmetric encryption for wrapping document
// encryption keys, AES-GCM authenticated symmetric encryption for document
// content, PBKDF2 key derivation, and SHA-256 hashing with constant-time
// verification.
//
// All primitives are pure and synchronous: they perform no I/O and hold no
// state beyond their inputs. Failures are deterministic and must never be
// retried with weaker parameters; callers propagate them immediately.
package cryptoutils
