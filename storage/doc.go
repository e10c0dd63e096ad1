// Package storage provides content-addressed blob backends for encrypted
// document bodies. Every backend derives the content ID from the stored
// bytes, so the same ciphertext lands under the same ID everywhere and
// stored content is immutable. Backends are created from location URIs via
// the factory; the multi-backend replicates stores and falls back across
// fetches.
package storage
