// Package keymgmt drives the key lifecycle of encrypted medical records:
// initial sealing, per-recipient access grants, owner-first key rotation,
// and grant revocation. It composes the envelope codec with the
// authorization ledger and the blob store, and owns the partial-failure
// semantics of rotation: the record entry always advances first, recipient
// grants converge afterwards and can be retried narrowly.
package keymgmt
