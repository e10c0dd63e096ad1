package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrRecordNotFound is returned when a record has no envelope entry on
	// the ledger.
	ErrRecordNotFound = errors.New("record not found")

	// ErrGrantNotFound is returned when a recipient holds no access grant
	// for a record.
	ErrGrantNotFound = errors.New("access grant not found")

	// ErrLedgerUnavailable is returned when the ledger cannot be reached.
	// Unlike cryptographic failures, this is retryable.
	ErrLedgerUnavailable = errors.New("authorization ledger unavailable")
)

// AuthorizationLedger is the consumer view of the external ledger holding
// authorization state: one envelope entry per record and one grant entry
// per (record, recipient) pair.
//
// Each write is assumed atomic at single-entry granularity; no multi-entry
// transaction is available. The rotation engine sequences its writes (owner
// commit first, then per-recipient grant updates) so that no intermediate
// state leaks key material or locks out the owner.
type AuthorizationLedger interface {
	// GetRecordEnvelope returns the current envelope entry for a record.
	// Returns ErrRecordNotFound if the record does not exist.
	GetRecordEnvelope(ctx context.Context, ref RecordRef) (DocumentEnvelope, error)

	// GetGrants returns all access grants attached to a record, keyed by
	// recipient.
	GetGrants(ctx context.Context, ref RecordRef) (map[PrincipalID]AccessGrant, error)

	// CommitRecordUpdate atomically replaces the record's envelope entry.
	// This is the rotation commit point: once it succeeds the new DEK
	// generation exists, and there is no rollback.
	CommitRecordUpdate(ctx context.Context, envelope DocumentEnvelope) error

	// CommitGrantUpdate atomically upserts one recipient's grant entry.
	// Writing the same grant value twice is a no-op, which makes rotation
	// propagation retries idempotent.
	CommitGrantUpdate(ctx context.Context, grant AccessGrant) error

	// RemoveGrant deletes one recipient's grant entry. Returns
	// ErrGrantNotFound if no grant exists; the revocation engine treats
	// that as success.
	RemoveGrant(ctx context.Context, ref RecordRef, recipient PrincipalID) error
}
