package keymgmt

import (
	"errors"
	"fmt"

	"github.com/Lazizjon-web-dev/medchain/interfaces"
)

var (
	// ErrNoAccess is returned by Open when the caller's key matches neither
	// the owner wrap nor any grant on the record.
	ErrNoAccess = errors.New("no wrapped key for principal")

	// ErrGrantExpired is returned by Open when the caller's grant exists but
	// its expiry has passed.
	ErrGrantExpired = errors.New("access grant expired")
)

// PartialRotationError reports a rotation whose owner commit succeeded but
// whose per-recipient propagation did not fully converge. The record is
// already on the new key generation; recipients in Failed still hold wraps
// for the previous generation and cannot decrypt the current content until
// PropagatePending is retried for them. This state is incomplete, not
// failed: steps before the owner commit must not be redone.
type PartialRotationError struct {
	RecordRef  interfaces.RecordRef
	KeyVersion uint64

	// Succeeded and Failed partition the retained recipients.
	Succeeded []interfaces.PrincipalID
	Failed    []interfaces.PrincipalID

	// Pending holds the exact grant entries still to be committed, so a
	// retry writes the same wrapped key values without re-deriving the DEK.
	Pending map[interfaces.PrincipalID]interfaces.AccessGrant

	err error
}

func (e *PartialRotationError) Error() string {
	return fmt.Sprintf("rotation of %s to key version %d incomplete: %d of %d recipients propagated: %v",
		e.RecordRef, e.KeyVersion, len(e.Succeeded), len(e.Succeeded)+len(e.Failed), e.err)
}

func (e *PartialRotationError) Unwrap() error {
	return e.err
}
