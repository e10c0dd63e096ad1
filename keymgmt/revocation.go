package keymgmt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lazizjon-web-dev/medchain/interfaces"
	"github.com/Lazizjon-web-dev/medchain/metrics"
)

// Revoke removes a recipient's grant entry from the ledger. It is
// idempotent: revoking an already-absent grant succeeds. It never touches
// the record's key version or any other recipient's grant.
//
// Revocation is a ledger-access removal, not cryptographic re-keying: a
// revoked recipient who kept a copy of old ciphertext and their old wrapped
// key can still decrypt what they already fetched. Cutting a recipient off
// from the current content requires a Rotate that omits them from the
// retained set.
func (s *Service) Revoke(ctx context.Context, ref interfaces.RecordRef, recipient interfaces.PrincipalID) error {
	err := s.ledger.RemoveGrant(ctx, ref, recipient)
	if err != nil && !errors.Is(err, interfaces.ErrGrantNotFound) {
		return fmt.Errorf("removing grant: %w", err)
	}

	metrics.RevocationsTotal.Inc()
	s.log.Info("Revoked access",
		slog.String("record_ref", ref.String()),
		slog.String("recipient", recipient.String()),
		slog.Bool("was_present", err == nil))
	return nil
}
