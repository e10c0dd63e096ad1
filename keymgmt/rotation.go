package keymgmt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lazizjon-web-dev/medchain/envelope"
	"github.com/Lazizjon-web-dev/medchain/interfaces"
	"github.com/Lazizjon-web-dev/medchain/metrics"
)

// RotationRequest describes one record rotation.
type RotationRequest struct {
	RecordRef interfaces.RecordRef

	// NewContent replaces the document body; nil keeps the current
	// plaintext and rotates key material only.
	NewContent []byte

	// Retained is the recipient set that keeps access after rotation,
	// keyed by principal with each recipient's current public key.
	// Recipients omitted here are left with wraps for the superseded
	// generation; their grant entries are removed only by Revoke.
	Retained map[interfaces.PrincipalID]interfaces.PublicKey

	// Owner is the record owner's key pair: the private key stages the
	// current plaintext, the public key receives the first new wrap.
	Owner interfaces.KeyPair
}

// RotationResult is the outcome of a fully converged rotation.
type RotationResult struct {
	Envelope interfaces.DocumentEnvelope
	Grants   map[interfaces.PrincipalID]interfaces.AccessGrant
}

// Rotate advances a record to a fresh DEK generation.
//
// The sequence is stage, reseal, publish, owner commit, propagate. Any
// failure before the owner commit aborts with no observable side effect
// (the ciphertext upload is content-addressed and unreferenced until the
// commit) and the whole rotation is safe to rerun. Once the owner commit
// lands, the generation bump is irreversible; a propagation failure returns
// *PartialRotationError and the caller finishes convergence with
// PropagatePending rather than rerunning Rotate.
func (s *Service) Rotate(ctx context.Context, req RotationRequest) (*RotationResult, error) {
	result, err := s.rotate(ctx, req)
	switch {
	case err == nil:
		metrics.RotationsTotal.WithLabelValues("ok").Inc()
	case isPartial(err):
		metrics.RotationsTotal.WithLabelValues("partial").Inc()
	default:
		metrics.RotationsTotal.WithLabelValues("error").Inc()
	}
	return result, err
}

func (s *Service) rotate(ctx context.Context, req RotationRequest) (*RotationResult, error) {
	// Stage. Grants are re-fetched here as well: cached grant sets may be
	// stale and propagation must preserve each grant's original expiry.
	doc, err := s.ledger.GetRecordEnvelope(ctx, req.RecordRef)
	if err != nil {
		return nil, fmt.Errorf("fetching record envelope: %w", err)
	}
	previousGrants, err := s.ledger.GetGrants(ctx, req.RecordRef)
	if err != nil {
		return nil, fmt.Errorf("fetching grants: %w", err)
	}

	content := req.NewContent
	if content == nil {
		ciphertext, err := s.blobs.Fetch(ctx, doc.ContentRef, interfaces.DocumentType)
		if err != nil {
			return nil, fmt.Errorf("fetching current ciphertext: %w", err)
		}
		content, err = envelope.Open(ciphertext, doc.Nonce, doc.OwnerWrappedKey, req.Owner.Private)
		if err != nil {
			return nil, fmt.Errorf("staging current content: %w", err)
		}
	}

	// Reseal against the owner plus every retained recipient.
	ownerKeyID, err := interfaces.NewKeyID(req.Owner.Public)
	if err != nil {
		return nil, err
	}
	pubs := make([]interfaces.PublicKey, 0, len(req.Retained)+1)
	pubs = append(pubs, req.Owner.Public)
	for _, pub := range req.Retained {
		pubs = append(pubs, pub)
	}
	sealed, err := envelope.Seal(content, pubs)
	if err != nil {
		return nil, err
	}

	// Publish. The new ciphertext always lands under a new content ref:
	// the store is content-addressed and the fresh DEK and nonce change
	// every byte even when the plaintext is unchanged.
	contentRef, err := s.blobs.Store(ctx, sealed.Ciphertext, interfaces.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("storing rotated ciphertext: %w", err)
	}

	// Owner commit: a single atomic ledger write. Until it succeeds the
	// new generation does not exist from any party's perspective.
	now := time.Now().UTC()
	newDoc := interfaces.DocumentEnvelope{
		RecordRef:       req.RecordRef,
		ContentRef:      contentRef,
		OwnerWrappedKey: sealed.WrappedKeys[ownerKeyID],
		Nonce:           sealed.Nonce,
		Algorithm:       sealed.Algorithm,
		KeyVersion:      doc.KeyVersion + 1,
		CreatedAt:       now,
	}
	if err := s.ledger.CommitRecordUpdate(ctx, newDoc); err != nil {
		return nil, fmt.Errorf("committing rotated envelope: %w", err)
	}

	s.log.Info("Rotated record key",
		slog.String("record_ref", req.RecordRef.String()),
		slog.Uint64("key_version", newDoc.KeyVersion),
		slog.Int("retained", len(req.Retained)))

	// Propagate. Each write targets a disjoint grant entry and is
	// idempotent, so failures are collected instead of aborting.
	pending := make(map[interfaces.PrincipalID]interfaces.AccessGrant, len(req.Retained))
	for recipient, pub := range req.Retained {
		keyID, err := interfaces.NewKeyID(pub)
		if err != nil {
			return nil, fmt.Errorf("recipient %s: %w", recipient, err)
		}

		grant := interfaces.AccessGrant{
			RecordRef:   req.RecordRef,
			RecipientID: recipient,
			WrappedKey:  sealed.WrappedKeys[keyID],
			KeyVersion:  newDoc.KeyVersion,
			GrantedAt:   now,
		}
		if previous, ok := previousGrants[recipient]; ok {
			grant.GrantedAt = previous.GrantedAt
			grant.ExpiresAt = previous.ExpiresAt
		}
		pending[recipient] = grant
	}

	grants, partial := s.propagate(ctx, req.RecordRef, newDoc.KeyVersion, pending)
	result := &RotationResult{Envelope: newDoc, Grants: grants}
	if partial != nil {
		return result, partial
	}
	return result, nil
}

// PropagatePending retries the failed subset of a partial rotation. It
// commits the exact pending grant entries the original rotation produced;
// the DEK is never re-derived and converged recipients are not rewritten.
func (s *Service) PropagatePending(ctx context.Context, partial *PartialRotationError) (map[interfaces.PrincipalID]interfaces.AccessGrant, error) {
	grants, remaining := s.propagate(ctx, partial.RecordRef, partial.KeyVersion, partial.Pending)
	if remaining != nil {
		remaining.Succeeded = append(remaining.Succeeded, partial.Succeeded...)
		return grants, remaining
	}
	return grants, nil
}

func (s *Service) propagate(ctx context.Context, ref interfaces.RecordRef, version uint64, pending map[interfaces.PrincipalID]interfaces.AccessGrant) (map[interfaces.PrincipalID]interfaces.AccessGrant, *PartialRotationError) {
	committed := make(map[interfaces.PrincipalID]interfaces.AccessGrant, len(pending))
	partial := &PartialRotationError{
		RecordRef:  ref,
		KeyVersion: version,
		Pending:    make(map[interfaces.PrincipalID]interfaces.AccessGrant),
	}

	for recipient, grant := range pending {
		if err := s.ledger.CommitGrantUpdate(ctx, grant); err != nil {
			s.log.Warn("Grant propagation failed",
				slog.String("record_ref", ref.String()),
				slog.String("recipient", recipient.String()),
				slog.Any("error", err))
			partial.Failed = append(partial.Failed, recipient)
			partial.Pending[recipient] = grant
			partial.err = err
			continue
		}
		partial.Succeeded = append(partial.Succeeded, recipient)
		committed[recipient] = grant
	}

	if len(partial.Failed) > 0 {
		return committed, partial
	}
	return committed, nil
}

// RotateAll rotates many records as independent units of work: one record's
// failure never aborts or rolls back another's. The returned map holds one
// entry per request; a nil value is a converged rotation, a
// *PartialRotationError is retryable per record via PropagatePending.
func (s *Service) RotateAll(ctx context.Context, reqs []RotationRequest) map[interfaces.RecordRef]error {
	results := make(map[interfaces.RecordRef]error, len(reqs))
	for _, req := range reqs {
		_, err := s.Rotate(ctx, req)
		results[req.RecordRef] = err
	}
	return results
}

func isPartial(err error) bool {
	var partial *PartialRotationError
	return errors.As(err, &partial)
}
