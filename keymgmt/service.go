package keymgmt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lazizjon-web-dev/medchain/cryptoutils"
	"github.com/Lazizjon-web-dev/medchain/envelope"
	"github.com/Lazizjon-web-dev/medchain/interfaces"
	"github.com/Lazizjon-web-dev/medchain/metrics"
)

// Service is the key management surface over one ledger and one blob store.
type Service struct {
	ledger interfaces.AuthorizationLedger
	blobs  interfaces.StorageBackend
	log    *slog.Logger
}

// New creates a key management service.
func New(ledger interfaces.AuthorizationLedger, blobs interfaces.StorageBackend, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		ledger: ledger,
		blobs:  blobs,
		log:    log,
	}
}

// SealNew encrypts a new document, stores its ciphertext, and commits the
// record envelope at key version 1, followed by one grant per initial
// recipient. The owner commit happens before any grant so a failure partway
// through never leaves a grant pointing at a record that does not exist.
func (s *Service) SealNew(ctx context.Context, ref interfaces.RecordRef, content []byte, ownerPub interfaces.PublicKey, recipients map[interfaces.PrincipalID]interfaces.PublicKey) (interfaces.DocumentEnvelope, map[interfaces.PrincipalID]interfaces.AccessGrant, error) {
	ownerKeyID, err := interfaces.NewKeyID(ownerPub)
	if err != nil {
		return interfaces.DocumentEnvelope{}, nil, err
	}

	pubs := make([]interfaces.PublicKey, 0, len(recipients)+1)
	pubs = append(pubs, ownerPub)
	for _, pub := range recipients {
		pubs = append(pubs, pub)
	}

	sealed, err := envelope.Seal(content, pubs)
	if err != nil {
		return interfaces.DocumentEnvelope{}, nil, err
	}

	contentRef, err := s.blobs.Store(ctx, sealed.Ciphertext, interfaces.DocumentType)
	if err != nil {
		return interfaces.DocumentEnvelope{}, nil, fmt.Errorf("storing document ciphertext: %w", err)
	}

	now := time.Now().UTC()
	doc := interfaces.DocumentEnvelope{
		RecordRef:       ref,
		ContentRef:      contentRef,
		OwnerWrappedKey: sealed.WrappedKeys[ownerKeyID],
		Nonce:           sealed.Nonce,
		Algorithm:       sealed.Algorithm,
		KeyVersion:      1,
		CreatedAt:       now,
	}
	if err := s.ledger.CommitRecordUpdate(ctx, doc); err != nil {
		return interfaces.DocumentEnvelope{}, nil, fmt.Errorf("committing record envelope: %w", err)
	}

	grants := make(map[interfaces.PrincipalID]interfaces.AccessGrant, len(recipients))
	for recipient, pub := range recipients {
		keyID, err := interfaces.NewKeyID(pub)
		if err != nil {
			return interfaces.DocumentEnvelope{}, nil, fmt.Errorf("recipient %s: %w", recipient, err)
		}

		grant := interfaces.AccessGrant{
			RecordRef:   ref,
			RecipientID: recipient,
			WrappedKey:  sealed.WrappedKeys[keyID],
			KeyVersion:  doc.KeyVersion,
			GrantedAt:   now,
		}
		if err := s.ledger.CommitGrantUpdate(ctx, grant); err != nil {
			return interfaces.DocumentEnvelope{}, nil, fmt.Errorf("committing grant for %s: %w", recipient, err)
		}
		grants[recipient] = grant
	}

	metrics.SealsTotal.Inc()
	s.log.Info("Sealed new record",
		slog.String("record_ref", ref.String()),
		slog.String("content_ref", contentRef.String()),
		slog.Int("recipients", len(recipients)))
	return doc, grants, nil
}

// Open recovers a record's plaintext for the holder of a private key. The
// owner path and the grant path are resolved by key fingerprint against the
// same envelope codec; a grant from a superseded key generation fails
// authentication rather than yielding stale plaintext. Expired grants are
// refused before any cryptography runs.
func (s *Service) Open(ctx context.Context, ref interfaces.RecordRef, priv interfaces.PrivateKey) ([]byte, error) {
	doc, err := s.ledger.GetRecordEnvelope(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetching record envelope: %w", err)
	}

	pub, err := priv.PublicKey()
	if err != nil {
		return nil, err
	}
	keyID, err := interfaces.NewKeyID(pub)
	if err != nil {
		return nil, err
	}

	wrapped, err := s.wrappedKeyFor(ctx, doc, keyID)
	if err != nil {
		return nil, err
	}

	ciphertext, err := s.blobs.Fetch(ctx, doc.ContentRef, interfaces.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("fetching document ciphertext: %w", err)
	}

	content, err := envelope.Open(ciphertext, doc.Nonce, wrapped, priv)
	if err != nil {
		return nil, err
	}

	metrics.OpensTotal.Inc()
	return content, nil
}

// wrappedKeyFor resolves the wrapped key a key fingerprint may use: the
// owner wrap if it matches, otherwise an unexpired grant carrying that
// fingerprint.
func (s *Service) wrappedKeyFor(ctx context.Context, doc interfaces.DocumentEnvelope, keyID interfaces.KeyID) (interfaces.WrappedKey, error) {
	if doc.OwnerWrappedKey.RecipientKeyID == keyID {
		return doc.OwnerWrappedKey, nil
	}

	grants, err := s.ledger.GetGrants(ctx, doc.RecordRef)
	if err != nil {
		return interfaces.WrappedKey{}, fmt.Errorf("fetching grants: %w", err)
	}

	for _, grant := range grants {
		if grant.WrappedKey.RecipientKeyID != keyID {
			continue
		}
		if grant.Expired(time.Now()) {
			return interfaces.WrappedKey{}, fmt.Errorf("%w: recipient %s", ErrGrantExpired, grant.RecipientID)
		}
		return grant.WrappedKey, nil
	}

	return interfaces.WrappedKey{}, ErrNoAccess
}

// Grant authorizes a new recipient for a record without rotating it: the
// owner unwraps the current DEK and rewraps it under the recipient's public
// key. A ttl of zero means the grant never expires. Granting twice to the
// same recipient replaces the previous grant entry.
func (s *Service) Grant(ctx context.Context, ref interfaces.RecordRef, recipient interfaces.PrincipalID, recipientPub interfaces.PublicKey, ownerPriv interfaces.PrivateKey, ttl time.Duration) (interfaces.AccessGrant, error) {
	doc, err := s.ledger.GetRecordEnvelope(ctx, ref)
	if err != nil {
		return interfaces.AccessGrant{}, fmt.Errorf("fetching record envelope: %w", err)
	}

	recipientKeyID, err := interfaces.NewKeyID(recipientPub)
	if err != nil {
		return interfaces.AccessGrant{}, err
	}

	dek, err := cryptoutils.DecryptWithPrivateKey(ownerPriv, doc.OwnerWrappedKey.Ciphertext)
	if err != nil {
		return interfaces.AccessGrant{}, fmt.Errorf("unwrapping owner key: %w", err)
	}
	defer cryptoutils.Zeroize(dek)

	wrap, err := cryptoutils.EncryptWithPublicKey(recipientPub, dek)
	if err != nil {
		return interfaces.AccessGrant{}, fmt.Errorf("wrapping key for %s: %w", recipient, err)
	}

	now := time.Now().UTC()
	grant := interfaces.AccessGrant{
		RecordRef:   ref,
		RecipientID: recipient,
		WrappedKey:  interfaces.WrappedKey{RecipientKeyID: recipientKeyID, Ciphertext: wrap},
		KeyVersion:  doc.KeyVersion,
		GrantedAt:   now,
	}
	if ttl > 0 {
		grant.ExpiresAt = now.Add(ttl)
	}

	if err := s.ledger.CommitGrantUpdate(ctx, grant); err != nil {
		return interfaces.AccessGrant{}, fmt.Errorf("committing grant: %w", err)
	}

	metrics.GrantsTotal.Inc()
	s.log.Info("Granted access",
		slog.String("record_ref", ref.String()),
		slog.String("recipient", recipient.String()),
		slog.Uint64("key_version", grant.KeyVersion))
	return grant, nil
}
