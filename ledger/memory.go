package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Lazizjon-web-dev/medchain/interfaces"
)

// InMemoryLedger implements interfaces.AuthorizationLedger with process-local
// state. Every write replaces a single entry under one lock acquisition,
// matching the single-entry atomicity the rotation engine is designed for.
type InMemoryLedger struct {
	mu      sync.RWMutex
	records map[interfaces.RecordRef]interfaces.DocumentEnvelope
	grants  map[interfaces.RecordRef]map[interfaces.PrincipalID]interfaces.AccessGrant
	log     *slog.Logger
}

// NewInMemoryLedger creates an empty in-memory ledger.
func NewInMemoryLedger(log *slog.Logger) *InMemoryLedger {
	if log == nil {
		log = slog.Default()
	}

	return &InMemoryLedger{
		records: make(map[interfaces.RecordRef]interfaces.DocumentEnvelope),
		grants:  make(map[interfaces.RecordRef]map[interfaces.PrincipalID]interfaces.AccessGrant),
		log:     log,
	}
}

// GetRecordEnvelope returns the current envelope entry for a record.
func (l *InMemoryLedger) GetRecordEnvelope(ctx context.Context, ref interfaces.RecordRef) (interfaces.DocumentEnvelope, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	envelope, ok := l.records[ref]
	if !ok {
		return interfaces.DocumentEnvelope{}, interfaces.ErrRecordNotFound
	}
	return envelope, nil
}

// GetGrants returns all access grants attached to a record.
func (l *InMemoryLedger) GetGrants(ctx context.Context, ref interfaces.RecordRef) (map[interfaces.PrincipalID]interfaces.AccessGrant, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	grants := make(map[interfaces.PrincipalID]interfaces.AccessGrant, len(l.grants[ref]))
	for recipient, grant := range l.grants[ref] {
		grants[recipient] = grant
	}
	return grants, nil
}

// CommitRecordUpdate atomically replaces the record's envelope entry.
func (l *InMemoryLedger) CommitRecordUpdate(ctx context.Context, envelope interfaces.DocumentEnvelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records[envelope.RecordRef] = envelope
	l.log.Debug("Committed record envelope",
		slog.String("record_ref", envelope.RecordRef.String()),
		slog.Uint64("key_version", envelope.KeyVersion))
	return nil
}

// CommitGrantUpdate atomically upserts one recipient's grant entry.
func (l *InMemoryLedger) CommitGrantUpdate(ctx context.Context, grant interfaces.AccessGrant) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	recordGrants, ok := l.grants[grant.RecordRef]
	if !ok {
		recordGrants = make(map[interfaces.PrincipalID]interfaces.AccessGrant)
		l.grants[grant.RecordRef] = recordGrants
	}

	recordGrants[grant.RecipientID] = grant
	l.log.Debug("Committed access grant",
		slog.String("record_ref", grant.RecordRef.String()),
		slog.String("recipient", grant.RecipientID.String()),
		slog.Uint64("key_version", grant.KeyVersion))
	return nil
}

// Snapshot returns a copy of all ledger entries, for persistence.
func (l *InMemoryLedger) Snapshot() ([]interfaces.DocumentEnvelope, []interfaces.AccessGrant) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	envelopes := make([]interfaces.DocumentEnvelope, 0, len(l.records))
	for _, envelope := range l.records {
		envelopes = append(envelopes, envelope)
	}

	var grants []interfaces.AccessGrant
	for _, recordGrants := range l.grants {
		for _, grant := range recordGrants {
			grants = append(grants, grant)
		}
	}

	return envelopes, grants
}

// Restore replaces all ledger state with the given entries.
func (l *InMemoryLedger) Restore(envelopes []interfaces.DocumentEnvelope, grants []interfaces.AccessGrant) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[interfaces.RecordRef]interfaces.DocumentEnvelope, len(envelopes))
	for _, envelope := range envelopes {
		l.records[envelope.RecordRef] = envelope
	}

	l.grants = make(map[interfaces.RecordRef]map[interfaces.PrincipalID]interfaces.AccessGrant)
	for _, grant := range grants {
		recordGrants, ok := l.grants[grant.RecordRef]
		if !ok {
			recordGrants = make(map[interfaces.PrincipalID]interfaces.AccessGrant)
			l.grants[grant.RecordRef] = recordGrants
		}
		recordGrants[grant.RecipientID] = grant
	}
}

// RemoveGrant deletes one recipient's grant entry. Returns ErrGrantNotFound
// if no grant exists.
func (l *InMemoryLedger) RemoveGrant(ctx context.Context, ref interfaces.RecordRef, recipient interfaces.PrincipalID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	recordGrants, ok := l.grants[ref]
	if !ok {
		return interfaces.ErrGrantNotFound
	}
	if _, ok := recordGrants[recipient]; !ok {
		return interfaces.ErrGrantNotFound
	}

	delete(recordGrants, recipient)
	l.log.Debug("Removed access grant",
		slog.String("record_ref", ref.String()),
		slog.String("recipient", recipient.String()))
	return nil
}
