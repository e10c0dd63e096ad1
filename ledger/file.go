package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Lazizjon-web-dev/medchain/interfaces"
)

// snapshot is the on-disk representation of the ledger state.
type snapshot struct {
	Records []interfaces.DocumentEnvelope `json:"records"`
	Grants  []interfaces.AccessGrant      `json:"grants"`
}

// FileLedger implements interfaces.AuthorizationLedger on top of an
// in-memory ledger with a JSON snapshot persisted after every write. It
// gives the operator CLI durable state across invocations; the snapshot
// write is atomic via rename so a crash never leaves a torn file.
type FileLedger struct {
	mu    sync.Mutex
	inner *InMemoryLedger
	path  string
	log   *slog.Logger
}

// NewFileLedger opens or creates a file-backed ledger at the given path.
func NewFileLedger(path string, log *slog.Logger) (*FileLedger, error) {
	if log == nil {
		log = slog.Default()
	}

	l := &FileLedger{
		inner: NewInMemoryLedger(log),
		path:  path,
		log:   log,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse ledger file: %w", err)
	}

	l.inner.Restore(snap.Records, snap.Grants)
	log.Debug("Loaded ledger snapshot",
		slog.String("path", path),
		slog.Int("records", len(snap.Records)),
		slog.Int("grants", len(snap.Grants)))
	return l, nil
}

// GetRecordEnvelope returns the current envelope entry for a record.
func (l *FileLedger) GetRecordEnvelope(ctx context.Context, ref interfaces.RecordRef) (interfaces.DocumentEnvelope, error) {
	return l.inner.GetRecordEnvelope(ctx, ref)
}

// GetGrants returns all access grants attached to a record.
func (l *FileLedger) GetGrants(ctx context.Context, ref interfaces.RecordRef) (map[interfaces.PrincipalID]interfaces.AccessGrant, error) {
	return l.inner.GetGrants(ctx, ref)
}

// CommitRecordUpdate replaces the record's envelope entry and persists.
func (l *FileLedger) CommitRecordUpdate(ctx context.Context, envelope interfaces.DocumentEnvelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.inner.CommitRecordUpdate(ctx, envelope); err != nil {
		return err
	}
	return l.save()
}

// CommitGrantUpdate upserts one recipient's grant entry and persists.
func (l *FileLedger) CommitGrantUpdate(ctx context.Context, grant interfaces.AccessGrant) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.inner.CommitGrantUpdate(ctx, grant); err != nil {
		return err
	}
	return l.save()
}

// RemoveGrant deletes one recipient's grant entry and persists.
func (l *FileLedger) RemoveGrant(ctx context.Context, ref interfaces.RecordRef, recipient interfaces.PrincipalID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.inner.RemoveGrant(ctx, ref, recipient); err != nil {
		return err
	}
	return l.save()
}

// save writes the snapshot to a temporary file and renames it into place.
func (l *FileLedger) save() error {
	records, grants := l.inner.Snapshot()
	data, err := json.MarshalIndent(snapshot{Records: records, Grants: grants}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger snapshot: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}

	return nil
}
