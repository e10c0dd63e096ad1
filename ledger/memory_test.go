package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lazizjon-web-dev/medchain/interfaces"
)

func testEnvelope(ref interfaces.RecordRef, version uint64) interfaces.DocumentEnvelope {
	return interfaces.DocumentEnvelope{
		RecordRef:       ref,
		ContentRef:      interfaces.ComputeID([]byte("ciphertext")),
		OwnerWrappedKey: interfaces.WrappedKey{RecipientKeyID: "owner-key", Ciphertext: []byte{1, 2, 3}},
		Nonce:           []byte{4, 5, 6},
		Algorithm:       interfaces.AES128GCM,
		KeyVersion:      version,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

func TestInMemoryLedgerRecords(t *testing.T) {
	l := NewInMemoryLedger(nil)
	ref := interfaces.ComputeRecordRef("patient-1", 1)

	_, err := l.GetRecordEnvelope(context.Background(), ref)
	require.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	require.NoError(t, l.CommitRecordUpdate(context.Background(), testEnvelope(ref, 1)))
	envelope, err := l.GetRecordEnvelope(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), envelope.KeyVersion)

	// A commit replaces the entry wholesale.
	require.NoError(t, l.CommitRecordUpdate(context.Background(), testEnvelope(ref, 2)))
	envelope, err = l.GetRecordEnvelope(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), envelope.KeyVersion)
}

func TestInMemoryLedgerGrants(t *testing.T) {
	l := NewInMemoryLedger(nil)
	ref := interfaces.ComputeRecordRef("patient-1", 1)

	grants, err := l.GetGrants(context.Background(), ref)
	require.NoError(t, err)
	assert.Empty(t, grants)

	grant := interfaces.AccessGrant{
		RecordRef:   ref,
		RecipientID: "doctor-1",
		WrappedKey:  interfaces.WrappedKey{RecipientKeyID: "doctor-key", Ciphertext: []byte{7}},
		KeyVersion:  1,
		GrantedAt:   time.Now().UTC(),
	}
	require.NoError(t, l.CommitGrantUpdate(context.Background(), grant))

	grants, err = l.GetGrants(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, grant.WrappedKey, grants["doctor-1"].WrappedKey)

	// Upsert replaces the existing grant for the same recipient.
	grant.KeyVersion = 2
	require.NoError(t, l.CommitGrantUpdate(context.Background(), grant))
	grants, err = l.GetGrants(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, uint64(2), grants["doctor-1"].KeyVersion)

	require.NoError(t, l.RemoveGrant(context.Background(), ref, "doctor-1"))
	err = l.RemoveGrant(context.Background(), ref, "doctor-1")
	require.ErrorIs(t, err, interfaces.ErrGrantNotFound)
}

func TestInMemoryLedgerGetGrantsReturnsCopy(t *testing.T) {
	l := NewInMemoryLedger(nil)
	ref := interfaces.ComputeRecordRef("patient-1", 1)

	require.NoError(t, l.CommitGrantUpdate(context.Background(), interfaces.AccessGrant{
		RecordRef:   ref,
		RecipientID: "doctor-1",
		KeyVersion:  1,
	}))

	grants, err := l.GetGrants(context.Background(), ref)
	require.NoError(t, err)
	delete(grants, "doctor-1")

	grants, err = l.GetGrants(context.Background(), ref)
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestFileLedgerPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	ref := interfaces.ComputeRecordRef("patient-1", 7)

	l, err := NewFileLedger(path, nil)
	require.NoError(t, err)

	envelope := testEnvelope(ref, 3)
	require.NoError(t, l.CommitRecordUpdate(context.Background(), envelope))
	require.NoError(t, l.CommitGrantUpdate(context.Background(), interfaces.AccessGrant{
		RecordRef:   ref,
		RecipientID: "doctor-1",
		WrappedKey:  interfaces.WrappedKey{RecipientKeyID: "doctor-key", Ciphertext: []byte{9}},
		KeyVersion:  3,
		GrantedAt:   time.Now().UTC().Truncate(time.Second),
	}))

	// A fresh instance reads everything back from the snapshot.
	reopened, err := NewFileLedger(path, nil)
	require.NoError(t, err)

	got, err := reopened.GetRecordEnvelope(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, envelope.ContentRef, got.ContentRef)
	assert.Equal(t, uint64(3), got.KeyVersion)

	grants, err := reopened.GetGrants(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, uint64(3), grants["doctor-1"].KeyVersion)

	require.NoError(t, reopened.RemoveGrant(context.Background(), ref, "doctor-1"))

	reopened2, err := NewFileLedger(path, nil)
	require.NoError(t, err)
	grants, err = reopened2.GetGrants(context.Background(), ref)
	require.NoError(t, err)
	assert.Empty(t, grants)
}
