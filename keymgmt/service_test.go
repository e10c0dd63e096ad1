package keymgmt

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lazizjon-web-dev/medchain/cryptoutils"
	"github.com/Lazizjon-web-dev/medchain/interfaces"
	"github.com/Lazizjon-web-dev/medchain/ledger"
	"github.com/Lazizjon-web-dev/medchain/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testService wires a service over an in-memory ledger and a file-backed
// blob store.
func testService(t *testing.T) (*Service, *ledger.InMemoryLedger) {
	t.Helper()

	blobs, err := storage.NewFileBackend(t.TempDir(), discardLogger())
	require.NoError(t, err)

	l := ledger.NewInMemoryLedger(discardLogger())
	return New(l, blobs, discardLogger()), l
}

func generateKeyPair(t *testing.T) interfaces.KeyPair {
	t.Helper()
	kp, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func TestSealNewAndOpen(t *testing.T) {
	svc, _ := testService(t)
	owner := generateKeyPair(t)
	doctor := generateKeyPair(t)
	stranger := generateKeyPair(t)

	ref := interfaces.ComputeRecordRef("patient-1", 1)
	content := []byte("blood panel results")

	doc, grants, err := svc.SealNew(context.Background(), ref, content, owner.Public,
		map[interfaces.PrincipalID]interfaces.PublicKey{"doctor-1": doctor.Public})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), doc.KeyVersion)
	require.Len(t, grants, 1)

	for name, priv := range map[string]interfaces.PrivateKey{
		"owner":  owner.Private,
		"doctor": doctor.Private,
	} {
		got, err := svc.Open(context.Background(), ref, priv)
		require.NoError(t, err, name)
		assert.Equal(t, content, got, name)
	}

	_, err = svc.Open(context.Background(), ref, stranger.Private)
	assert.ErrorIs(t, err, ErrNoAccess)
}

func TestOpenUnknownRecord(t *testing.T) {
	svc, _ := testService(t)
	owner := generateKeyPair(t)

	_, err := svc.Open(context.Background(), interfaces.ComputeRecordRef("patient-1", 99), owner.Private)
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
}

func TestGrantWithoutRotation(t *testing.T) {
	svc, _ := testService(t)
	owner := generateKeyPair(t)
	doctor := generateKeyPair(t)

	ref := interfaces.ComputeRecordRef("patient-1", 2)
	content := []byte("radiology report")

	doc, _, err := svc.SealNew(context.Background(), ref, content, owner.Public, nil)
	require.NoError(t, err)

	grant, err := svc.Grant(context.Background(), ref, "doctor-1", doctor.Public, owner.Private, 0)
	require.NoError(t, err)
	assert.Equal(t, doc.KeyVersion, grant.KeyVersion)
	assert.True(t, grant.ExpiresAt.IsZero())

	got, err := svc.Open(context.Background(), ref, doctor.Private)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestOpenRefusesExpiredGrant(t *testing.T) {
	svc, l := testService(t)
	owner := generateKeyPair(t)
	doctor := generateKeyPair(t)

	ref := interfaces.ComputeRecordRef("patient-1", 3)
	_, _, err := svc.SealNew(context.Background(), ref, []byte("discharge summary"), owner.Public, nil)
	require.NoError(t, err)

	doctorKeyID, err := interfaces.NewKeyID(doctor.Public)
	require.NoError(t, err)

	// Expiry is checked before any cryptography, so the wrap content is
	// irrelevant here.
	require.NoError(t, l.CommitGrantUpdate(context.Background(), interfaces.AccessGrant{
		RecordRef:   ref,
		RecipientID: "doctor-1",
		WrappedKey:  interfaces.WrappedKey{RecipientKeyID: doctorKeyID, Ciphertext: []byte{1}},
		KeyVersion:  1,
		GrantedAt:   time.Now().Add(-2 * time.Hour),
		ExpiresAt:   time.Now().Add(-time.Hour),
	}))

	_, err = svc.Open(context.Background(), ref, doctor.Private)
	assert.ErrorIs(t, err, ErrGrantExpired)
}

func TestGrantWithTTL(t *testing.T) {
	svc, _ := testService(t)
	owner := generateKeyPair(t)
	doctor := generateKeyPair(t)

	ref := interfaces.ComputeRecordRef("patient-1", 4)
	_, _, err := svc.SealNew(context.Background(), ref, []byte("prescription"), owner.Public, nil)
	require.NoError(t, err)

	grant, err := svc.Grant(context.Background(), ref, "doctor-1", doctor.Public, owner.Private, time.Hour)
	require.NoError(t, err)
	assert.False(t, grant.ExpiresAt.IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Hour), grant.ExpiresAt, time.Minute)

	// Still valid, opens fine.
	_, err = svc.Open(context.Background(), ref, doctor.Private)
	require.NoError(t, err)
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, l := testService(t)
	owner := generateKeyPair(t)
	doctor := generateKeyPair(t)
	nurse := generateKeyPair(t)

	ref := interfaces.ComputeRecordRef("patient-1", 5)
	_, _, err := svc.SealNew(context.Background(), ref, []byte("lab notes"), owner.Public,
		map[interfaces.PrincipalID]interfaces.PublicKey{
			"doctor-1": doctor.Public,
			"nurse-1":  nurse.Public,
		})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), ref, "doctor-1"))
	// Revoking an already-absent grant is a success, not an error.
	require.NoError(t, svc.Revoke(context.Background(), ref, "doctor-1"))

	_, err = svc.Open(context.Background(), ref, doctor.Private)
	assert.ErrorIs(t, err, ErrNoAccess)

	// Other grants are untouched.
	grants, err := l.GetGrants(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	_, err = svc.Open(context.Background(), ref, nurse.Private)
	require.NoError(t, err)
}
