package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lazizjon-web-dev/medchain/cryptoutils"
	"github.com/Lazizjon-web-dev/medchain/interfaces"
	"github.com/Lazizjon-web-dev/medchain/keymgmt"
	"github.com/Lazizjon-web-dev/medchain/ledger"
	"github.com/Lazizjon-web-dev/medchain/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs, err := storage.NewFileBackend(t.TempDir(), log)
	require.NoError(t, err)

	service := keymgmt.New(ledger.NewInMemoryLedger(log), blobs, log)
	srv, err := New(&HTTPServerConfig{
		ListenAddr:    "127.0.0.1:0",
		Log:           log,
		DrainDuration: time.Second,
	}, NewHandler(service, log))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.getRouter())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRecordLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	owner, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	doctor, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	ref := interfaces.ComputeRecordRef("patient-1", 1)
	base := fmt.Sprintf("%s/api/records/%s", ts.URL, ref)
	content := []byte("annual checkup notes")

	// Seal.
	resp := postJSON(t, base+"/seal", sealRequest{
		Content:        content,
		OwnerPublicKey: string(owner.Public),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sealed := decodeBody[sealResponse](t, resp)
	assert.Equal(t, uint64(1), sealed.Envelope.KeyVersion)

	// Owner opens.
	resp = postJSON(t, base+"/open", openRequest{PrivateKey: string(owner.Private)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	opened := decodeBody[openResponse](t, resp)
	assert.Equal(t, content, opened.Content)

	// Doctor cannot open yet.
	resp = postJSON(t, base+"/open", openRequest{PrivateKey: string(doctor.Private)})
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Grant, then the doctor can open.
	resp = postJSON(t, base+"/grant", grantRequest{
		RecipientID:        "doctor-1",
		RecipientPublicKey: string(doctor.Public),
		OwnerPrivateKey:    string(owner.Private),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	grant := decodeBody[interfaces.AccessGrant](t, resp)
	assert.Equal(t, uint64(1), grant.KeyVersion)

	resp = postJSON(t, base+"/open", openRequest{PrivateKey: string(doctor.Private)})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Rotate, dropping the doctor.
	resp = postJSON(t, base+"/rotate", rotateRequest{
		OwnerPublicKey:  string(owner.Public),
		OwnerPrivateKey: string(owner.Private),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := decodeBody[rotateResponse](t, resp)
	assert.Equal(t, uint64(2), rotated.Envelope.KeyVersion)
	assert.Nil(t, rotated.Partial)

	// The doctor's stale wrap no longer decrypts the current content.
	resp = postJSON(t, base+"/open", openRequest{PrivateKey: string(doctor.Private)})
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Revoke is idempotent over HTTP as well.
	for i := 0; i < 2; i++ {
		req, err := http.NewRequest(http.MethodDelete, base+"/grants/doctor-1", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestHandlerRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	owner, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	// Malformed record ref.
	resp := postJSON(t, ts.URL+"/api/records/zzzz/open", openRequest{PrivateKey: string(owner.Private)})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown record.
	ref := interfaces.ComputeRecordRef("patient-1", 404)
	resp = postJSON(t, fmt.Sprintf("%s/api/records/%s/open", ts.URL, ref), openRequest{PrivateKey: string(owner.Private)})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndDrainEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, tt := range []struct {
		path   string
		status int
	}{
		{"/livez", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/drain", http.StatusOK},
		{"/readyz", http.StatusServiceUnavailable},
		{"/undrain", http.StatusOK},
		{"/readyz", http.StatusOK},
	} {
		resp, err := http.Get(ts.URL + tt.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode, tt.path)
	}
}
