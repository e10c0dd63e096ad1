package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Lazizjon-web-dev/medchain/cryptoutils"
	"github.com/Lazizjon-web-dev/medchain/interfaces"
	"github.com/Lazizjon-web-dev/medchain/keymgmt"
)

// Handler translates the HTTP surface into key management service calls.
// Private keys appearing in request bodies are caller-held material passed
// through for one operation; the handler never persists them.
type Handler struct {
	service *keymgmt.Service
	log     *slog.Logger
}

// NewHandler creates an API handler over the key management service.
func NewHandler(service *keymgmt.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

type sealRequest struct {
	Content        []byte            `json:"content"`
	OwnerPublicKey string            `json:"owner_public_key"`
	Recipients     map[string]string `json:"recipients,omitempty"`
}

type sealResponse struct {
	Envelope interfaces.DocumentEnvelope                        `json:"envelope"`
	Grants   map[interfaces.PrincipalID]interfaces.AccessGrant `json:"grants"`
}

// HandleSeal seals a new record from plaintext content.
func (h *Handler) HandleSeal(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.recordRef(w, r)
	if !ok {
		return
	}

	var req sealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	recipients := make(map[interfaces.PrincipalID]interfaces.PublicKey, len(req.Recipients))
	for principal, pub := range req.Recipients {
		recipients[interfaces.PrincipalID(principal)] = interfaces.PublicKey(pub)
	}

	doc, grants, err := h.service.SealNew(r.Context(), ref, req.Content,
		interfaces.PublicKey(req.OwnerPublicKey), recipients)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, sealResponse{Envelope: doc, Grants: grants})
}

type openRequest struct {
	PrivateKey string `json:"private_key"`
}

type openResponse struct {
	Content []byte `json:"content"`
}

// HandleOpen recovers a record's plaintext for the given private key.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.recordRef(w, r)
	if !ok {
		return
	}

	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	content, err := h.service.Open(r.Context(), ref, interfaces.PrivateKey(req.PrivateKey))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, openResponse{Content: content})
}

type grantRequest struct {
	RecipientID        string `json:"recipient_id"`
	RecipientPublicKey string `json:"recipient_public_key"`
	OwnerPrivateKey    string `json:"owner_private_key"`
	TTLSeconds         int64  `json:"ttl_seconds,omitempty"`
}

// HandleGrant authorizes a new recipient without rotating the record.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.recordRef(w, r)
	if !ok {
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.RecipientID == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("recipient_id is required"))
		return
	}

	grant, err := h.service.Grant(r.Context(), ref,
		interfaces.PrincipalID(req.RecipientID),
		interfaces.PublicKey(req.RecipientPublicKey),
		interfaces.PrivateKey(req.OwnerPrivateKey),
		time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, grant)
}

type rotateRequest struct {
	NewContent      []byte            `json:"new_content,omitempty"`
	Retained        map[string]string `json:"retained,omitempty"`
	OwnerPublicKey  string            `json:"owner_public_key"`
	OwnerPrivateKey string            `json:"owner_private_key"`
}

type rotateResponse struct {
	Envelope interfaces.DocumentEnvelope                        `json:"envelope"`
	Grants   map[interfaces.PrincipalID]interfaces.AccessGrant `json:"grants"`

	// Partial is set when propagation did not fully converge; the record
	// is already on the new key version and the failed recipients should
	// be retried.
	Partial *partialStatus `json:"partial,omitempty"`
}

type partialStatus struct {
	KeyVersion uint64                   `json:"key_version"`
	Succeeded  []interfaces.PrincipalID `json:"succeeded"`
	Failed     []interfaces.PrincipalID `json:"failed"`
}

// HandleRotate advances a record to a fresh key generation. A rotation that
// committed but did not fully propagate returns 202 Accepted with the
// partial status rather than an error.
func (h *Handler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.recordRef(w, r)
	if !ok {
		return
	}

	var req rotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	retained := make(map[interfaces.PrincipalID]interfaces.PublicKey, len(req.Retained))
	for principal, pub := range req.Retained {
		retained[interfaces.PrincipalID(principal)] = interfaces.PublicKey(pub)
	}

	result, err := h.service.Rotate(r.Context(), keymgmt.RotationRequest{
		RecordRef:  ref,
		NewContent: req.NewContent,
		Retained:   retained,
		Owner: interfaces.KeyPair{
			Public:  interfaces.PublicKey(req.OwnerPublicKey),
			Private: interfaces.PrivateKey(req.OwnerPrivateKey),
		},
	})

	var partial *keymgmt.PartialRotationError
	if errors.As(err, &partial) {
		h.writeJSON(w, http.StatusAccepted, rotateResponse{
			Envelope: result.Envelope,
			Grants:   result.Grants,
			Partial: &partialStatus{
				KeyVersion: partial.KeyVersion,
				Succeeded:  partial.Succeeded,
				Failed:     partial.Failed,
			},
		})
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, rotateResponse{Envelope: result.Envelope, Grants: result.Grants})
}

// HandleRevoke removes a recipient's grant. Revoking an absent grant
// succeeds, matching the service's idempotence.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.recordRef(w, r)
	if !ok {
		return
	}

	recipient := chi.URLParam(r, "recipient_id")
	if recipient == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("recipient_id is required"))
		return
	}

	if err := h.service.Revoke(r.Context(), ref, interfaces.PrincipalID(recipient)); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) recordRef(w http.ResponseWriter, r *http.Request) (interfaces.RecordRef, bool) {
	ref, err := interfaces.NewRecordRefFromHex(chi.URLParam(r, "record_ref"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return interfaces.RecordRef{}, false
	}
	return ref, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interfaces.ErrRecordNotFound) || errors.Is(err, interfaces.ErrContentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, keymgmt.ErrNoAccess) || errors.Is(err, keymgmt.ErrGrantExpired) ||
		errors.Is(err, cryptoutils.ErrAuthentication) || errors.Is(err, cryptoutils.ErrAsymmetricCrypto):
		status = http.StatusForbidden
	case errors.Is(err, interfaces.ErrLedgerUnavailable) || errors.Is(err, interfaces.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
	}
	h.writeError(w, status, err)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", slog.Any("error", err))
	} else {
		h.log.Debug("Request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", slog.Any("error", err))
	}
}
