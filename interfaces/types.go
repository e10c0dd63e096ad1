package interfaces

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lazizjon-web-dev/medchain/cryptoutils"
)

type PublicKey = cryptoutils.PublicKey
type PrivateKey = cryptoutils.PrivateKey
type KeyPair = cryptoutils.KeyPair

// RecordRef is a 32-byte identifier of a medical record's ledger entry.
type RecordRef [32]byte

// NewRecordRefFromBytes creates a record reference from raw bytes.
func NewRecordRefFromBytes(source []byte) (RecordRef, error) {
	if len(source) != 32 {
		return RecordRef{}, errors.New("invalid record ref length: must be 32 bytes")
	}

	var ref RecordRef
	copy(ref[:], source)
	return ref, nil
}

// NewRecordRefFromHex creates a record reference from a hex string.
func NewRecordRefFromHex(source string) (RecordRef, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return RecordRef{}, errors.New("invalid record ref length: hex string must be 64 characters")
	}

	refBytes, err := hex.DecodeString(clean)
	if err != nil {
		return RecordRef{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var ref RecordRef
	copy(ref[:], refBytes)
	return ref, nil
}

// ComputeRecordRef derives a record reference for an owner and record
// sequence number, mirroring the ledger's per-owner record addressing.
func ComputeRecordRef(owner PrincipalID, recordID uint64) RecordRef {
	return RecordRef(cryptoutils.Hash(fmt.Appendf([]byte("record/"), "%s/%d", owner, recordID)))
}

// String returns the hex representation.
func (ref RecordRef) String() string {
	return hex.EncodeToString(ref[:])
}

// Bytes returns the raw 32-byte reference.
func (ref RecordRef) Bytes() []byte {
	return ref[:]
}

// Equal compares two record references.
func (ref RecordRef) Equal(other RecordRef) bool {
	return ref == other
}

// MarshalJSON encodes the reference as a hex string.
func (ref RecordRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(ref.String())
}

// UnmarshalJSON decodes the reference from a hex string.
func (ref *RecordRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := NewRecordRefFromHex(s)
	if err != nil {
		return err
	}
	*ref = parsed
	return nil
}

// PrincipalID identifies a principal (record owner or secondary recipient)
// on the authorization ledger. It is opaque to the core.
type PrincipalID string

// String returns the identifier as a string.
func (id PrincipalID) String() string {
	return string(id)
}

// KeyID identifies a recipient public key: the hex-encoded SHA-256
// fingerprint of the key's DER encoding.
type KeyID string

// NewKeyID computes the key identifier for a public key.
func NewKeyID(pub PublicKey) (KeyID, error) {
	fp, err := pub.Fingerprint()
	if err != nil {
		return "", fmt.Errorf("invalid public key: %w", err)
	}
	return KeyID(fp), nil
}

// String returns the key identifier as a string.
func (id KeyID) String() string {
	return string(id)
}

// CipherAlgorithm names the authenticated cipher protecting a document.
type CipherAlgorithm int

const (
	// AES128GCM is AES-128 in Galois/Counter Mode.
	AES128GCM CipherAlgorithm = iota
)

// String returns the algorithm name.
func (a CipherAlgorithm) String() string {
	switch a {
	case AES128GCM:
		return "aes-128-gcm"
	default:
		return "unknown"
	}
}

// WrappedKey is a document encryption key (DEK) encrypted under one
// recipient's asymmetric public key. All wrapped keys attached to one
// envelope generation decrypt to the same DEK.
type WrappedKey struct {
	// RecipientKeyID identifies the public key the DEK is wrapped under.
	RecipientKeyID KeyID `json:"recipient_key_id"`

	// Ciphertext is the OAEP-encrypted DEK.
	Ciphertext []byte `json:"ciphertext"`
}

// DocumentEnvelope is a record's primary ledger entry: the reference to its
// encrypted content plus the owner's wrapped key. Envelopes are superseded,
// never mutated in place; a completed rotation commits a new envelope with
// the key version advanced by one.
type DocumentEnvelope struct {
	// RecordRef identifies the record this envelope belongs to.
	RecordRef RecordRef `json:"record_ref"`

	// ContentRef addresses the encrypted document body in the blob store.
	ContentRef ContentID `json:"content_ref"`

	// OwnerWrappedKey is the DEK wrapped under the owner's public key.
	OwnerWrappedKey WrappedKey `json:"owner_wrapped_key"`

	// Nonce is the AES-GCM nonce the content was sealed with.
	Nonce []byte `json:"nonce"`

	// Algorithm names the symmetric cipher in use.
	Algorithm CipherAlgorithm `json:"algorithm"`

	// KeyVersion is the DEK generation. It advances only when a rotation's
	// owner commit succeeds; a partially completed rotation never exposes a
	// new generation to any recipient before the owner holds it.
	KeyVersion uint64 `json:"key_version"`

	// CreatedAt is when this envelope generation was committed.
	CreatedAt time.Time `json:"created_at"`
}

// AccessGrant authorizes one secondary recipient to read one record. It is
// created by an explicit grant action, has its wrapped key replaced by
// rotation, and is removed by revocation or expiry.
type AccessGrant struct {
	RecordRef   RecordRef   `json:"record_ref"`
	RecipientID PrincipalID `json:"recipient_id"`

	// WrappedKey is the DEK wrapped under the recipient's public key.
	WrappedKey WrappedKey `json:"wrapped_key"`

	// KeyVersion is the DEK generation this grant's wrapped key belongs to.
	KeyVersion uint64 `json:"key_version"`

	GrantedAt time.Time `json:"granted_at"`

	// ExpiresAt bounds the grant's lifetime. The zero value means the grant
	// never expires.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the grant has expired as of now.
func (g *AccessGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && now.After(g.ExpiresAt)
}
