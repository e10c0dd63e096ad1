package interfaces

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Lazizjon-web-dev/medchain/cryptoutils"
)

// ContentID is a 32-byte SHA-256 hash uniquely identifying a stored blob.
// The blob store is content-addressed: the identifier of a blob is always
// the hash of the bytes stored, so stored content is immutable.
type ContentID [32]byte

// NewContentIDFromBytes creates a content ID from a 32-byte slice.
func NewContentIDFromBytes(source []byte) (ContentID, error) {
	if len(source) != 32 {
		return ContentID{}, errors.New("invalid ContentID conversion from bytes: incorrect length")
	}

	var hash [32]byte
	copy(hash[:], source)
	return ContentID(hash), nil
}

// NewContentIDFromHex creates a content ID from a hex string.
func NewContentIDFromHex(source string) (ContentID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return ContentID{}, errors.New("invalid content ID length: hex string must be 64 characters")
	}

	hashBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var hash [32]byte
	copy(hash[:], hashBytes)
	return ContentID(hash), nil
}

// ComputeID calculates the content ID for data.
func ComputeID(data []byte) ContentID {
	return ContentID(cryptoutils.Hash(data))
}

// String returns the hex representation.
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 32-byte hash.
func (id ContentID) Bytes() []byte {
	return id[:]
}

// Equal compares two content IDs.
func (id ContentID) Equal(other ContentID) bool {
	return bytes.Equal(id[:], other[:])
}

// MarshalJSON encodes the content ID as a hex string.
func (id ContentID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the content ID from a hex string.
func (id *ContentID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := NewContentIDFromHex(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ContentType indicates the storage namespace a blob belongs to.
type ContentType int

const (
	// DocumentType for encrypted medical document bodies.
	DocumentType ContentType = iota
	// AttachmentType for encrypted supplementary files (scans, images).
	AttachmentType
)

// String returns the type name.
func (ct ContentType) String() string {
	switch ct {
	case DocumentType:
		return "document"
	case AttachmentType:
		return "attachment"
	default:
		return "unknown"
	}
}

var (
	// ErrContentNotFound is returned when requested content cannot be found
	// in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not
	// accessible, due to network issues, authentication failures, or
	// service outages. Retryable.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is
	// malformed or uses an unsupported scheme.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackendLocation is a URI identifying a storage backend, in the
// form [scheme]://[auth@]host[:port][/path][?params].
type StorageBackendLocation string

// StorageBackend provides content-addressed blob storage for encrypted
// document bodies. Only ciphertext ever reaches a backend.
type StorageBackend interface {
	// Fetch retrieves data by content ID and type. Returns
	// ErrContentNotFound if the content does not exist.
	Fetch(ctx context.Context, id ContentID, contentType ContentType) ([]byte, error)

	// Store saves data and returns its content ID.
	Store(ctx context.Context, data []byte, contentType ContentType) (ContentID, error)

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend.
	LocationURI() string
}

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory interface {
	// StorageBackendFor creates a backend from a URI.
	// Supports file://, ipfs://, s3://, vault://
	StorageBackendFor(locationURI StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates an aggregated storage backend that
	// replicates stores and falls back across fetches.
	CreateMultiBackend(locationURIs []StorageBackendLocation) (StorageBackend, error)
}
