package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Lazizjon-web-dev/medchain/interfaces"
)

// Factory creates storage backends from location URIs and assembles
// multi-backend configurations for redundant storage.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a storage backend factory.
func NewFactory(log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{log: log}
}

// StorageBackendFor creates a storage backend from a location URI of the
// form [scheme]://[auth@]host[:port][/path][?params].
//
// Supported schemes:
//   - file:// - local filesystem storage
//   - ipfs:// - IPFS node storage
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2 storage
func (f *Factory) StorageBackendFor(locationURI interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	u, err := url.Parse(string(locationURI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return f.createFileBackend(u)
	case "ipfs":
		return f.createIPFSBackend(u)
	case "s3":
		return f.createS3Backend(u)
	case "vault":
		return f.createVaultBackend(u)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiBackend creates an aggregated backend from a list of location
// URIs. Invalid URIs are skipped with a warning; at least one backend must
// be created.
func (f *Factory) CreateMultiBackend(locationURIs []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locationURIs))

	for _, uri := range locationURIs {
		backend, err := f.StorageBackendFor(uri)
		if err != nil {
			f.log.Warn("Failed to create storage backend",
				slog.String("location_uri", string(uri)),
				slog.Any("error", err))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiStorageBackend(backends, f.log), nil
}

// createFileBackend handles file:///absolute/path URIs.
func (f *Factory) createFileBackend(u *url.URL) (interfaces.StorageBackend, error) {
	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}

	return NewFileBackend(path, f.log)
}

// createIPFSBackend handles ipfs://host:port/?timeout=30s URIs.
func (f *Factory) createIPFSBackend(u *url.URL) (interfaces.StorageBackend, error) {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5001" // default IPFS API port
	}

	timeout := u.Query().Get("timeout")
	if timeout == "" {
		timeout = "30s"
	}

	return NewIPFSBackend(host, port, timeout, f.log)
}

// createS3Backend handles
// s3://[ACCESS_KEY:SECRET_KEY@]bucket/path/?region=us-west-2&endpoint=custom.s3.com
// URIs.
func (f *Factory) createS3Backend(u *url.URL) (interfaces.StorageBackend, error) {
	bucketName := u.Host
	prefix := strings.TrimPrefix(u.Path, "/")

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Backend(bucketName, prefix, region, endpoint, accessKey, secretKey, f.log)
}

// createVaultBackend handles vault://host:port/mount/path?token=... URIs.
// The token may also come from the VAULT_TOKEN environment variable, which
// the Vault client reads by default.
func (f *Factory) createVaultBackend(u *url.URL) (interfaces.StorageBackend, error) {
	pathParts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(pathParts) < 2 {
		return nil, fmt.Errorf("%w: vault URI must include mount and data path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if u.Query().Get("insecure") == "true" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, u.Host)

	return NewVaultBackend(address, pathParts[0], pathParts[1], u.Query().Get("token"), f.log)
}
