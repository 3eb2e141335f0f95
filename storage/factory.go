package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/warranty-register/deployctl/interfaces"
)

// Factory creates archive backends from URI strings and aggregates
// multi-backend configurations for redundant storage.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a backend factory.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// BackendFor creates an archive backend from a location URI.
//
// Supported schemes:
//   - file:///var/lib/deployctl/archive/
//   - s3://bucket-name/prefix/?region=us-west-2&endpoint=...
//   - vault://vault.example.com:8200/secret/deployments
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *Factory) BackendFor(locationURI string) (interfaces.StorageBackend, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid location URI %q: %w", locationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return f.createFileBackend(u)
	case "s3":
		return f.createS3Backend(u)
	case "vault":
		return f.createVaultBackend(u)
	default:
		return nil, fmt.Errorf("unsupported backend scheme: %s", u.Scheme)
	}
}

// MultiBackendFor creates a multi-backend from a list of location URIs,
// skipping URIs that fail to produce a backend. Returns an error only when
// no valid backend could be created.
func (f *Factory) MultiBackendFor(locationURIs []string) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locationURIs))

	for _, uri := range locationURIs {
		backend, err := f.BackendFor(uri)
		if err != nil {
			f.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", uri))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	if len(backends) == 1 {
		return backends[0], nil
	}
	return NewMultiBackend(backends, f.log), nil
}

func (f *Factory) createFileBackend(u *url.URL) (interfaces.StorageBackend, error) {
	path := u.Path
	if u.Host != "" {
		// Relative form like file://archive/dir
		path = u.Host + u.Path
	}
	if path == "" {
		return nil, fmt.Errorf("file URI missing path")
	}
	return NewFileBackend(path, f.log)
}

// createS3Backend creates an S3 archive backend.
// URI format: s3://[accessKey:secretKey@]bucket/prefix?region=...&endpoint=...
func (f *Factory) createS3Backend(u *url.URL) (interfaces.StorageBackend, error) {
	bucket := u.Host
	if bucket == "" {
		return nil, fmt.Errorf("s3 URI missing bucket name")
	}

	prefix := strings.Trim(u.Path, "/")
	region := u.Query().Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := u.Query().Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Backend(bucket, prefix, region, endpoint, accessKey, secretKey, f.log)
}

// createVaultBackend creates a Vault archive backend.
// URI format: vault://host:port/mountPath/dataPath...
func (f *Factory) createVaultBackend(u *url.URL) (interfaces.StorageBackend, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("vault URI missing host")
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("vault URI must include mount and data path")
	}

	scheme := "https"
	if u.Query().Get("insecure") == "true" {
		scheme = "http"
	}

	return NewVaultBackend(fmt.Sprintf("%s://%s", scheme, u.Host), parts[0], parts[1], f.log)
}
