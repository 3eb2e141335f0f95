package interfaces

import "context"

// ArtifactKind indicates the storage namespace for a deployment artifact.
type ArtifactKind int

const (
	// ConfigArtifact for non-sensitive configuration data.
	ConfigArtifact ArtifactKind = iota
	// SecretArtifact for generated credentials and key material.
	SecretArtifact
)

// String returns the kind name.
func (k ArtifactKind) String() string {
	switch k {
	case ConfigArtifact:
		return "config"
	case SecretArtifact:
		return "secret"
	default:
		return "unknown"
	}
}

// StorageBackend archives named deployment artifacts. Backends are addressed
// by URI (file://, s3://, vault://) and created through the storage factory.
type StorageBackend interface {
	// Store saves data under the given artifact name.
	Store(ctx context.Context, name string, data []byte, kind ArtifactKind) error

	// Fetch retrieves a previously stored artifact. Returns
	// ErrArtifactNotFound if the artifact does not exist.
	Fetch(ctx context.Context, name string, kind ArtifactKind) ([]byte, error)

	// Available checks whether the backend is currently reachable.
	Available(ctx context.Context) bool

	// Name returns a unique identifier for this storage backend.
	Name() string

	// LocationURI returns the URI that identifies this storage backend.
	LocationURI() string
}
