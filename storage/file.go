package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/warranty-register/deployctl/interfaces"
)

// FileBackend archives deployment artifacts on the local file system.
// Artifacts are stored in a directory structure organized by kind.
type FileBackend struct {
	baseDir     string
	prefixes    map[interfaces.ArtifactKind]string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a file archive backend rooted at baseDir, creating
// the kind subdirectories if they don't exist.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	prefixes := map[interfaces.ArtifactKind]string{
		interfaces.ConfigArtifact: "configs",
		interfaces.SecretArtifact: "secrets",
	}
	for kind, prefix := range prefixes {
		mode := os.FileMode(0o755)
		if kind == interfaces.SecretArtifact {
			mode = 0o700
		}
		if err := os.MkdirAll(filepath.Join(baseDir, prefix), mode); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", prefix, err)
		}
	}

	return &FileBackend{
		baseDir:     baseDir,
		prefixes:    prefixes,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Store saves an artifact to the file system. Secrets are written owner-only.
func (b *FileBackend) Store(ctx context.Context, name string, data []byte, kind interfaces.ArtifactKind) error {
	path := b.artifactPath(name, kind)

	mode := os.FileMode(0o644)
	if kind == interfaces.SecretArtifact {
		mode = 0o600
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	b.log.Debug("Stored artifact in file",
		slog.String("path", path),
		slog.Int("size", len(data)))
	return nil
}

// Fetch retrieves an artifact by name and kind. Returns ErrArtifactNotFound
// if the file doesn't exist.
func (b *FileBackend) Fetch(ctx context.Context, name string, kind interfaces.ArtifactKind) ([]byte, error) {
	path := b.artifactPath(name, kind)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, interfaces.ErrArtifactNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	b.log.Debug("Fetched artifact from file",
		slog.String("path", path),
		slog.Int("size", len(data)))
	return data, nil
}

// Available checks whether the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) artifactPath(name string, kind interfaces.ArtifactKind) string {
	return filepath.Join(b.baseDir, b.prefixes[kind], filepath.Base(name))
}
