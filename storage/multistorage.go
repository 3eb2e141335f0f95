package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/warranty-register/deployctl/interfaces"
)

// MultiBackend aggregates several archive backends for redundancy. Store
// writes to every available backend and succeeds if at least one write does;
// Fetch returns the first hit.
type MultiBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiBackend creates a multi-backend over the given backends.
func NewMultiBackend(backends []interfaces.StorageBackend, log *slog.Logger) *MultiBackend {
	return &MultiBackend{backends: backends, log: log}
}

// Store writes the artifact to all available backends.
func (m *MultiBackend) Store(ctx context.Context, name string, data []byte, kind interfaces.ArtifactKind) error {
	var stored int
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Warn("Skipping unavailable backend", "backend", backend.Name())
			continue
		}
		if err := backend.Store(ctx, name, data, kind); err != nil {
			m.log.Warn("Failed to store artifact",
				"backend", backend.Name(),
				"artifact", name,
				"err", err)
			continue
		}
		stored++
	}

	if stored == 0 {
		return fmt.Errorf("artifact %s not stored to any backend", name)
	}
	return nil
}

// Fetch returns the artifact from the first backend that has it.
func (m *MultiBackend) Fetch(ctx context.Context, name string, kind interfaces.ArtifactKind) ([]byte, error) {
	for _, backend := range m.backends {
		data, err := backend.Fetch(ctx, name, kind)
		if err == nil {
			return data, nil
		}
		m.log.Debug("Artifact not in backend",
			"backend", backend.Name(),
			"artifact", name,
			"err", err)
	}
	return nil, interfaces.ErrArtifactNotFound
}

// Available reports whether any member backend is available.
func (m *MultiBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns a unique identifier for this storage backend.
func (m *MultiBackend) Name() string {
	names := make([]string, len(m.backends))
	for i, backend := range m.backends {
		names[i] = backend.Name()
	}
	return "multi[" + strings.Join(names, ",") + "]"
}

// LocationURI returns the URIs of all member backends.
func (m *MultiBackend) LocationURI() string {
	uris := make([]string, len(m.backends))
	for i, backend := range m.backends {
		uris[i] = backend.LocationURI()
	}
	return strings.Join(uris, ",")
}
