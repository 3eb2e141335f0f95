package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warranty-register/deployctl/interfaces"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileBackendStoreFetchRoundTrip(t *testing.T) {
	b, err := NewFileBackend(t.TempDir(), testLog())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Store(ctx, "env-file", []byte("API_KEY=abc"), interfaces.SecretArtifact))

	data, err := b.Fetch(ctx, "env-file", interfaces.SecretArtifact)
	require.NoError(t, err)
	assert.Equal(t, "API_KEY=abc", string(data))
}

func TestFileBackendFetchMissingArtifact(t *testing.T) {
	b, err := NewFileBackend(t.TempDir(), testLog())
	require.NoError(t, err)

	_, err = b.Fetch(context.Background(), "nope", interfaces.ConfigArtifact)
	assert.ErrorIs(t, err, interfaces.ErrArtifactNotFound)
}

func TestFileBackendSecretPermissions(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, testLog())
	require.NoError(t, err)

	require.NoError(t, b.Store(context.Background(), "bundle", []byte("secret"), interfaces.SecretArtifact))

	info, err := os.Stat(filepath.Join(dir, "secrets", "bundle"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileBackendSeparatesKinds(t *testing.T) {
	b, err := NewFileBackend(t.TempDir(), testLog())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Store(ctx, "artifact", []byte("config"), interfaces.ConfigArtifact))
	require.NoError(t, b.Store(ctx, "artifact", []byte("secret"), interfaces.SecretArtifact))

	cfg, err := b.Fetch(ctx, "artifact", interfaces.ConfigArtifact)
	require.NoError(t, err)
	sec, err := b.Fetch(ctx, "artifact", interfaces.SecretArtifact)
	require.NoError(t, err)

	assert.Equal(t, "config", string(cfg))
	assert.Equal(t, "secret", string(sec))
}

func TestFileBackendAvailable(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, testLog())
	require.NoError(t, err)
	assert.True(t, b.Available(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.False(t, b.Available(context.Background()))
}
