package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryCreatesFileBackend(t *testing.T) {
	f := NewFactory(testLog())

	backend, err := f.BackendFor("file://" + t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, backend.Name(), "file-")
}

func TestFactoryCreatesS3Backend(t *testing.T) {
	f := NewFactory(testLog())

	backend, err := f.BackendFor("s3://my-bucket/deployctl?region=eu-central-1")
	require.NoError(t, err)
	assert.Equal(t, "s3-my-bucket", backend.Name())
	assert.Contains(t, backend.LocationURI(), "region=eu-central-1")
}

func TestFactoryCreatesVaultBackend(t *testing.T) {
	f := NewFactory(testLog())

	backend, err := f.BackendFor("vault://vault.example.com:8200/secret/deployments/warranty")
	require.NoError(t, err)
	assert.Equal(t, "vault-deployments/warranty", backend.Name())
}

func TestFactoryRejectsUnknownScheme(t *testing.T) {
	f := NewFactory(testLog())

	_, err := f.BackendFor("ftp://host/path")
	assert.Error(t, err)
}

func TestFactoryRejectsVaultURIWithoutDataPath(t *testing.T) {
	f := NewFactory(testLog())

	_, err := f.BackendFor("vault://vault.example.com:8200/secret")
	assert.Error(t, err)
}

func TestMultiBackendForSkipsInvalidURIs(t *testing.T) {
	f := NewFactory(testLog())

	backend, err := f.MultiBackendFor([]string{
		"ftp://bad",
		"file://" + t.TempDir(),
	})
	require.NoError(t, err)
	assert.Contains(t, backend.Name(), "file-")
}

func TestMultiBackendForFailsWhenNothingValid(t *testing.T) {
	f := NewFactory(testLog())

	_, err := f.MultiBackendFor([]string{"ftp://bad"})
	assert.Error(t, err)
}
