package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/warranty-register/deployctl/interfaces"
)

// VaultBackend archives deployment artifacts in HashiCorp Vault's KV v2
// secrets engine. The natural home for the generated credential bundle:
// secrets leave the deployment host without touching object storage.
//
// Authentication follows the standard Vault environment (VAULT_TOKEN et al).
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a Vault archive backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount (e.g. "deployments/warranty")
//   - log: structured logger for operational insights
func NewVaultBackend(address, mountPath, dataPath string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	if address != "" {
		config.Address = address
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(config.Address, "https://"), mountPath, dataPath),
	}, nil
}

// Store writes an artifact as a KV v2 secret version.
func (b *VaultBackend) Store(ctx context.Context, name string, data []byte, kind interfaces.ArtifactKind) error {
	secretPath := b.secretPath(name, kind)

	_, err := b.client.Logical().WriteWithContext(ctx, secretPath, map[string]interface{}{
		"data": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(data),
			"kind":    kind.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write artifact to Vault: %w", err)
	}

	b.log.Debug("Stored artifact in Vault",
		slog.String("path", secretPath),
		slog.Int("size", len(data)))
	return nil
}

// Fetch reads an artifact back from the KV v2 engine. Returns
// ErrArtifactNotFound for missing or malformed secrets.
func (b *VaultBackend) Fetch(ctx context.Context, name string, kind interfaces.ArtifactKind) ([]byte, error) {
	secretPath := b.secretPath(name, kind)

	secret, err := b.client.Logical().ReadWithContext(ctx, secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrArtifactNotFound
	}

	inner, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, interfaces.ErrArtifactNotFound
	}
	encoded, ok := inner["content"].(string)
	if !ok {
		return nil, interfaces.ErrArtifactNotFound
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifact content: %w", err)
	}

	b.log.Debug("Fetched artifact from Vault",
		slog.String("path", secretPath),
		slog.Int("size", len(data)))
	return data, nil
}

// Available checks Vault health.
func (b *VaultBackend) Available(ctx context.Context) bool {
	health, err := b.client.Sys().HealthWithContext(ctx)
	if err != nil {
		b.log.Debug("Vault backend unavailable", "err", err)
		return false
	}
	return health.Initialized && !health.Sealed
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s", b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) secretPath(name string, kind interfaces.ArtifactKind) string {
	return fmt.Sprintf("%s/data/%s/%s/%s", b.mountPath, b.dataPath, kind.String()+"s", name)
}
