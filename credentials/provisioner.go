package credentials

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/warranty-register/deployctl/interfaces"
)

// Keys of the generated configuration file. The key set matches what the
// warranty API and its compose definition consume at container start.
const (
	KeyDBUser         = "POSTGRES_USER"
	KeyDBPassword     = "POSTGRES_PASSWORD"
	KeyDBName         = "POSTGRES_DB"
	KeySecretKey      = "SECRET_KEY"
	KeyAPIKey         = "API_KEY"
	KeyAllowedOrigins = "ALLOWED_ORIGINS"
	KeyDebug          = "DEBUG"
	KeyDomainName     = "DOMAIN_NAME"
	KeyContactEmail   = "CERTBOT_EMAIL"
)

// Minimum entropy requirements for generated secrets. Database password and
// API key must be at least 32 alphanumeric characters, the signing key at
// least 64.
const (
	SecretLength     = 32
	SigningKeyLength = 64
)

const alphanumerics = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Provisioner generates a credential bundle for a deployment and persists it
// to the env file consumed by the container runtime.
type Provisioner struct {
	log *slog.Logger
}

// NewProvisioner creates a credential provisioner.
func NewProvisioner(log *slog.Logger) *Provisioner {
	return &Provisioner{log: log}
}

// Provision builds a fresh credential bundle for the target domain. All
// secrets come from the cryptographic random source; if that source fails the
// whole deployment must abort rather than fall back to weaker randomness.
func (p *Provisioner) Provision(ctx context.Context, target interfaces.DomainTarget) (interfaces.CredentialBundle, error) {
	dbPassword, err := randomAlphanumeric(SecretLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrRandomSourceUnavailable, err)
	}
	secretKey, err := randomAlphanumeric(SigningKeyLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrRandomSourceUnavailable, err)
	}
	apiKey, err := randomAlphanumeric(SecretLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrRandomSourceUnavailable, err)
	}

	bundle := interfaces.CredentialBundle{
		KeyDBUser:         "warranty_user",
		KeyDBPassword:     dbPassword,
		KeyDBName:         "warranty_db",
		KeySecretKey:      secretKey,
		KeyAPIKey:         apiKey,
		KeyAllowedOrigins: "https://" + target.Domain,
		KeyDebug:          "false",
		KeyDomainName:     target.Domain,
		KeyContactEmail:   target.Email,
	}

	p.log.Info("Generated credential bundle", "domain", target.Domain, "keys", len(bundle))
	return bundle, nil
}

// WriteFile persists the bundle as a key=value env file with owner-only
// permissions.
func WriteFile(path string, bundle interfaces.CredentialBundle) error {
	content, err := godotenv.Marshal(map[string]string(bundle))
	if err != nil {
		return fmt.Errorf("marshal env file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create env file directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content+"\n"), 0o600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// ReadFile loads a previously written env file back into a bundle. The
// key-value pairs round-trip without transformation or loss.
func ReadFile(path string) (interfaces.CredentialBundle, error) {
	pairs, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return interfaces.CredentialBundle(pairs), nil
}

// Exists reports whether an env file is already present and parseable at
// path. Re-running a deployment reuses existing credentials instead of
// rotating them under running services.
func Exists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	_, err := godotenv.Read(path)
	return err == nil
}

func randomAlphanumeric(length int) (string, error) {
	max := big.NewInt(int64(len(alphanumerics)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphanumerics[n.Int64()]
	}
	return string(out), nil
}
