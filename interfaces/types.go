// Package interfaces defines the core interfaces and types for the deployment
// orchestrator. It provides the contract between different components without
// implementation details.
package interfaces

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across components.
var (
	// ErrDomainRequired indicates the mandatory domain argument was omitted.
	ErrDomainRequired = errors.New("domain name is required")

	// ErrArtifactNotFound indicates the requested artifact does not exist in
	// a storage backend.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrRandomSourceUnavailable indicates the cryptographic random source
	// failed. Credential generation must never fall back to a weaker source.
	ErrRandomSourceUnavailable = errors.New("cryptographic random source unavailable")

	// ErrDeploymentLocked indicates another deployment currently holds the
	// exclusive lock for the state directory.
	ErrDeploymentLocked = errors.New("another deployment is already running")
)

// DomainTarget identifies the domain a deployment provisions, together with
// the ACME contact email. It is immutable for the duration of a run.
type DomainTarget struct {
	Domain string
	Email  string
}

// NewDomainTarget validates the domain argument and applies the contact email
// default (admin@<domain>) when no email is given.
func NewDomainTarget(domain, email string) (DomainTarget, error) {
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return DomainTarget{}, ErrDomainRequired
	}
	if strings.ContainsAny(domain, " /\\") {
		return DomainTarget{}, fmt.Errorf("invalid domain name: %q", domain)
	}

	email = strings.TrimSpace(email)
	if email == "" {
		email = "admin@" + domain
	}

	return DomainTarget{Domain: domain, Email: email}, nil
}

// CertificateState tracks the certificate bootstrap lifecycle for a domain.
type CertificateState int

const (
	// CertAbsent means no usable certificate material exists for the domain.
	CertAbsent CertificateState = iota
	// CertDummy means a short-lived self-signed placeholder is in place so
	// the proxy can start and serve ACME challenges.
	CertDummy
	// CertPending means a real issuance request is in flight.
	CertPending
	// CertValid means trusted certificate material is installed and the
	// proxy has been reloaded to serve it.
	CertValid
	// CertFailed means an issuance step failed; the placeholder (if any)
	// remains in service.
	CertFailed
)

// String returns the state name.
func (s CertificateState) String() string {
	switch s {
	case CertAbsent:
		return "absent"
	case CertDummy:
		return "dummy"
	case CertPending:
		return "pending"
	case CertValid:
		return "valid"
	case CertFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ServiceSet names the long-running services of a deployment in dependency
// order: database, then API, then reverse proxy. The compose manager owns the
// set; the certificate bootstrapper only ever starts or reloads the proxy.
type ServiceSet struct {
	Database string
	API      string
	Proxy    string
}

// DefaultServiceSet matches the service names in the compose definition.
func DefaultServiceSet() ServiceSet {
	return ServiceSet{Database: "db", API: "api", Proxy: "nginx"}
}

// InOrder returns the service names in dependency order.
func (s ServiceSet) InOrder() []string {
	return []string{s.Database, s.API, s.Proxy}
}

// Core returns the services started before TLS bootstrap (everything but the
// proxy).
func (s ServiceSet) Core() []string {
	return []string{s.Database, s.API}
}

// Contains reports whether name is a member of the set.
func (s ServiceSet) Contains(name string) bool {
	return name == s.Database || name == s.API || name == s.Proxy
}

// CredentialBundle holds the generated secrets and derived configuration
// values a deployment writes once and every container reads at start.
type CredentialBundle map[string]string

// Clone returns an independent copy of the bundle.
func (b CredentialBundle) Clone() CredentialBundle {
	out := make(CredentialBundle, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Get returns the value for key, or the empty string when unset.
func (b CredentialBundle) Get(key string) string {
	return b[key]
}

// ComposeRuntime manages a fixed set of named services through a declarative
// compose definition. Start on an already-running service is a no-op at the
// runtime level; the orchestrator does not track service state itself.
type ComposeRuntime interface {
	// Start ensures the named services are running, building images if
	// needed. Any build or start failure is fatal to the deployment.
	Start(ctx context.Context, names ...string) error

	// Stop stops the named services without removing them.
	Stop(ctx context.Context, names ...string) error

	// Reload sends a hot-reload signal to a running service without
	// restarting it, so in-flight connections are preserved.
	Reload(ctx context.Context, name string) error

	// Exec runs a one-off command inside a running service's context and
	// returns its combined output.
	Exec(ctx context.Context, name string, cmd ...string) ([]byte, error)
}

// IssuanceRequest carries everything the certificate authority client needs
// for a webroot-mode issuance.
type IssuanceRequest struct {
	Target      DomainTarget
	WebrootPath string
}

// IssuedCertificate is the PEM material produced by a successful issuance.
type IssuedCertificate struct {
	// FullChainPEM is the leaf certificate with the issuer chain appended.
	FullChainPEM []byte
	// PrivateKeyPEM is the private key matching the leaf certificate.
	PrivateKeyPEM []byte
}

// CertificateIssuer performs the domain-validation handshake with an external
// certificate authority. Implementations are expected to be webroot-based:
// they place challenge files under the request's webroot path and rely on the
// already-running proxy to serve them.
type CertificateIssuer interface {
	Issue(ctx context.Context, req IssuanceRequest) (*IssuedCertificate, error)
}
