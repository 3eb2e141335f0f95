package certbootstrap

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	fullChainFile = "fullchain.pem"
	privKeyFile   = "privkey.pem"
)

type materialKind int

const (
	// materialNone: no usable certificate material. An existing but empty
	// live directory counts as none; the check looks for the key and chain
	// files, not the directory.
	materialNone materialKind = iota
	// materialDummy: a self-signed placeholder is installed.
	materialDummy
	// materialReal: CA-issued material is installed.
	materialReal
)

type material struct {
	Kind     materialKind
	NotAfter time.Time
}

// inspectMaterial classifies the certificate material in the live directory
// for a domain. Unreadable or unparseable material is treated as absent so a
// fresh placeholder replaces it.
func inspectMaterial(liveDir string) material {
	chain, err := os.ReadFile(filepath.Join(liveDir, fullChainFile))
	if err != nil || len(chain) == 0 {
		return material{Kind: materialNone}
	}
	key, err := os.ReadFile(filepath.Join(liveDir, privKeyFile))
	if err != nil || len(key) == 0 {
		return material{Kind: materialNone}
	}

	block, _ := pem.Decode(chain)
	if block == nil || block.Type != "CERTIFICATE" {
		return material{Kind: materialNone}
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return material{Kind: materialNone}
	}

	if isSelfSigned(cert) {
		return material{Kind: materialDummy, NotAfter: cert.NotAfter}
	}
	return material{Kind: materialReal, NotAfter: cert.NotAfter}
}

func isSelfSigned(cert *x509.Certificate) bool {
	if cert.Issuer.String() != cert.Subject.String() {
		return false
	}
	// Raw signature check: CheckSignatureFrom would reject the placeholder
	// for not being a CA.
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

// writeMaterial installs certificate material at the live path the proxy
// references. Chain world-readable, key owner-only.
func writeMaterial(liveDir string, certPEM, keyPEM []byte) error {
	if err := os.MkdirAll(liveDir, 0o755); err != nil {
		return fmt.Errorf("create live directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(liveDir, privKeyFile), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(liveDir, fullChainFile), certPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate chain: %w", err)
	}
	return nil
}
