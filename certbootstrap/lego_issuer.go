package certbootstrap

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/providers/http/webroot"
	"github.com/go-acme/lego/v4/registration"
	"github.com/warranty-register/deployctl/interfaces"
)

// LegoConfig holds settings for the ACME issuance client.
type LegoConfig struct {
	// DirectoryURL is the ACME directory. Defaults to Let's Encrypt
	// production; use lego.LEDirectoryStaging while testing to stay clear
	// of production rate limits.
	DirectoryURL string

	// AccountKeyPath persists the ACME account key between runs so the
	// deployment keeps a single CA account. Empty means an ephemeral key
	// per run.
	AccountKeyPath string

	// KeyType for issued certificate keys. Defaults to EC256.
	KeyType certcrypto.KeyType
}

// LegoIssuer obtains certificates from an ACME CA in webroot mode: challenge
// files are placed under the webroot the already-running proxy serves at
// /.well-known/acme-challenge/, and the CA validates over plain HTTP.
type LegoIssuer struct {
	cfg LegoConfig
	log *slog.Logger
}

// NewLegoIssuer creates an issuer for the given ACME configuration.
func NewLegoIssuer(cfg LegoConfig, log *slog.Logger) *LegoIssuer {
	if cfg.DirectoryURL == "" {
		cfg.DirectoryURL = lego.LEDirectoryProduction
	}
	if cfg.KeyType == "" {
		cfg.KeyType = certcrypto.EC256
	}
	return &LegoIssuer{cfg: cfg, log: log}
}

// Issue performs the webroot-mode issuance for the request's domain.
func (i *LegoIssuer) Issue(ctx context.Context, req interfaces.IssuanceRequest) (*interfaces.IssuedCertificate, error) {
	accountKey, err := i.loadOrCreateAccountKey()
	if err != nil {
		return nil, err
	}

	user := &acmeUser{email: req.Target.Email, key: accountKey}

	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = i.cfg.DirectoryURL
	legoCfg.Certificate.KeyType = i.cfg.KeyType

	client, err := lego.NewClient(legoCfg)
	if err != nil {
		return nil, fmt.Errorf("create ACME client: %w", err)
	}

	provider, err := webroot.NewHTTPProvider(req.WebrootPath)
	if err != nil {
		return nil, fmt.Errorf("configure webroot provider: %w", err)
	}
	if err := client.Challenge.SetHTTP01Provider(provider); err != nil {
		return nil, fmt.Errorf("configure http-01 challenge: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("register ACME account: %w", err)
	}
	user.registration = reg

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.log.Info("Requesting certificate",
		"domain", req.Target.Domain,
		"directory", i.cfg.DirectoryURL)

	res, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: []string{req.Target.Domain},
		Bundle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("obtain certificate: %w", err)
	}

	if len(res.Certificate) == 0 || len(res.PrivateKey) == 0 {
		return nil, errors.New("ACME server returned empty certificate material")
	}

	return &interfaces.IssuedCertificate{
		FullChainPEM:  res.Certificate,
		PrivateKeyPEM: res.PrivateKey,
	}, nil
}

func (i *LegoIssuer) loadOrCreateAccountKey() (crypto.PrivateKey, error) {
	if i.cfg.AccountKeyPath == "" {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate account key: %w", err)
		}
		return key, nil
	}

	if data, err := os.ReadFile(i.cfg.AccountKeyPath); err == nil {
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("account key %s: not PEM encoded", i.cfg.AccountKeyPath)
		}
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse account key: %w", err)
		}
		return key, nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal account key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	if err := os.MkdirAll(filepath.Dir(i.cfg.AccountKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("create account key directory: %w", err)
	}
	if err := os.WriteFile(i.cfg.AccountKeyPath, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("persist account key: %w", err)
	}

	i.log.Info("Created new ACME account key", "path", i.cfg.AccountKeyPath)
	return key, nil
}

type acmeUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string                        { return u.email }
func (u *acmeUser) GetRegistration() *registration.Resource { return u.registration }
func (u *acmeUser) GetPrivateKey() crypto.PrivateKey        { return u.key }
