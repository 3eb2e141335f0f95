package proxyconf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/warranty-register/deployctl/interfaces"
)

// Config holds the values templated into the proxy configuration.
type Config struct {
	// CertRoot is the certificate material root; the rendered config
	// references <CertRoot>/live/<domain>/{fullchain,privkey}.pem. The path
	// layout is identical for the self-signed placeholder and the real
	// certificate, which is what lets issuance succeed without a config
	// edit.
	CertRoot string

	// WebrootPath is the directory the proxy serves for ACME HTTP-01
	// challenges.
	WebrootPath string

	// Upstream is the host:port of the API service on the compose network.
	Upstream string
}

// LivePath returns the directory holding certificate material for a domain.
func (c Config) LivePath(domain string) string {
	return filepath.Join(c.CertRoot, "live", domain)
}

// FullChainPath returns the certificate chain file path for a domain.
func (c Config) FullChainPath(domain string) string {
	return filepath.Join(c.LivePath(domain), "fullchain.pem")
}

// PrivKeyPath returns the private key file path for a domain.
func (c Config) PrivKeyPath(domain string) string {
	return filepath.Join(c.LivePath(domain), "privkey.pem")
}

type templateData struct {
	Domain      string
	FullChain   string
	PrivKey     string
	WebrootPath string
	Upstream    string
}

// Render produces the nginx site configuration for the target domain.
func Render(cfg Config, target interfaces.DomainTarget) ([]byte, error) {
	if cfg.Upstream == "" {
		cfg.Upstream = "api:8000"
	}

	data := templateData{
		Domain:      target.Domain,
		FullChain:   cfg.FullChainPath(target.Domain),
		PrivKey:     cfg.PrivKeyPath(target.Domain),
		WebrootPath: cfg.WebrootPath,
		Upstream:    cfg.Upstream,
	}

	var buf bytes.Buffer
	if err := siteTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render proxy configuration: %w", err)
	}
	return buf.Bytes(), nil
}

// Stage renders the configuration and writes it to path, creating parent
// directories as needed.
func Stage(cfg Config, target interfaces.DomainTarget, path string) error {
	rendered, err := Render(cfg, target)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create proxy configuration directory: %w", err)
	}
	if err := os.WriteFile(path, rendered, 0o644); err != nil {
		return fmt.Errorf("write proxy configuration: %w", err)
	}
	return nil
}

var siteTemplate = template.Must(template.New("nginx-site").Parse(`limit_req_zone $binary_remote_addr zone=api_limit:10m rate=10r/s;

server {
    listen 80;
    server_name {{.Domain}};

    location /.well-known/acme-challenge/ {
        root {{.WebrootPath}};
    }

    location /health {
        proxy_pass http://{{.Upstream}}/health;
        proxy_set_header Host $host;
    }

    location / {
        return 301 https://$host$request_uri;
    }
}

server {
    listen 443 ssl;
    server_name {{.Domain}};

    ssl_certificate {{.FullChain}};
    ssl_certificate_key {{.PrivKey}};
    ssl_protocols TLSv1.2 TLSv1.3;

    add_header X-Frame-Options DENY always;
    add_header X-Content-Type-Options nosniff always;
    add_header Referrer-Policy strict-origin-when-cross-origin always;
    add_header Strict-Transport-Security "max-age=31536000; includeSubDomains" always;

    location /health {
        proxy_pass http://{{.Upstream}}/health;
        proxy_set_header Host $host;
    }

    location / {
        limit_req zone=api_limit burst=20 nodelay;

        proxy_pass http://{{.Upstream}};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
`))
