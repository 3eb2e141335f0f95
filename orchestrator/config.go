package orchestrator

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the explicit deployment configuration, loaded once at process
// start from environment variables and overridden by CLI flags. Components
// never read ambient environment themselves.
type Config struct {
	StateDir      string `env:"DEPLOYCTL_STATE_DIR" envDefault:"/var/lib/deployctl"`
	CertRoot      string `env:"DEPLOYCTL_CERT_ROOT" envDefault:"./certbot/conf"`
	WebrootPath   string `env:"DEPLOYCTL_WEBROOT" envDefault:"./certbot/www"`
	ComposeFile   string `env:"DEPLOYCTL_COMPOSE_FILE" envDefault:"docker-compose.yml"`
	EnvFile       string `env:"DEPLOYCTL_ENV_FILE" envDefault:".env"`
	ProxyConfPath string `env:"DEPLOYCTL_PROXY_CONF" envDefault:"./nginx/conf.d/warranty.conf"`
	APIHealthURL  string `env:"DEPLOYCTL_API_HEALTH_URL" envDefault:"http://127.0.0.1:8000/health"`
	Upstream      string `env:"DEPLOYCTL_UPSTREAM" envDefault:"api:8000"`

	ACMEDirectoryURL string        `env:"DEPLOYCTL_ACME_URL"`
	ACMEStaging      bool          `env:"DEPLOYCTL_ACME_STAGING"`
	RenewBefore      time.Duration `env:"DEPLOYCTL_RENEW_BEFORE" envDefault:"720h"`
	ForceRenewal     bool          `env:"DEPLOYCTL_FORCE_RENEWAL"`

	// AdvisoryHealth restores the historical warn-and-continue behavior of
	// the pre-TLS health check. By default an unhealthy API blocks
	// certificate issuance so rate-limited issuance attempts aren't wasted
	// on a broken backend.
	AdvisoryHealth bool `env:"DEPLOYCTL_ADVISORY_HEALTH"`

	RegenerateCredentials bool `env:"DEPLOYCTL_REGENERATE_CREDENTIALS"`

	// ArchiveURIs lists storage backend URIs the run archives artifacts to.
	ArchiveURIs []string `env:"DEPLOYCTL_ARCHIVE_URIS" envSeparator:","`

	// OpsAddr enables the ops/status server when non-empty.
	OpsAddr string `env:"DEPLOYCTL_OPS_ADDR"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment configuration: %w", err)
	}
	return cfg, nil
}
