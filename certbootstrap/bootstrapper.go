package certbootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/warranty-register/deployctl/interfaces"
)

// ErrIssuanceFailed marks errors from the issuance phase onward. The proxy is
// already serving on the placeholder at that point, so the orchestrator
// treats these as recoverable: a partially-working deployment beats a torn-
// down one.
var ErrIssuanceFailed = errors.New("certificate issuance failed")

// Config holds the bootstrapper settings.
type Config struct {
	// CertRoot is the certificate material root. Material for a domain
	// lives at <CertRoot>/live/<domain>/.
	CertRoot string

	// WebrootPath is the directory the proxy serves for the ACME HTTP-01
	// challenge path.
	WebrootPath string

	// ProxyService is the compose service name of the TLS-terminating
	// proxy, the only service the bootstrapper touches.
	ProxyService string

	// RenewBefore is the remaining-validity threshold under which an
	// existing real certificate is renewed. Defaults to 30 days.
	RenewBefore time.Duration

	// ForceRenewal requests issuance even when valid material exists.
	// Deliberate use only: issuance attempts are rate-limited by the CA.
	ForceRenewal bool
}

// Bootstrapper transitions a domain from "no certificate" to "valid, trusted
// certificate". It resolves the bootstrap circularity (the proxy must run to
// serve ACME challenges, but needs certificate material to start) by
// installing a short-lived self-signed placeholder at the exact path the
// real certificate will later occupy.
//
// The bootstrapper owns the CertificateState for the run; one Ensure call is
// one pass through the state machine.
type Bootstrapper struct {
	cfg     Config
	runtime interfaces.ComposeRuntime
	issuer  interfaces.CertificateIssuer
	log     *slog.Logger

	state   interfaces.CertificateState
	history []interfaces.CertificateState
}

// NewBootstrapper creates a bootstrapper. RenewBefore defaults to 30 days.
func NewBootstrapper(cfg Config, runtime interfaces.ComposeRuntime, issuer interfaces.CertificateIssuer, log *slog.Logger) *Bootstrapper {
	if cfg.RenewBefore <= 0 {
		cfg.RenewBefore = 30 * 24 * time.Hour
	}
	if cfg.ProxyService == "" {
		cfg.ProxyService = interfaces.DefaultServiceSet().Proxy
	}
	return &Bootstrapper{
		cfg:     cfg,
		runtime: runtime,
		issuer:  issuer,
		log:     log,
		state:   interfaces.CertAbsent,
	}
}

// State returns the current certificate state.
func (b *Bootstrapper) State() interfaces.CertificateState {
	return b.state
}

// History returns the state transitions of the last Ensure call, in order.
func (b *Bootstrapper) History() []interfaces.CertificateState {
	out := make([]interfaces.CertificateState, len(b.history))
	copy(out, b.history)
	return out
}

// Ensure drives the domain to a valid certificate. Errors wrapped with
// ErrIssuanceFailed are recoverable (placeholder keeps serving); anything
// else is fatal to the deployment.
func (b *Bootstrapper) Ensure(ctx context.Context, target interfaces.DomainTarget) (interfaces.CertificateState, error) {
	b.history = b.history[:0]
	liveDir := b.liveDir(target.Domain)

	found := inspectMaterial(liveDir)
	switch found.Kind {
	case materialReal:
		remaining := time.Until(found.NotAfter)
		if !b.cfg.ForceRenewal && remaining > b.cfg.RenewBefore {
			// Idempotent re-run: real material exists and is fresh, the
			// placeholder step is skipped entirely.
			b.transition(interfaces.CertValid)
			b.log.Info("Certificate still valid, skipping issuance",
				"domain", target.Domain,
				"notAfter", found.NotAfter.Format(time.RFC3339))
			if err := b.runtime.Start(ctx, b.cfg.ProxyService); err != nil {
				b.transition(interfaces.CertFailed)
				return b.state, fmt.Errorf("start proxy: %w", err)
			}
			return b.state, nil
		}
		// No transition here: renewal re-enters the machine at Pending, so
		// the history stays monotone.
		b.log.Info("Certificate due for renewal",
			"domain", target.Domain,
			"remaining", remaining.String(),
			"forced", b.cfg.ForceRenewal)

	case materialDummy:
		// Placeholder already in place from an earlier interrupted run.
		b.transition(interfaces.CertDummy)
		b.log.Info("Reusing existing placeholder certificate", "domain", target.Domain)

	case materialNone:
		b.transition(interfaces.CertAbsent)
		certPEM, keyPEM, err := GenerateDummy(target.Domain)
		if err != nil {
			b.transition(interfaces.CertFailed)
			return b.state, err
		}
		if err := writeMaterial(liveDir, certPEM, keyPEM); err != nil {
			b.transition(interfaces.CertFailed)
			return b.state, fmt.Errorf("install placeholder certificate: %w", err)
		}
		b.transition(interfaces.CertDummy)
		b.log.Info("Installed placeholder certificate", "domain", target.Domain, "path", liveDir)
	}

	// The proxy can now start (or keep running); it serves the challenge
	// path on port 80 and TLS on 443 with whatever material is installed.
	if err := b.runtime.Start(ctx, b.cfg.ProxyService); err != nil {
		b.transition(interfaces.CertFailed)
		return b.state, fmt.Errorf("start proxy: %w", err)
	}

	b.transition(interfaces.CertPending)
	issued, err := b.issuer.Issue(ctx, interfaces.IssuanceRequest{
		Target:      target,
		WebrootPath: b.cfg.WebrootPath,
	})
	if err != nil {
		b.transition(interfaces.CertFailed)
		return b.state, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}

	// Same path structure for placeholder and real certificate, keyed by
	// domain: no proxy config edit, a reload suffices.
	if err := writeMaterial(liveDir, issued.FullChainPEM, issued.PrivateKeyPEM); err != nil {
		b.transition(interfaces.CertFailed)
		return b.state, fmt.Errorf("%w: install issued certificate: %v", ErrIssuanceFailed, err)
	}

	if err := b.runtime.Reload(ctx, b.cfg.ProxyService); err != nil {
		b.transition(interfaces.CertFailed)
		return b.state, fmt.Errorf("%w: reload proxy: %v", ErrIssuanceFailed, err)
	}

	b.transition(interfaces.CertValid)
	b.log.Info("Certificate issued and proxy reloaded", "domain", target.Domain)
	return b.state, nil
}

func (b *Bootstrapper) liveDir(domain string) string {
	return filepath.Join(b.cfg.CertRoot, "live", domain)
}

func (b *Bootstrapper) transition(next interfaces.CertificateState) {
	if len(b.history) > 0 && b.history[len(b.history)-1] == next {
		return
	}
	b.log.Debug("Certificate state transition", "from", b.state.String(), "to", next.String())
	b.state = next
	b.history = append(b.history, next)
}
