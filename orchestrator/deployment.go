package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/warranty-register/deployctl/certbootstrap"
	"github.com/warranty-register/deployctl/credentials"
	"github.com/warranty-register/deployctl/interfaces"
	"github.com/warranty-register/deployctl/proxyconf"
)

// HealthChecker verifies a liveness endpoint. Implemented by health.Verifier.
type HealthChecker interface {
	Check(ctx context.Context, url string) bool
}

// CertificateBootstrapper drives the certificate state machine. Implemented
// by certbootstrap.Bootstrapper.
type CertificateBootstrapper interface {
	Ensure(ctx context.Context, target interfaces.DomainTarget) (interfaces.CertificateState, error)
}

// DomainChecker performs the DNS preflight. Implemented by dnscheck.Checker.
type DomainChecker interface {
	Verify(ctx context.Context, domain string) (bool, error)
}

// CredentialSource produces a fresh credential bundle. Implemented by
// credentials.Provisioner.
type CredentialSource interface {
	Provision(ctx context.Context, target interfaces.DomainTarget) (interfaces.CredentialBundle, error)
}

// Deps are the collaborators a deployment sequences. DNS and Archive are
// optional.
type Deps struct {
	Runtime      interfaces.ComposeRuntime
	Provisioner  CredentialSource
	Bootstrapper CertificateBootstrapper
	Health       HealthChecker
	DNS          DomainChecker
	Archive      interfaces.StorageBackend
}

// Deployment runs the components in fixed order: DNS preflight, credential
// provisioning, proxy config staging, core service start, health gate,
// certificate bootstrap, post-TLS health check, artifact archive. The first
// fatal failure aborts the run; advisory failures are recorded as warnings
// and the run continues. Nothing started is ever rolled back: a partially
// working deployment is a more debuggable state than a torn-down one.
type Deployment struct {
	cfg      Config
	target   interfaces.DomainTarget
	services interfaces.ServiceSet
	deps     Deps
	report   *Report
	log      *slog.Logger
}

// New creates a deployment run for the target.
func New(cfg Config, target interfaces.DomainTarget, deps Deps, log *slog.Logger) *Deployment {
	runID := uuid.Must(uuid.NewRandom()).String()
	return &Deployment{
		cfg:      cfg,
		target:   target,
		services: interfaces.DefaultServiceSet(),
		deps:     deps,
		report:   NewReport(runID, target.Domain),
		log:      log.With("run", runID),
	}
}

// Report returns the run's report, safe to read concurrently.
func (d *Deployment) Report() *Report {
	return d.report
}

// Run executes the deployment. The returned error is nil for runs that
// completed with only advisory failures.
func (d *Deployment) Run(ctx context.Context) error {
	defer d.report.Finish()

	d.log.Info("Starting deployment",
		"domain", d.target.Domain,
		"email", d.target.Email)

	if err := d.preflight(ctx); err != nil {
		return err
	}
	if err := d.provisionCredentials(ctx); err != nil {
		return err
	}
	if err := d.stageProxyConfig(); err != nil {
		return err
	}
	if err := d.startCoreServices(ctx); err != nil {
		return err
	}
	if err := d.healthGate(ctx); err != nil {
		return err
	}
	if err := d.bootstrapCertificate(ctx); err != nil {
		return err
	}
	d.verifyHTTPS(ctx)
	d.archiveArtifacts(ctx)
	d.summarize()
	return nil
}

func (d *Deployment) preflight(ctx context.Context) error {
	if d.deps.DNS == nil {
		d.report.Add("dns-preflight", StepSkipped, "no resolver configured")
		return nil
	}

	matched, err := d.deps.DNS.Verify(ctx, d.target.Domain)
	if err != nil {
		d.report.Add("dns-preflight", StepFailed, err.Error())
		return fmt.Errorf("dns preflight: %w", err)
	}
	if !matched {
		d.report.Add("dns-preflight", StepWarning, "domain does not resolve to this host")
		d.log.Warn("Domain does not resolve to this host; ACME validation may fail",
			"domain", d.target.Domain)
		return nil
	}

	d.report.Add("dns-preflight", StepOK, "")
	return nil
}

func (d *Deployment) provisionCredentials(ctx context.Context) error {
	if !d.cfg.RegenerateCredentials && credentials.Exists(d.cfg.EnvFile) {
		// Re-running must not rotate credentials under services that
		// already hold them.
		d.report.Add("credentials", StepOK, "reusing existing credential file")
		d.log.Info("Reusing existing credential file", "path", d.cfg.EnvFile)
		return nil
	}

	bundle, err := d.deps.Provisioner.Provision(ctx, d.target)
	if err != nil {
		d.report.Add("credentials", StepFailed, err.Error())
		return fmt.Errorf("provision credentials: %w", err)
	}
	if err := credentials.WriteFile(d.cfg.EnvFile, bundle); err != nil {
		d.report.Add("credentials", StepFailed, err.Error())
		return fmt.Errorf("persist credentials: %w", err)
	}

	d.report.Add("credentials", StepOK, "")
	d.log.Info("Credential file written", "path", d.cfg.EnvFile)
	return nil
}

func (d *Deployment) stageProxyConfig() error {
	cfg := proxyconf.Config{
		CertRoot:    d.cfg.CertRoot,
		WebrootPath: d.cfg.WebrootPath,
		Upstream:    d.cfg.Upstream,
	}
	if err := proxyconf.Stage(cfg, d.target, d.cfg.ProxyConfPath); err != nil {
		d.report.Add("proxy-config", StepFailed, err.Error())
		return fmt.Errorf("stage proxy configuration: %w", err)
	}

	d.report.Add("proxy-config", StepOK, "")
	return nil
}

func (d *Deployment) startCoreServices(ctx context.Context) error {
	core := d.services.Core()
	if err := d.deps.Runtime.Start(ctx, core...); err != nil {
		d.report.Add("core-services", StepFailed, err.Error())
		return fmt.Errorf("start core services: %w", err)
	}

	d.report.Add("core-services", StepOK, "")
	return nil
}

// healthGate checks the API before certificate issuance. Issuance attempts
// are rate-limited by the CA, so by default an unhealthy backend blocks the
// bootstrap; AdvisoryHealth degrades the gate to a warning.
func (d *Deployment) healthGate(ctx context.Context) error {
	if d.deps.Health.Check(ctx, d.cfg.APIHealthURL) {
		d.report.Add("api-health", StepOK, "")
		return nil
	}

	if d.cfg.AdvisoryHealth {
		d.report.Add("api-health", StepWarning, "API health check failed")
		d.log.Warn("API health check failed; continuing (advisory mode)", "url", d.cfg.APIHealthURL)
		return nil
	}

	d.report.Add("api-health", StepFailed, "API health check failed")
	return fmt.Errorf("API unhealthy at %s; refusing to spend a certificate issuance attempt", d.cfg.APIHealthURL)
}

func (d *Deployment) bootstrapCertificate(ctx context.Context) error {
	state, err := d.deps.Bootstrapper.Ensure(ctx, d.target)
	d.report.SetCertificateState(state.String())

	if err != nil {
		if errors.Is(err, certbootstrap.ErrIssuanceFailed) {
			// The proxy keeps serving on the placeholder; HTTP still works
			// and HTTPS answers with an untrusted certificate.
			d.report.Add("certificate", StepWarning, err.Error())
			d.log.Warn("Certificate issuance failed; placeholder remains in service", "err", err)
			return nil
		}
		d.report.Add("certificate", StepFailed, err.Error())
		return fmt.Errorf("certificate bootstrap: %w", err)
	}

	d.report.Add("certificate", StepOK, "state "+state.String())
	return nil
}

func (d *Deployment) verifyHTTPS(ctx context.Context) {
	url := "https://" + d.target.Domain + "/health"
	if d.deps.Health.Check(ctx, url) {
		d.report.Add("https-health", StepOK, "")
		return
	}
	d.report.Add("https-health", StepWarning, "HTTPS health check failed")
	d.log.Warn("HTTPS health check failed", "url", url)
}

func (d *Deployment) archiveArtifacts(ctx context.Context) {
	if d.deps.Archive == nil {
		d.report.Add("archive", StepSkipped, "no archive backends configured")
		return
	}

	var failed bool
	if data, err := os.ReadFile(d.cfg.EnvFile); err == nil {
		name := d.target.Domain + ".env"
		if err := d.deps.Archive.Store(ctx, name, data, interfaces.SecretArtifact); err != nil {
			d.log.Warn("Failed to archive credential bundle", "err", err)
			failed = true
		}
	}

	chainPath := filepath.Join(d.cfg.CertRoot, "live", d.target.Domain, "fullchain.pem")
	if data, err := os.ReadFile(chainPath); err == nil {
		name := d.target.Domain + "-fullchain.pem"
		if err := d.deps.Archive.Store(ctx, name, data, interfaces.ConfigArtifact); err != nil {
			d.log.Warn("Failed to archive certificate chain", "err", err)
			failed = true
		}
	}

	if failed {
		d.report.Add("archive", StepWarning, "some artifacts were not archived")
		return
	}
	d.report.Add("archive", StepOK, "")
}

func (d *Deployment) summarize() {
	view := d.report.Snapshot()
	d.log.Info("Deployment finished",
		"domain", d.target.Domain,
		"certificate", view.CertificateState,
		"steps", len(view.Steps),
		"warnings", d.report.Warnings())
}
