package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-acme/lego/v4/lego"
	"github.com/urfave/cli/v2"
	"github.com/warranty-register/deployctl/certbootstrap"
	"github.com/warranty-register/deployctl/cmd/flags"
	"github.com/warranty-register/deployctl/compose"
	"github.com/warranty-register/deployctl/credentials"
	"github.com/warranty-register/deployctl/dnscheck"
	"github.com/warranty-register/deployctl/health"
	"github.com/warranty-register/deployctl/httpserver"
	"github.com/warranty-register/deployctl/interfaces"
	"github.com/warranty-register/deployctl/orchestrator"
	"github.com/warranty-register/deployctl/storage"
)

func main() {
	app := &cli.App{
		Name:           "deploy",
		Usage:          "Provision and renew the warranty registration deployment",
		DefaultCommand: "run",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run a full deployment for a domain",
				ArgsUsage: "<domain> [email]",
				Flags:     append(flags.CommonFlags, flags.DeployFlags...),
				Action:    runAction,
			},
			{
				Name:      "renew",
				Usage:     "Renew the certificate for a domain, once or on an interval",
				ArgsUsage: "<domain> [email]",
				Flags: append(append(flags.CommonFlags, flags.DeployFlags...),
					flags.WatchFlag, flags.WatchIntervalFlag),
				Action: renewAction,
			},
			{
				Name:      "credentials",
				Usage:     "Generate the credential file without deploying",
				ArgsUsage: "<domain> [email]",
				Flags:     append(flags.CommonFlags, flags.DeployFlags...),
				Action:    credentialsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// targetFromArgs validates the positional domain and email arguments before
// anything else runs, so a missing domain fails with usage and no side
// effects.
func targetFromArgs(cCtx *cli.Context) (interfaces.DomainTarget, error) {
	target, err := interfaces.NewDomainTarget(cCtx.Args().Get(0), cCtx.Args().Get(1))
	if err != nil {
		cli.ShowSubcommandHelp(cCtx)
		return interfaces.DomainTarget{}, err
	}
	return target, nil
}

func loadConfig(cCtx *cli.Context) (orchestrator.Config, error) {
	cfg, err := orchestrator.LoadConfig()
	if err != nil {
		return orchestrator.Config{}, err
	}
	flags.ApplyOverrides(cCtx, &cfg)
	return cfg, nil
}

func acmeDirectory(cfg orchestrator.Config) string {
	if cfg.ACMEDirectoryURL != "" {
		return cfg.ACMEDirectoryURL
	}
	if cfg.ACMEStaging {
		return lego.LEDirectoryStaging
	}
	return lego.LEDirectoryProduction
}

func buildBootstrapper(cfg orchestrator.Config, runtime interfaces.ComposeRuntime, logger *slog.Logger) *certbootstrap.Bootstrapper {
	issuer := certbootstrap.NewLegoIssuer(certbootstrap.LegoConfig{
		DirectoryURL:   acmeDirectory(cfg),
		AccountKeyPath: filepath.Join(cfg.StateDir, "acme-account.key"),
	}, logger)

	return certbootstrap.NewBootstrapper(certbootstrap.Config{
		CertRoot:     cfg.CertRoot,
		WebrootPath:  cfg.WebrootPath,
		RenewBefore:  cfg.RenewBefore,
		ForceRenewal: cfg.ForceRenewal,
	}, runtime, issuer, logger)
}

func buildDeps(cfg orchestrator.Config, logger *slog.Logger) orchestrator.Deps {
	runtime := compose.NewManager(compose.Config{ComposeFile: cfg.ComposeFile}, logger)

	deps := orchestrator.Deps{
		Runtime:      runtime,
		Provisioner:  credentials.NewProvisioner(logger),
		Bootstrapper: buildBootstrapper(cfg, runtime, logger),
		// InsecureTLS: the post-bootstrap HTTPS check may still hit the
		// self-signed placeholder, which is a legal end state.
		Health: health.NewVerifier(health.Config{InsecureTLS: true}, logger),
		DNS:    dnscheck.NewChecker("", logger),
	}

	if len(cfg.ArchiveURIs) > 0 {
		archive, err := storage.NewFactory(logger).MultiBackendFor(cfg.ArchiveURIs)
		if err != nil {
			logger.Warn("No usable archive backend, archiving disabled", "err", err)
		} else {
			deps.Archive = archive
		}
	}
	return deps
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runAction(cCtx *cli.Context) error {
	target, err := targetFromArgs(cCtx)
	if err != nil {
		return err
	}

	logger := flags.SetupLogger(cCtx)
	cfg, err := loadConfig(cCtx)
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		return err
	}

	lock, err := orchestrator.AcquireLock(cfg.StateDir)
	if err != nil {
		logger.Error("Failed to acquire deployment lock", "err", err)
		return err
	}
	defer lock.Unlock()

	ctx, stop := signalContext()
	defer stop()

	deployment := orchestrator.New(cfg, target, buildDeps(cfg, logger), logger)

	if cfg.OpsAddr != "" {
		srv := httpserver.New(&httpserver.Config{
			ListenAddr:    cfg.OpsAddr,
			Log:           logger,
			DrainDuration: 5 * time.Second,
		}, func() any { return deployment.Report().Snapshot() })
		srv.RunInBackground()
		defer srv.Shutdown()
	}

	if err := deployment.Run(ctx); err != nil {
		logger.Error("Deployment failed", "err", err)
		return err
	}
	return nil
}

// renewStatus is the /status payload of the renewal daemon.
type renewStatus struct {
	mu      sync.Mutex
	Domain  string `json:"domain"`
	State   string `json:"certificate_state"`
	LastRun string `json:"last_run,omitempty"`
	LastErr string `json:"last_error,omitempty"`
}

func (s *renewStatus) record(state interfaces.CertificateState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state.String()
	s.LastRun = time.Now().Format(time.RFC3339)
	s.LastErr = ""
	if err != nil {
		s.LastErr = err.Error()
	}
}

func (s *renewStatus) snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return renewStatus{
		Domain:  s.Domain,
		State:   s.State,
		LastRun: s.LastRun,
		LastErr: s.LastErr,
	}
}

func renewAction(cCtx *cli.Context) error {
	target, err := targetFromArgs(cCtx)
	if err != nil {
		return err
	}

	logger := flags.SetupLogger(cCtx)
	cfg, err := loadConfig(cCtx)
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		return err
	}

	lock, err := orchestrator.AcquireLock(cfg.StateDir)
	if err != nil {
		logger.Error("Failed to acquire deployment lock", "err", err)
		return err
	}
	defer lock.Unlock()

	ctx, stop := signalContext()
	defer stop()

	runtime := compose.NewManager(compose.Config{ComposeFile: cfg.ComposeFile}, logger)
	bootstrapper := buildBootstrapper(cfg, runtime, logger)
	status := &renewStatus{Domain: target.Domain, State: interfaces.CertAbsent.String()}

	if cfg.OpsAddr != "" {
		srv := httpserver.New(&httpserver.Config{
			ListenAddr:    cfg.OpsAddr,
			Log:           logger,
			DrainDuration: 5 * time.Second,
		}, status.snapshot)
		srv.RunInBackground()
		defer srv.Shutdown()
	}

	renewOnce := func() error {
		state, err := bootstrapper.Ensure(ctx, target)
		status.record(state, err)
		if err != nil {
			logger.Error("Renewal failed", "domain", target.Domain, "err", err)
			return err
		}
		logger.Info("Renewal check complete", "domain", target.Domain, "state", state.String())
		return nil
	}

	if !cCtx.Bool(flags.WatchFlag.Name) {
		return renewOnce()
	}

	interval := cCtx.Duration(flags.WatchIntervalFlag.Name)
	logger.Info("Watching for certificate renewal", "domain", target.Domain, "interval", interval.String())

	// Watch mode keeps running through failed checks; the next tick retries.
	if err := renewOnce(); err != nil {
		logger.Warn("Initial renewal check failed, will retry", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received")
			return nil
		case <-ticker.C:
			if err := renewOnce(); err != nil {
				logger.Warn("Renewal check failed, will retry", "err", err)
			}
		}
	}
}

func credentialsAction(cCtx *cli.Context) error {
	target, err := targetFromArgs(cCtx)
	if err != nil {
		return err
	}

	logger := flags.SetupLogger(cCtx)
	cfg, err := loadConfig(cCtx)
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		return err
	}

	if credentials.Exists(cfg.EnvFile) && !cfg.RegenerateCredentials {
		logger.Info("Credential file already present, use --regenerate-credentials to replace it",
			"path", cfg.EnvFile)
		return nil
	}

	bundle, err := credentials.NewProvisioner(logger).Provision(cCtx.Context, target)
	if err != nil {
		logger.Error("Failed to generate credentials", "err", err)
		return err
	}
	if err := credentials.WriteFile(cfg.EnvFile, bundle); err != nil {
		logger.Error("Failed to write credential file", "err", err)
		return err
	}

	logger.Info("Credential file written", "path", cfg.EnvFile, "keys", len(bundle))
	return nil
}
