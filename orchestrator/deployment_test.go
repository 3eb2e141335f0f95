package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warranty-register/deployctl/certbootstrap"
	"github.com/warranty-register/deployctl/credentials"
	"github.com/warranty-register/deployctl/interfaces"
)

type fakeRuntime struct {
	started [][]string
	err     error
}

func (f *fakeRuntime) Start(_ context.Context, services ...string) error {
	f.started = append(f.started, services)
	return f.err
}

func (f *fakeRuntime) Stop(context.Context, ...string) error { return nil }
func (f *fakeRuntime) Reload(context.Context, string) error  { return nil }
func (f *fakeRuntime) Exec(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return nil, nil
}

type fakeProvisioner struct {
	calls int
}

func (f *fakeProvisioner) Provision(_ context.Context, _ interfaces.DomainTarget) (interfaces.CredentialBundle, error) {
	f.calls++
	return interfaces.CredentialBundle{
		credentials.KeyDomainName: "example.com",
		credentials.KeyAPIKey:     "k",
	}, nil
}

type fakeBootstrapper struct {
	calls int
	state interfaces.CertificateState
	err   error
}

func (f *fakeBootstrapper) Ensure(context.Context, interfaces.DomainTarget) (interfaces.CertificateState, error) {
	f.calls++
	return f.state, f.err
}

type fakeHealth struct {
	healthy map[string]bool
}

func (f *fakeHealth) Check(_ context.Context, url string) bool {
	return f.healthy[url]
}

type fakeDNS struct {
	matched bool
	err     error
}

func (f *fakeDNS) Verify(context.Context, string) (bool, error) {
	return f.matched, f.err
}

type fakeArchive struct {
	stored map[string][]byte
	err    error
}

func (f *fakeArchive) Store(_ context.Context, name string, data []byte, _ interfaces.ArtifactKind) error {
	if f.err != nil {
		return f.err
	}
	if f.stored == nil {
		f.stored = map[string][]byte{}
	}
	f.stored[name] = data
	return nil
}

func (f *fakeArchive) Fetch(_ context.Context, _ string, _ interfaces.ArtifactKind) ([]byte, error) {
	return nil, interfaces.ErrArtifactNotFound
}

func (f *fakeArchive) Available(context.Context) bool { return true }
func (f *fakeArchive) Name() string                   { return "fake" }
func (f *fakeArchive) LocationURI() string            { return "fake://" }

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		StateDir:      filepath.Join(dir, "state"),
		CertRoot:      filepath.Join(dir, "certs"),
		WebrootPath:   filepath.Join(dir, "webroot"),
		EnvFile:       filepath.Join(dir, ".env"),
		ProxyConfPath: filepath.Join(dir, "warranty.conf"),
		APIHealthURL:  "http://api:8000/health",
		Upstream:      "api:8000",
	}
}

func testTarget(t *testing.T) interfaces.DomainTarget {
	t.Helper()
	target, err := interfaces.NewDomainTarget("example.com", "")
	require.NoError(t, err)
	return target
}

func testDeps() Deps {
	return Deps{
		Runtime:      &fakeRuntime{},
		Provisioner:  &fakeProvisioner{},
		Bootstrapper: &fakeBootstrapper{state: interfaces.CertValid},
		Health: &fakeHealth{healthy: map[string]bool{
			"http://api:8000/health":     true,
			"https://example.com/health": true,
		}},
	}
}

func stepByName(t *testing.T, view ReportView, name string) Step {
	t.Helper()
	for _, s := range view.Steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %q not found in report", name)
	return Step{}
}

func TestRunHappyPath(t *testing.T) {
	cfg := testConfig(t)
	deps := testDeps()
	archive := &fakeArchive{}
	deps.Archive = archive
	runtime := deps.Runtime.(*fakeRuntime)

	chainDir := filepath.Join(cfg.CertRoot, "live", "example.com")
	require.NoError(t, os.MkdirAll(chainDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(chainDir, "fullchain.pem"), []byte("chain"), 0o644))

	d := New(cfg, testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.Run(context.Background()))

	view := d.Report().Snapshot()
	assert.Equal(t, StepOK, stepByName(t, view, "credentials").Status)
	assert.Equal(t, StepOK, stepByName(t, view, "proxy-config").Status)
	assert.Equal(t, StepOK, stepByName(t, view, "api-health").Status)
	assert.Equal(t, StepOK, stepByName(t, view, "certificate").Status)
	assert.Equal(t, StepOK, stepByName(t, view, "https-health").Status)
	assert.Equal(t, "valid", view.CertificateState)
	assert.NotEmpty(t, view.FinishedAt)

	require.Len(t, runtime.started, 1)
	assert.Equal(t, []string{"db", "api"}, runtime.started[0])

	assert.Contains(t, archive.stored, "example.com.env")
	assert.Contains(t, archive.stored, "example.com-fullchain.pem")

	info, err := os.Stat(cfg.ProxyConfPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestRunWithoutDNSAndArchiveSkipsSteps(t *testing.T) {
	d := New(testConfig(t), testTarget(t), testDeps(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.Run(context.Background()))

	view := d.Report().Snapshot()
	assert.Equal(t, StepSkipped, stepByName(t, view, "dns-preflight").Status)
	assert.Equal(t, StepSkipped, stepByName(t, view, "archive").Status)
}

func TestRunHealthGateBlocksIssuance(t *testing.T) {
	deps := testDeps()
	deps.Health = &fakeHealth{}
	bootstrapper := deps.Bootstrapper.(*fakeBootstrapper)

	d := New(testConfig(t), testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := d.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhealthy")
	assert.Zero(t, bootstrapper.calls)
	assert.Equal(t, StepFailed, stepByName(t, d.Report().Snapshot(), "api-health").Status)
}

func TestRunAdvisoryHealthContinues(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdvisoryHealth = true
	deps := testDeps()
	deps.Health = &fakeHealth{}
	bootstrapper := deps.Bootstrapper.(*fakeBootstrapper)

	d := New(cfg, testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, 1, bootstrapper.calls)
	view := d.Report().Snapshot()
	assert.Equal(t, StepWarning, stepByName(t, view, "api-health").Status)
	assert.Equal(t, StepWarning, stepByName(t, view, "https-health").Status)
	assert.Equal(t, 2, d.Report().Warnings())
}

func TestRunIssuanceFailureIsAdvisory(t *testing.T) {
	deps := testDeps()
	deps.Bootstrapper = &fakeBootstrapper{
		state: interfaces.CertDummy,
		err:   fmt.Errorf("obtain certificate: %w", certbootstrap.ErrIssuanceFailed),
	}

	d := New(testConfig(t), testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.Run(context.Background()))

	view := d.Report().Snapshot()
	assert.Equal(t, StepWarning, stepByName(t, view, "certificate").Status)
	assert.Equal(t, "dummy", view.CertificateState)
}

func TestRunProxyStartFailureIsFatal(t *testing.T) {
	deps := testDeps()
	deps.Runtime = &fakeRuntime{err: errors.New("compose exploded")}
	bootstrapper := deps.Bootstrapper.(*fakeBootstrapper)

	d := New(testConfig(t), testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := d.Run(context.Background())

	require.Error(t, err)
	assert.Zero(t, bootstrapper.calls)
	assert.Equal(t, StepFailed, stepByName(t, d.Report().Snapshot(), "core-services").Status)
}

func TestRunReusesExistingCredentialFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, credentials.WriteFile(cfg.EnvFile, interfaces.CredentialBundle{
		credentials.KeyAPIKey: "existing",
	}))

	deps := testDeps()
	provisioner := deps.Provisioner.(*fakeProvisioner)

	d := New(cfg, testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.Run(context.Background()))

	assert.Zero(t, provisioner.calls)

	bundle, err := credentials.ReadFile(cfg.EnvFile)
	require.NoError(t, err)
	assert.Equal(t, "existing", bundle[credentials.KeyAPIKey])
}

func TestRunRegenerateCredentialsOverwrites(t *testing.T) {
	cfg := testConfig(t)
	cfg.RegenerateCredentials = true
	require.NoError(t, credentials.WriteFile(cfg.EnvFile, interfaces.CredentialBundle{
		credentials.KeyAPIKey: "existing",
	}))

	deps := testDeps()
	provisioner := deps.Provisioner.(*fakeProvisioner)

	d := New(cfg, testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, 1, provisioner.calls)
}

func TestRunDNSMismatchIsAdvisory(t *testing.T) {
	deps := testDeps()
	deps.DNS = &fakeDNS{matched: false}

	d := New(testConfig(t), testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, StepWarning, stepByName(t, d.Report().Snapshot(), "dns-preflight").Status)
}

func TestRunDNSResolutionErrorIsFatal(t *testing.T) {
	deps := testDeps()
	deps.DNS = &fakeDNS{err: errors.New("NXDOMAIN")}
	runtime := deps.Runtime.(*fakeRuntime)

	d := New(testConfig(t), testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, d.Run(context.Background()))
	assert.Empty(t, runtime.started)
}

func TestRunArchiveFailureIsAdvisory(t *testing.T) {
	deps := testDeps()
	deps.Archive = &fakeArchive{err: errors.New("bucket gone")}

	d := New(testConfig(t), testTarget(t), deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, StepWarning, stepByName(t, d.Report().Snapshot(), "archive").Status)
}

func TestAcquireLockIsExclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	require.NoError(t, err)
	defer first.Unlock()

	_, err = AcquireLock(dir)
	require.ErrorIs(t, err, interfaces.ErrDeploymentLocked)

	require.NoError(t, first.Unlock())
	second, err := AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, second.Unlock())
}
