package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/warranty-register/deployctl/interfaces"
)

// Runner executes an external command and returns its combined output. It is
// injected so tests can observe invocations without a container runtime.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Config holds the compose manager settings.
type Config struct {
	// ComposeFile is the path to the compose definition.
	ComposeFile string

	// ProjectName overrides the compose project name when set.
	ProjectName string

	// Services is the named service set managed by this deployment.
	Services interfaces.ServiceSet

	// ReloadCommands maps a service name to the in-container command that
	// makes it re-read its configuration without restarting. Services
	// without an entry get SIGHUP to PID 1.
	ReloadCommands map[string][]string
}

// Manager drives the docker compose CLI for a fixed service set. It
// implements interfaces.ComposeRuntime. Starting an already-running service
// is a no-op at the runtime level, which is what makes re-invoking a
// deployment safe.
type Manager struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
}

// NewManager creates a compose manager for the given configuration.
func NewManager(cfg Config, log *slog.Logger) *Manager {
	if cfg.Services == (interfaces.ServiceSet{}) {
		cfg.Services = interfaces.DefaultServiceSet()
	}
	if cfg.ReloadCommands == nil {
		cfg.ReloadCommands = map[string][]string{
			cfg.Services.Proxy: {"nginx", "-s", "reload"},
		}
	}
	return &Manager{cfg: cfg, runner: execRunner, log: log}
}

// SetRunner replaces the command runner. Used by tests.
func (m *Manager) SetRunner(r Runner) { m.runner = r }

// Start brings the named services up, building images if needed. Any build
// or start error aborts the deployment; later steps depend on these
// services.
func (m *Manager) Start(ctx context.Context, names ...string) error {
	if err := m.validate(names); err != nil {
		return err
	}

	args := append([]string{"up", "-d", "--build"}, names...)
	out, err := m.compose(ctx, args...)
	if err != nil {
		return fmt.Errorf("compose up %s: %w: %s", strings.Join(names, " "), err, firstLine(out))
	}

	m.log.Info("Services started", "services", strings.Join(names, ","))
	return nil
}

// Stop stops the named services without removing their containers.
func (m *Manager) Stop(ctx context.Context, names ...string) error {
	if err := m.validate(names); err != nil {
		return err
	}

	out, err := m.compose(ctx, append([]string{"stop"}, names...)...)
	if err != nil {
		return fmt.Errorf("compose stop %s: %w: %s", strings.Join(names, " "), err, firstLine(out))
	}

	m.log.Info("Services stopped", "services", strings.Join(names, ","))
	return nil
}

// Reload makes a running service re-read its configuration in place. For the
// proxy this picks up new certificate material without dropping connections.
func (m *Manager) Reload(ctx context.Context, name string) error {
	if err := m.validate([]string{name}); err != nil {
		return err
	}

	cmd, ok := m.cfg.ReloadCommands[name]
	if !ok {
		cmd = []string{"kill", "-HUP", "1"}
	}

	out, err := m.Exec(ctx, name, cmd...)
	if err != nil {
		return fmt.Errorf("reload %s: %w: %s", name, err, firstLine(out))
	}

	m.log.Info("Service reloaded", "service", name)
	return nil
}

// Exec runs a one-off command inside a running service's context.
func (m *Manager) Exec(ctx context.Context, name string, cmd ...string) ([]byte, error) {
	if err := m.validate([]string{name}); err != nil {
		return nil, err
	}
	if len(cmd) == 0 {
		return nil, fmt.Errorf("exec in %s: empty command", name)
	}

	args := append([]string{"exec", "-T", name}, cmd...)
	return m.compose(ctx, args...)
}

func (m *Manager) compose(ctx context.Context, args ...string) ([]byte, error) {
	base := []string{"compose"}
	if m.cfg.ComposeFile != "" {
		base = append(base, "-f", m.cfg.ComposeFile)
	}
	if m.cfg.ProjectName != "" {
		base = append(base, "-p", m.cfg.ProjectName)
	}

	full := append(base, args...)
	m.log.Debug("Running compose command", "args", strings.Join(full, " "))
	return m.runner(ctx, "docker", full...)
}

func (m *Manager) validate(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("no service names given")
	}
	for _, name := range names {
		if !m.cfg.Services.Contains(name) {
			return fmt.Errorf("unknown service %q", name)
		}
	}
	return nil
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
