package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/warranty-register/deployctl/interfaces"
)

// AcquireLock takes the exclusive deployment lock for a state directory.
// Two deployments racing on the same certificate directory and credential
// file would corrupt both, so a second invocation fails fast instead of
// queueing.
func AcquireLock(stateDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	fl := flock.New(filepath.Join(stateDir, "deploy.lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire deployment lock: %w", err)
	}
	if !locked {
		return nil, interfaces.ErrDeploymentLocked
	}
	return fl, nil
}
