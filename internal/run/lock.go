package run

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock guards a workdir against concurrent pipeline processes.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the workdir lock without blocking. A held lock from
// another process returns an error rather than waiting.
func AcquireLock(workDir string) (*Lock, error) {
	fl := flock.New(filepath.Join(workDir, "marketreel.lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workdir lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("workdir %s is in use by another marketreel process", workDir)
	}
	return &Lock{fl: fl}, nil
}

// Release gives up the workdir lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
