package manager

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/venv-bootstrap/internal/config"
	"github.com/oshokin/venv-bootstrap/internal/toolchain"
)

// Manager abstracts an environment manager flavor. Both flavors provision
// the same kind of environment; they differ in the binary invoked, in the
// update command line, and in their default mirror list.
type Manager interface {
	// Name returns the flavor name as used in configuration.
	Name() string
	// Binary returns the executable looked up on PATH during preflight.
	Binary() string
	// DefaultMirrors returns the package-index endpoints used when the
	// configuration does not name any.
	DefaultMirrors() []string
	// Create provisions a fresh environment directory with the pinned
	// interpreter version.
	Create(ctx context.Context, envDir, pythonVersion string) error
	// Update re-pins the interpreter version inside an existing environment.
	Update(ctx context.Context, envDir, pythonVersion string) error
}

var (
	// errUnknownFlavor is returned for manager names outside the supported set.
	errUnknownFlavor = errors.New("unknown environment manager flavor")
	// errEnvPathIsFile is returned when a plain file occupies the environment path.
	errEnvPathIsFile = errors.New("environment path exists but is not a directory")
)

// ForFlavor returns the Manager implementation for a configured flavor name.
func ForFlavor(flavor string, runner toolchain.Runner) (Manager, error) {
	switch flavor {
	case config.ManagerConda:
		return NewConda(runner), nil
	case config.ManagerUV:
		return NewUV(runner), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownFlavor, flavor)
	}
}

// EnvDirExists reports whether the environment directory is already present.
// A plain file occupying the path is an error, not "exists".
func EnvDirExists(envDir string) (bool, error) {
	info, err := os.Stat(envDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat environment directory: %w", err)
	}

	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s", errEnvPathIsFile, envDir)
	}

	return true, nil
}
