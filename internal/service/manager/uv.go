package manager

import (
	"context"

	"github.com/oshokin/venv-bootstrap/internal/config"
	"github.com/oshokin/venv-bootstrap/internal/toolchain"
)

// uvBinary is the environment manager executable for the uv flavor.
const uvBinary = "uv"

//nolint:gochecknoglobals // Flavor constants shared by DefaultMirrors and tests.
var uvMirrors = []string{
	"https://mirrors.aliyun.com/pypi/simple",
}

// UV provisions environments through the uv binary.
type UV struct {
	runner toolchain.Runner
}

// NewUV returns the uv-flavored Manager.
func NewUV(runner toolchain.Runner) *UV {
	return &UV{runner: runner}
}

// Name returns the flavor name.
func (u *UV) Name() string {
	return config.ManagerUV
}

// Binary returns the executable looked up during preflight.
func (u *UV) Binary() string {
	return uvBinary
}

// DefaultMirrors returns the flavor's package-index endpoints.
func (u *UV) DefaultMirrors() []string {
	return append([]string(nil), uvMirrors...)
}

// Create provisions a fresh virtual environment with the pinned interpreter.
func (u *UV) Create(ctx context.Context, envDir, pythonVersion string) error {
	cmd := &toolchain.Command{
		Name: uvBinary,
		Args: []string{
			"venv", envDir,
			"--python", pythonVersion,
			"--seed",
		},
	}

	return u.runner.Run(ctx, cmd)
}

// Update re-pins the interpreter inside an existing environment directory.
func (u *UV) Update(ctx context.Context, envDir, pythonVersion string) error {
	cmd := &toolchain.Command{
		Name: uvBinary,
		Args: []string{
			"venv", envDir,
			"--python", pythonVersion,
			"--seed",
			"--allow-existing",
		},
	}

	return u.runner.Run(ctx, cmd)
}
