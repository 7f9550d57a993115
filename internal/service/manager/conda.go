package manager

import (
	"context"
	"fmt"

	"github.com/oshokin/venv-bootstrap/internal/config"
	"github.com/oshokin/venv-bootstrap/internal/toolchain"
)

// condaBinary is the environment manager executable for the conda flavor.
const condaBinary = "conda"

// condaMirrors is the flavor's default package-index list; the first entry
// is the primary index.
//
//nolint:gochecknoglobals // Flavor constants shared by DefaultMirrors and tests.
var condaMirrors = []string{
	"https://pypi.tuna.tsinghua.edu.cn/simple",
	"https://mirrors.aliyun.com/pypi/simple",
}

// Conda provisions environments through the conda binary using prefix-based
// (directory) environments rather than named ones.
type Conda struct {
	runner toolchain.Runner
}

// NewConda returns the conda-flavored Manager.
func NewConda(runner toolchain.Runner) *Conda {
	return &Conda{runner: runner}
}

// Name returns the flavor name.
func (c *Conda) Name() string {
	return config.ManagerConda
}

// Binary returns the executable looked up during preflight.
func (c *Conda) Binary() string {
	return condaBinary
}

// DefaultMirrors returns the flavor's package-index endpoints.
func (c *Conda) DefaultMirrors() []string {
	return append([]string(nil), condaMirrors...)
}

// Create provisions a fresh prefix environment with the pinned interpreter.
func (c *Conda) Create(ctx context.Context, envDir, pythonVersion string) error {
	cmd := &toolchain.Command{
		Name: condaBinary,
		Args: []string{
			"create",
			"--prefix", envDir,
			fmt.Sprintf("python=%s", pythonVersion),
			"--yes",
		},
	}

	return c.runner.Run(ctx, cmd)
}

// Update re-pins the interpreter inside an existing prefix environment.
// conda has no dedicated "update env" verb for prefixes; installing the
// pinned python into the prefix is the documented equivalent.
func (c *Conda) Update(ctx context.Context, envDir, pythonVersion string) error {
	cmd := &toolchain.Command{
		Name: condaBinary,
		Args: []string{
			"install",
			"--prefix", envDir,
			fmt.Sprintf("python=%s", pythonVersion),
			"--yes",
		},
	}

	return c.runner.Run(ctx, cmd)
}
