package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oshokin/venv-bootstrap/internal/toolchain"
)

var (
	// ErrInterpreterNotFound is returned when no interpreter binary exists
	// inside the environment directory.
	ErrInterpreterNotFound = errors.New("interpreter not found in environment")
	// errEmptyCertBundle is returned when certifi prints nothing usable.
	errEmptyCertBundle = errors.New("certifi reported an empty bundle path")
)

// interpreterSubpaths lists the interpreter locations tried inside an
// environment directory, in preference order for the current OS.
func interpreterSubpaths() []string {
	posix := []string{
		filepath.Join("bin", "python3"),
		filepath.Join("bin", "python"),
	}
	windows := []string{
		filepath.Join("Scripts", "python.exe"),
		"python.exe",
	}

	// conda on Windows puts python.exe at the prefix root, uv under
	// Scripts; on POSIX both use bin. Trying the other OS's layout last
	// keeps the resolution working on unusual setups (e.g. MSYS).
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return append(windows, posix...)
	}

	return append(posix, windows...)
}

// ResolveInterpreter locates the interpreter binary inside a provisioned
// environment, trying OS-specific subpaths.
func ResolveInterpreter(envDir string) (string, error) {
	for _, sub := range interpreterSubpaths() {
		candidate := filepath.Join(envDir, sub)

		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			return "", fmt.Errorf("resolve interpreter path: %w", err)
		}

		return abs, nil
	}

	return "", fmt.Errorf("%w: %s", ErrInterpreterNotFound, envDir)
}

// ResolveCertBundle asks the environment's interpreter for the certifi
// bundle shipped inside it. The returned path backs SSL_CERT_FILE and
// REQUESTS_CA_BUNDLE for subsequent installer calls.
func ResolveCertBundle(ctx context.Context, runner toolchain.Runner, python string) (string, error) {
	out, err := runner.Output(ctx, &toolchain.Command{
		Name: python,
		Args: []string{"-c", "import certifi; print(certifi.where())"},
	})
	if err != nil {
		return "", fmt.Errorf("resolve certifi bundle: %w", err)
	}

	if out == "" {
		return "", errEmptyCertBundle
	}

	return out, nil
}
