package pip

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/oshokin/venv-bootstrap/internal/toolchain"
)

// Environment variables exported to the installer subprocess during the
// editable install. The certificate pair keeps pip and requests-based build
// hooks on the same trust store; the distutils flag keeps legacy build
// backends working on pinned interpreters.
const (
	// EnvSSLCertFile names the OpenSSL certificate bundle override.
	EnvSSLCertFile = "SSL_CERT_FILE"
	// EnvRequestsCABundle names the requests library CA bundle override.
	EnvRequestsCABundle = "REQUESTS_CA_BUNDLE"
	// EnvSetuptoolsUseDistutils selects the distutils implementation for
	// the build backend.
	EnvSetuptoolsUseDistutils = "SETUPTOOLS_USE_DISTUTILS"

	// setuptoolsDistutilsValue pins the stdlib distutils implementation.
	setuptoolsDistutilsValue = "stdlib"
)

// errNoMirrors is returned when installation is attempted without any
// package-index endpoint.
var errNoMirrors = errors.New("at least one package-index mirror is required")

// Installer drives pip through a provisioned environment's interpreter.
// Running pip as `<python> -m pip` sidesteps activation scripts entirely.
type Installer struct {
	runner toolchain.Runner
}

// NewInstaller returns an Installer backed by the provided runner.
func NewInstaller(runner toolchain.Runner) *Installer {
	return &Installer{runner: runner}
}

// TrustedHosts derives the unique hostnames of the mirror endpoints for
// pip's --trusted-host overrides. Unparsable entries are skipped; config
// validation already rejected them for configured mirrors.
func TrustedHosts(mirrors []string) []string {
	seen := make(map[string]struct{}, len(mirrors))
	hosts := make([]string, 0, len(mirrors))

	for _, mirror := range mirrors {
		parsed, err := url.Parse(mirror)
		if err != nil || parsed.Hostname() == "" {
			continue
		}

		host := parsed.Hostname()
		if _, ok := seen[host]; ok {
			continue
		}

		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}

	return hosts
}

// InstallRequirements installs the manifest into the environment, pointing
// pip at the mirror endpoints with trusted-host overrides.
func (i *Installer) InstallRequirements(ctx context.Context, python, manifest string, mirrors []string) error {
	args, err := indexArgs([]string{"-m", "pip", "install", "--requirement", manifest}, mirrors)
	if err != nil {
		return err
	}

	cmd := &toolchain.Command{
		Name: python,
		Args: args,
	}

	if err = i.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("install requirements: %w", err)
	}

	return nil
}

// InstallEditable installs a local package in editable mode with the SSL
// trust-store variables and the build-backend compatibility flag exported
// to the subprocess. Empty bundle paths leave the corresponding variable
// unset.
func (i *Installer) InstallEditable(
	ctx context.Context,
	python, packageDir string,
	mirrors []string,
	certBundle, caBundle string,
) error {
	args, err := indexArgs([]string{"-m", "pip", "install", "--editable", packageDir}, mirrors)
	if err != nil {
		return err
	}

	env := []string{
		fmt.Sprintf("%s=%s", EnvSetuptoolsUseDistutils, setuptoolsDistutilsValue),
	}
	if certBundle != "" {
		env = append(env, fmt.Sprintf("%s=%s", EnvSSLCertFile, certBundle))
	}

	if caBundle != "" {
		env = append(env, fmt.Sprintf("%s=%s", EnvRequestsCABundle, caBundle))
	}

	cmd := &toolchain.Command{
		Name: python,
		Args: args,
		Env:  env,
	}

	if err = i.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("install editable package: %w", err)
	}

	return nil
}

// indexArgs appends the index and trusted-host flags for the mirror list:
// the first mirror is the primary index, the rest are extra indexes.
func indexArgs(args, mirrors []string) ([]string, error) {
	if len(mirrors) == 0 {
		return nil, errNoMirrors
	}

	args = append(args, "--index-url", mirrors[0])
	for _, extra := range mirrors[1:] {
		args = append(args, "--extra-index-url", extra)
	}

	for _, host := range TrustedHosts(mirrors) {
		args = append(args, "--trusted-host", host)
	}

	return args, nil
}
