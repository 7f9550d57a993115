package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/venv-bootstrap/internal/config"
	"github.com/oshokin/venv-bootstrap/internal/logger"
	"github.com/oshokin/venv-bootstrap/internal/repository/receipt"
	"github.com/oshokin/venv-bootstrap/internal/service/common"
	"github.com/oshokin/venv-bootstrap/internal/service/manager"
	"github.com/oshokin/venv-bootstrap/internal/service/pip"
	"github.com/oshokin/venv-bootstrap/internal/toolchain"
)

// Options are inputs accepted by the bootstrap entry point. Non-empty
// fields override the corresponding configuration values.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Manager overrides the environment manager flavor (conda or uv).
	Manager string
	// PythonVersion overrides the pinned interpreter version.
	PythonVersion string
	// EnvDir overrides the target environment directory.
	EnvDir string
	// RequirementsFile overrides the manifest path.
	RequirementsFile string
	// EditablePath overrides the local editable package path.
	EditablePath string
	// Mirrors overrides the package-index endpoints.
	Mirrors []string
	// Force installs dependencies even when the receipt says nothing changed.
	Force bool
}

// ReceiptFilename is the bookkeeping file written next to the environment
// directory after a successful run.
const ReceiptFilename = "venv-bootstrap-receipt.yaml"

var (
	// errManagerNotFound is returned when the environment manager binary is
	// not discoverable on PATH.
	errManagerNotFound = errors.New("environment manager not found on PATH")
	// errManifestMissing is returned when the requirements manifest does not exist.
	errManifestMissing = errors.New("requirements manifest does not exist")
)

// bootstrap holds the resolved state for a single provisioning run.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type bootstrap struct {
	cfg        *config.Config     // Effective configuration after overrides.
	mgr        manager.Manager    // Selected environment manager flavor.
	runner     toolchain.Runner   // Executes subordinate tools.
	installer  *pip.Installer     // Drives pip through the environment interpreter.
	receipts   receipt.Repository // Bookkeeping for the skip decision.
	force      bool               // Install even when the receipt matches.
	envExisted bool               // Whether the update path ran instead of create.
	checksum   string             // Manifest checksum for the receipt.
}

// Run executes the provisioning workflow and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "venv-bootstrap")

	b, err := newBootstrap(ctx, opts, toolchain.NewExecRunner())
	if err != nil {
		return err
	}

	logger.Info(ctx, "Checking tool availability and manifest presence")

	// Preflight runs before the guard so a failed check leaves no marker behind.
	if err = b.preflight(ctx); err != nil {
		logger.ErrorKV(ctx, "Preflight failed", "error", err)
		return err
	}

	release, err := acquireGuard(ctx, b.cfg.EnvDir)
	if err != nil {
		return err
	}

	defer release(ctx)

	if err = b.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Bootstrap failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Environment is ready",
		"env_dir", b.cfg.EnvDir, "manager", b.mgr.Name(), "python", b.cfg.PythonVersion)

	return nil
}

// Preflight runs only the availability checks and reports what it found.
// Used by the `check` subcommand; it never touches the filesystem.
func Preflight(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "venv-bootstrap")

	b, err := newBootstrap(ctx, opts, toolchain.NewExecRunner())
	if err != nil {
		return err
	}

	return b.preflight(ctx)
}

// newBootstrap loads configuration, applies overrides, and wires the
// dependencies for a run.
func newBootstrap(ctx context.Context, opts *Options, runner toolchain.Runner) (*bootstrap, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	applyOverrides(cfg, opts)

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	mgr, err := manager.ForFlavor(cfg.Manager, runner)
	if err != nil {
		return nil, err
	}

	if len(cfg.Mirrors) == 0 {
		cfg.Mirrors = mgr.DefaultMirrors()
		logger.DebugKV(ctx, "Using flavor default mirrors", "mirrors", cfg.Mirrors)
	}

	receiptPath := filepath.Join(filepath.Dir(cfg.EnvDir), ReceiptFilename)

	return &bootstrap{
		cfg:       cfg,
		mgr:       mgr,
		runner:    runner,
		installer: pip.NewInstaller(runner),
		receipts:  receipt.NewFileRepository(receiptPath),
		force:     opts.Force,
	}, nil
}

// applyOverrides copies non-empty option values over the loaded configuration.
func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.Manager != "" {
		cfg.Manager = opts.Manager
	}

	if opts.PythonVersion != "" {
		cfg.PythonVersion = opts.PythonVersion
	}

	if opts.EnvDir != "" {
		cfg.EnvDir = opts.EnvDir
	}

	if opts.RequirementsFile != "" {
		cfg.RequirementsFile = opts.RequirementsFile
	}

	if opts.EditablePath != "" {
		cfg.EditablePath = opts.EditablePath
	}

	if len(opts.Mirrors) > 0 {
		cfg.Mirrors = opts.Mirrors
	}
}

// run walks the guarded part of the workflow: provision, resolve, install, receipt.
func (b *bootstrap) run(ctx context.Context) error {
	logger.Info(ctx, "Provisioning the environment")

	if err := b.provision(ctx); err != nil {
		return err
	}

	python, err := manager.ResolveInterpreter(b.cfg.EnvDir)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Resolved environment interpreter", "python", python)

	if b.shouldInstall(ctx) {
		logger.InfoKV(ctx, "Installing dependencies", "manifest", b.cfg.RequirementsFile)

		if err = b.installDependencies(ctx, python); err != nil {
			return err
		}
	} else {
		logger.Info(ctx, "Manifest unchanged since last run, skipping dependency installation")
	}

	if b.cfg.EditablePath != "" {
		logger.InfoKV(ctx, "Installing local package in editable mode", "path", b.cfg.EditablePath)

		if err = b.installEditable(ctx, python); err != nil {
			return err
		}
	}

	b.writeReceipt(ctx)

	return nil
}

// preflight verifies the environment manager binary is discoverable and the
// manifest file exists. Either failure aborts before anything is touched.
func (b *bootstrap) preflight(ctx context.Context) error {
	binPath, err := b.runner.LookPath(b.mgr.Binary())
	if err != nil {
		return fmt.Errorf("%w: %s", errManagerNotFound, b.mgr.Binary())
	}

	logger.InfoKV(ctx, "Environment manager is available", "binary", binPath)

	if _, err = os.Stat(b.cfg.RequirementsFile); err != nil {
		return fmt.Errorf("%w: %s", errManifestMissing, b.cfg.RequirementsFile)
	}

	logger.InfoKV(ctx, "Requirements manifest is present", "manifest", b.cfg.RequirementsFile)

	return nil
}

// provision creates the environment directory or updates its pinned
// interpreter when the directory already exists.
func (b *bootstrap) provision(ctx context.Context) error {
	exists, err := manager.EnvDirExists(b.cfg.EnvDir)
	if err != nil {
		return err
	}

	b.envExisted = exists

	stepCtx, cancel := b.stepContext(ctx)
	defer cancel()

	if exists {
		logger.InfoKV(ctx, "Environment exists, updating interpreter",
			"env_dir", b.cfg.EnvDir, "python", b.cfg.PythonVersion)

		if err = b.mgr.Update(stepCtx, b.cfg.EnvDir, b.cfg.PythonVersion); err != nil {
			return fmt.Errorf("update environment: %w", err)
		}

		return nil
	}

	logger.InfoKV(ctx, "Environment missing, creating it",
		"env_dir", b.cfg.EnvDir, "python", b.cfg.PythonVersion)

	if err = b.mgr.Create(stepCtx, b.cfg.EnvDir, b.cfg.PythonVersion); err != nil {
		return fmt.Errorf("create environment: %w", err)
	}

	return nil
}

// shouldInstall decides whether the dependency installation can be skipped:
// only when the environment pre-existed, the previous receipt matches the
// current manifest checksum and pin, and --force was not given.
func (b *bootstrap) shouldInstall(ctx context.Context) bool {
	checksum, err := fileChecksum(b.cfg.RequirementsFile)
	if err != nil {
		logger.WarnKV(ctx, "Unable to checksum manifest, installing", "error", err)
		return true
	}

	b.checksum = checksum

	if b.force || !b.envExisted {
		return true
	}

	prev, err := b.receipts.Load(ctx)
	if err != nil {
		if !errors.Is(err, receipt.ErrNotFound) {
			logger.WarnKV(ctx, "Unable to read previous receipt, installing", "error", err)
		}

		return true
	}

	if prev.Manager != b.mgr.Name() ||
		prev.PythonVersion != b.cfg.PythonVersion ||
		prev.RequirementsChecksum != checksum ||
		prev.EditablePath != b.cfg.EditablePath {
		return true
	}

	return false
}

// installDependencies installs the manifest through the environment interpreter.
func (b *bootstrap) installDependencies(ctx context.Context, python string) error {
	stepCtx, cancel := b.stepContext(ctx)
	defer cancel()

	return b.installer.InstallRequirements(stepCtx, python, b.cfg.RequirementsFile, b.cfg.Mirrors)
}

// installEditable installs the configured local package in editable mode.
// The certificate bundle defaults to the environment's own certifi bundle;
// a missing certifi downgrades to a run without the SSL variables.
func (b *bootstrap) installEditable(ctx context.Context, python string) error {
	certBundle := b.cfg.CertBundle
	if certBundle == "" {
		probeCtx, cancelProbe := b.stepContext(ctx)
		resolved, err := manager.ResolveCertBundle(probeCtx, b.runner, python)

		cancelProbe()

		if err != nil {
			logger.WarnKV(ctx, "Unable to resolve certifi bundle, SSL variables stay unset", "error", err)
		} else {
			certBundle = resolved
		}
	}

	caBundle := b.cfg.CABundle
	if caBundle == "" {
		caBundle = certBundle
	}

	stepCtx, cancel := b.stepContext(ctx)
	defer cancel()

	return b.installer.InstallEditable(stepCtx, python, b.cfg.EditablePath, b.cfg.Mirrors, certBundle, caBundle)
}

// writeReceipt records the successful run. Failures are logged, not fatal:
// the receipt only buys a skipped install next time.
func (b *bootstrap) writeReceipt(ctx context.Context) {
	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect actor for receipt", "error", err)
	}

	rec := &receipt.Receipt{
		Manager:              b.mgr.Name(),
		PythonVersion:        b.cfg.PythonVersion,
		RequirementsChecksum: b.checksum,
		EditablePath:         b.cfg.EditablePath,
		Timestamp:            time.Now().UTC(),
		ProvisionedBy:        actor,
	}

	if err = b.receipts.Save(ctx, rec); err != nil {
		logger.WarnKV(ctx, "Unable to write receipt", "error", err)
	}
}

// stepContext bounds a single subordinate tool invocation.
func (b *bootstrap) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.cfg.Timeout)
}
