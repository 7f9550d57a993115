package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/venv-bootstrap/internal/config"
	"github.com/oshokin/venv-bootstrap/internal/repository/receipt"
	"github.com/oshokin/venv-bootstrap/internal/service/pip"
	"github.com/oshokin/venv-bootstrap/internal/toolchain"
)

var errNoSuchBinary = errors.New("executable file not found")

// fakeRunner records invocations instead of executing anything.
type fakeRunner struct {
	// commands stores every command passed to Run or Output, in order.
	commands []*toolchain.Command
	// bounded records, per command, whether its context carried a deadline.
	bounded []bool
	// missing marks executables LookPath should fail for.
	missing map[string]bool
	// output is returned by Output calls.
	output string
}

func (f *fakeRunner) LookPath(file string) (string, error) {
	if f.missing[file] {
		return "", errNoSuchBinary
	}

	return "/usr/bin/" + file, nil
}

func (f *fakeRunner) record(ctx context.Context, cmd *toolchain.Command) {
	_, hasDeadline := ctx.Deadline()

	f.commands = append(f.commands, cmd)
	f.bounded = append(f.bounded, hasDeadline)
}

func (f *fakeRunner) Run(ctx context.Context, cmd *toolchain.Command) error {
	f.record(ctx, cmd)

	return nil
}

func (f *fakeRunner) Output(ctx context.Context, cmd *toolchain.Command) (string, error) {
	f.record(ctx, cmd)

	return f.output, nil
}

// fakeManager provisions a minimal on-disk environment layout so
// interpreter resolution works against it.
type fakeManager struct {
	createCalls int
	updateCalls int
}

func (m *fakeManager) Name() string             { return config.ManagerConda }
func (m *fakeManager) Binary() string           { return "conda" }
func (m *fakeManager) DefaultMirrors() []string { return []string{"https://pypi.example.com/simple"} }

func (m *fakeManager) Create(_ context.Context, envDir, _ string) error {
	m.createCalls++

	return writeFakeInterpreter(envDir)
}

func (m *fakeManager) Update(_ context.Context, envDir, _ string) error {
	m.updateCalls++

	return writeFakeInterpreter(envDir)
}

func writeFakeInterpreter(envDir string) error {
	if err := os.MkdirAll(filepath.Join(envDir, "bin"), 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(envDir, "bin", "python3"), []byte("#!"), 0o755)
}

// memoryReceipts is an in-memory Repository for tests.
type memoryReceipts struct {
	rec     *receipt.Receipt
	loadErr error
	saved   *receipt.Receipt
}

func (m *memoryReceipts) Load(context.Context) (*receipt.Receipt, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}

	if m.rec == nil {
		return nil, receipt.ErrNotFound
	}

	return m.rec, nil
}

func (m *memoryReceipts) Save(_ context.Context, rec *receipt.Receipt) error {
	m.saved = rec

	return nil
}

// newTestBootstrap assembles a bootstrap over fakes and a temp working tree.
func newTestBootstrap(t *testing.T, runner *fakeRunner, mgr *fakeManager) (*bootstrap, string) {
	t.Helper()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "requirements.txt")
	require.NoError(t, os.WriteFile(manifest, []byte("langextract>=1.0\n"), 0o600))

	cfg := &config.Config{
		Manager:          config.ManagerConda,
		PythonVersion:    "3.10",
		EnvDir:           filepath.Join(dir, ".venv"),
		RequirementsFile: manifest,
		Mirrors:          []string{"https://pypi.example.com/simple"},
		Timeout:          time.Minute,
	}

	return &bootstrap{
		cfg:       cfg,
		mgr:       mgr,
		runner:    runner,
		installer: pip.NewInstaller(runner),
		receipts:  new(memoryReceipts),
	}, dir
}

// TestPreflightManagerMissing fails with the manager diagnostic when the
// binary is not on PATH.
func TestPreflightManagerMissing(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{missing: map[string]bool{"conda": true}}
	b, _ := newTestBootstrap(t, runner, new(fakeManager))

	err := b.preflight(context.Background())
	require.ErrorIs(t, err, errManagerNotFound)
	require.ErrorContains(t, err, "conda")
}

// TestPreflightManifestMissing fails with the manifest diagnostic when the
// requirements file is absent.
func TestPreflightManifestMissing(t *testing.T) {
	t.Parallel()

	runner := new(fakeRunner)
	b, dir := newTestBootstrap(t, runner, new(fakeManager))
	b.cfg.RequirementsFile = filepath.Join(dir, "missing.txt")

	err := b.preflight(context.Background())
	require.ErrorIs(t, err, errManifestMissing)
	require.ErrorContains(t, err, "missing.txt")
}

// TestProvisionCreatesWhenMissing exercises the create path for an absent
// environment directory.
func TestProvisionCreatesWhenMissing(t *testing.T) {
	t.Parallel()

	mgr := new(fakeManager)
	b, _ := newTestBootstrap(t, new(fakeRunner), mgr)

	require.NoError(t, b.provision(context.Background()))
	require.Equal(t, 1, mgr.createCalls)
	require.Zero(t, mgr.updateCalls)
	require.False(t, b.envExisted)
}

// TestProvisionUpdatesWhenPresent exercises the update path for an existing
// environment directory.
func TestProvisionUpdatesWhenPresent(t *testing.T) {
	t.Parallel()

	mgr := new(fakeManager)
	b, _ := newTestBootstrap(t, new(fakeRunner), mgr)
	require.NoError(t, os.MkdirAll(b.cfg.EnvDir, 0o755))

	require.NoError(t, b.provision(context.Background()))
	require.Zero(t, mgr.createCalls)
	require.Equal(t, 1, mgr.updateCalls)
	require.True(t, b.envExisted)
}

// TestRunFullWorkflow walks the whole pipeline: provision, install,
// editable install with SSL variables, receipt.
func TestRunFullWorkflow(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: "/env/certifi/cacert.pem"}
	mgr := new(fakeManager)
	b, dir := newTestBootstrap(t, runner, mgr)
	b.cfg.EditablePath = filepath.Join(dir, "plugin")

	require.NoError(t, b.run(context.Background()))
	require.Equal(t, 1, mgr.createCalls)

	// Requirements install, certifi resolution, editable install, every
	// one bounded by the step timeout.
	require.Len(t, runner.commands, 3)
	require.Equal(t, []bool{true, true, true}, runner.bounded)
	require.Contains(t, runner.commands[0].Args, "--requirement")
	require.Contains(t, runner.commands[0].Args, "--trusted-host")
	require.Contains(t, runner.commands[2].Args, "--editable")
	require.Contains(t, runner.commands[2].Env, "SSL_CERT_FILE=/env/certifi/cacert.pem")
	require.Contains(t, runner.commands[2].Env, "REQUESTS_CA_BUNDLE=/env/certifi/cacert.pem")
	require.Contains(t, runner.commands[2].Env, "SETUPTOOLS_USE_DISTUTILS=stdlib")

	// Receipt captured the run.
	mem, ok := b.receipts.(*memoryReceipts)
	require.True(t, ok)
	require.NotNil(t, mem.saved)
	require.Equal(t, config.ManagerConda, mem.saved.Manager)
	require.NotEmpty(t, mem.saved.RequirementsChecksum)
}

// TestShouldInstallSkipDecision verifies the receipt-driven skip: an
// unchanged manifest in an existing environment installs nothing, while
// force, checksum drift, or a fresh environment install again.
func TestShouldInstallSkipDecision(t *testing.T) {
	t.Parallel()

	runner := new(fakeRunner)
	b, _ := newTestBootstrap(t, runner, new(fakeManager))
	ctx := context.Background()

	checksum, err := fileChecksum(b.cfg.RequirementsFile)
	require.NoError(t, err)

	matching := &receipt.Receipt{
		Manager:              config.ManagerConda,
		PythonVersion:        "3.10",
		RequirementsChecksum: checksum,
	}

	// Existing env + matching receipt: skip.
	b.receipts = &memoryReceipts{rec: matching}
	b.envExisted = true
	require.False(t, b.shouldInstall(ctx))

	// Force wins.
	b.force = true
	require.True(t, b.shouldInstall(ctx))
	b.force = false

	// Fresh environment always installs.
	b.envExisted = false
	require.True(t, b.shouldInstall(ctx))
	b.envExisted = true

	// Checksum drift installs.
	b.receipts = &memoryReceipts{rec: &receipt.Receipt{
		Manager:              config.ManagerConda,
		PythonVersion:        "3.10",
		RequirementsChecksum: "c3RhbGU=",
	}}
	require.True(t, b.shouldInstall(ctx))

	// No receipt installs.
	b.receipts = new(memoryReceipts)
	require.True(t, b.shouldInstall(ctx))

	// An unreadable receipt installs instead of failing the run.
	b.receipts = &memoryReceipts{loadErr: errors.New("yaml: control characters are not allowed")}
	require.True(t, b.shouldInstall(ctx))
}

// TestRunFailedPreflightLeavesNoMarker drives the public entry point with a
// missing manifest and checks that nothing was written next to the
// environment directory.
func TestRunFailedPreflightLeavesNoMarker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	envDir := filepath.Join(dir, ".venv")

	err := Run(context.Background(), &Options{
		EnvDir:           envDir,
		RequirementsFile: filepath.Join(dir, "missing.txt"),
	})
	require.Error(t, err)

	_, err = os.Stat(markerPath(envDir))
	require.ErrorIs(t, err, os.ErrNotExist)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestGuardLifecycle covers marker creation, stale recovery, and release.
func TestGuardLifecycle(t *testing.T) {
	t.Parallel()

	envDir := filepath.Join(t.TempDir(), ".venv")
	ctx := context.Background()

	release, err := acquireGuard(ctx, envDir)
	require.NoError(t, err)

	marker := markerPath(envDir)
	_, err = os.Stat(marker)
	require.NoError(t, err)

	release(ctx)

	_, err = os.Stat(marker)
	require.ErrorIs(t, err, os.ErrNotExist)

	// A leftover marker with no live bootstrap process is recovered.
	require.NoError(t, os.WriteFile(marker, nil, 0o600))

	release, err = acquireGuard(ctx, envDir)
	require.NoError(t, err)
	release(ctx)
}

// TestFileChecksumStability ensures identical content hashes identically
// and different content does not.
func TestFileChecksumStability(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")

	require.NoError(t, os.WriteFile(a, []byte("langextract>=1.0\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("langextract>=1.0\n"), 0o600))

	first, err := fileChecksum(a)
	require.NoError(t, err)

	second, err := fileChecksum(b)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.NoError(t, os.WriteFile(b, []byte("langextract>=2.0\n"), 0o600))

	third, err := fileChecksum(b)
	require.NoError(t, err)
	require.NotEqual(t, first, third)
}
