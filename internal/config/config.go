package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config holds provisioning parameters for the bootstrap binary.
type Config struct {
	// Manager selects the environment manager flavor (conda or uv).
	Manager string `yaml:"manager"`
	// PythonVersion is the interpreter version pinned into the environment.
	PythonVersion string `yaml:"python_version"`
	// EnvDir is the target environment directory, created or updated in place.
	EnvDir string `yaml:"env_dir"`
	// RequirementsFile is the manifest passed to the package installer.
	RequirementsFile string `yaml:"requirements_file"`
	// Mirrors are package-index endpoints; the first is the primary index,
	// the rest become extra indexes. Empty means flavor defaults.
	Mirrors []string `yaml:"mirrors"`
	// CertBundle overrides the SSL certificate bundle path exported to pip.
	// Empty means resolve the environment's own certifi bundle.
	CertBundle string `yaml:"cert_bundle"`
	// CABundle overrides the CA bundle path exported to pip.
	// Empty means mirror CertBundle.
	CABundle string `yaml:"ca_bundle"`
	// EditablePath is a local package installed in editable mode after the
	// manifest. Empty disables the step.
	EditablePath string `yaml:"editable_path"`
	// Timeout bounds each subordinate tool invocation.
	Timeout time.Duration `yaml:"timeout"`
}

// Supported environment manager flavors.
const (
	// ManagerConda provisions via the conda binary.
	ManagerConda = "conda"
	// ManagerUV provisions via the uv binary.
	ManagerUV = "uv"
)

const (
	// DefaultConfigFilename is the default filename for bootstrap settings.
	DefaultConfigFilename = "venv-bootstrap-settings.yaml"

	// DefaultPythonVersion is the interpreter version pinned when none is configured.
	DefaultPythonVersion = "3.10"

	// DefaultEnvDir is the default target environment directory.
	DefaultEnvDir = ".venv"

	// DefaultRequirementsFile is the default manifest filename.
	DefaultRequirementsFile = "requirements.txt"

	// DefaultTimeout bounds each subordinate tool invocation. Provisioning
	// and dependency resolution can legitimately take a while.
	DefaultTimeout = 30 * time.Minute

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownManager is returned when the manager flavor is not recognized.
	errUnknownManager = errors.New("unknown environment manager")
	// errMirrorNotHTTPS is returned when a mirror endpoint is not an absolute https URL.
	errMirrorNotHTTPS = errors.New("mirror must be an absolute https URL")
)

// Load reads configuration from the provided path and validates essential fields.
// An empty path means the default settings filename, and its absence is not an
// error: flavor defaults cover every field, so the tool runs without any
// settings file at all. A path the caller named explicitly must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Defaults only.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided configuration and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Manager == "" {
		cfg.Manager = ManagerConda
	}

	if cfg.Manager != ManagerConda && cfg.Manager != ManagerUV {
		return fmt.Errorf("%w: %s", errUnknownManager, cfg.Manager)
	}

	if cfg.PythonVersion == "" {
		cfg.PythonVersion = DefaultPythonVersion
	}

	if cfg.EnvDir == "" {
		cfg.EnvDir = DefaultEnvDir
	}

	if cfg.RequirementsFile == "" {
		cfg.RequirementsFile = DefaultRequirementsFile
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	for _, mirror := range cfg.Mirrors {
		parsed, err := url.Parse(mirror)
		if err != nil {
			return fmt.Errorf("invalid mirror %q: %w", mirror, err)
		}

		if !parsed.IsAbs() || parsed.Scheme != "https" || parsed.Host == "" {
			return fmt.Errorf("%w: %s", errMirrorNotHTTPS, mirror)
		}
	}

	return expandPaths(cfg)
}

// expandPaths resolves a leading "~" in every user-supplied path.
func expandPaths(cfg *Config) error {
	for _, p := range []*string{
		&cfg.EnvDir,
		&cfg.RequirementsFile,
		&cfg.CertBundle,
		&cfg.CABundle,
		&cfg.EditablePath,
	} {
		if *p == "" {
			continue
		}

		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand path %q: %w", *p, err)
		}

		*p = expanded
	}

	return nil
}
