package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/venv-bootstrap/internal/config"
	"github.com/oshokin/venv-bootstrap/internal/logger"
	"github.com/oshokin/venv-bootstrap/internal/service/bootstrap"
	"github.com/oshokin/venv-bootstrap/internal/toolchain"
	"github.com/oshokin/venv-bootstrap/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the textual logging level applied before any command runs.
	logLevel string
	// options collects the bootstrap overrides from flags.
	options bootstrap.Options

	// rootCmd represents the base command that provisions the environment.
	rootCmd = &cobra.Command{
		Use:   "venv-bootstrap",
		Short: "Provision a Python virtual environment and install its dependencies",
		Long: "Provision a Python virtual environment through conda or uv, install " +
			"dependencies from a requirements manifest via package-index mirrors, and " +
			"optionally install a local package in editable mode with SSL trust-store " +
			"variables configured.",
		Args: cobra.NoArgs,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.ConfigPath = configPath

			return bootstrap.Run(ctx, &options)
		},
	}

	// checkCmd runs only the preflight checks, for CI and troubleshooting.
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Run the preflight checks without provisioning anything",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.ConfigPath = configPath

			return bootstrap.Preflight(ctx, &options)
		},
	}
)

// Execute runs the venv-bootstrap CLI. Preflight failures exit with status 1;
// a subordinate tool failure exits with that tool's own status.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		if code, ok := toolchain.ExitCode(err); ok && code > 0 {
			os.Exit(code)
		}

		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(checkCmd)

	// Setup command flags with consistent naming and descriptions.
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c",
		"", "path to configuration file (default "+config.DefaultConfigFilename+", missing is tolerated)")
	pf.StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug, info, warn, error, fatal)")
	pf.StringVarP(&options.Manager, "manager", "m", "", "environment manager flavor (conda or uv)")
	pf.StringVar(&options.PythonVersion, "python", "", "interpreter version pinned into the environment")
	pf.StringVarP(&options.EnvDir, "env-dir", "e", "", "target environment directory")
	pf.StringVarP(&options.RequirementsFile, "requirements", "r", "", "path to the requirements manifest")
	pf.StringSliceVar(&options.Mirrors, "mirror", nil, "package-index mirror URL (repeatable, first is primary)")

	rootCmd.Flags().StringVar(&options.EditablePath, "editable", "", "local package to install in editable mode")
	rootCmd.Flags().BoolVarP(&options.Force, "force", "f", false, "install dependencies even when the manifest is unchanged")
}
