package bootstrap

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/venv-bootstrap/internal/logger"

	// Ensure SHA512 is linked in for checksum calculation.
	_ "crypto/sha512"
)

const (
	// markerSuffix is appended to the environment directory path to form
	// the marker guarding against concurrent bootstraps of the same target.
	markerSuffix = ".bootstrap-marker"

	// bootstrapExecutable is the process name scanned for when deciding
	// whether a marker belongs to a live run or a crashed one.
	bootstrapExecutable = "venv-bootstrap"

	// checksumFunction hashes the manifest for the receipt.
	checksumFunction = crypto.SHA512
)

var (
	// errBootstrapAlreadyRunning indicates another bootstrap holds the
	// marker for this environment directory.
	errBootstrapAlreadyRunning = errors.New("another bootstrap is already running for this environment")
	// errHashUnavailable is returned when the checksum function is not linked in.
	errHashUnavailable = errors.New("hash function unavailable")
)

// markerPath places the marker next to the environment directory so two
// bootstraps of different targets never collide.
func markerPath(envDir string) string {
	return filepath.Clean(envDir) + markerSuffix
}

// acquireGuard creates the concurrency marker and returns its release
// function. A leftover marker from a crashed run is recovered when no
// other bootstrap process is alive.
func acquireGuard(ctx context.Context, envDir string) (func(context.Context), error) {
	marker := markerPath(envDir)

	// O_EXCL makes creation atomic: of two simultaneous bootstraps only
	// one wins, the other lands in the liveness check below.
	file, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, os.ErrExist) {
		if anotherBootstrapAlive() {
			return nil, errBootstrapAlreadyRunning
		}

		logger.WarnKV(ctx, "Removing stale bootstrap marker", "marker", marker)

		if err = os.Remove(marker); err != nil {
			return nil, fmt.Errorf("remove stale marker: %w", err)
		}

		file, err = os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	}

	if err != nil {
		return nil, fmt.Errorf("create marker: %w", err)
	}

	if err = file.Close(); err != nil {
		return nil, fmt.Errorf("close marker: %w", err)
	}

	release := func(ctx context.Context) {
		if err := os.Remove(marker); err != nil {
			logger.WarnKV(ctx, "Unable to remove bootstrap marker", "marker", marker, "error", err)
		}
	}

	return release, nil
}

// anotherBootstrapAlive scans the process table for a second bootstrap process.
func anotherBootstrapAlive() bool {
	processes, err := ps.Processes()
	if err != nil {
		// Unable to inspect the process table: assume the marker is live.
		return true
	}

	executable := bootstrapExecutable
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		executable += ".exe"
	}

	selfPID := os.Getpid()

	for _, process := range processes {
		if process.Pid() == selfPID {
			continue
		}

		if process.Executable() == executable {
			return true
		}
	}

	return false
}

// fileChecksum returns the base64-encoded checksum of a file's contents.
func fileChecksum(path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	if !checksumFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := checksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}
