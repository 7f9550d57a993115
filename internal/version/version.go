package version

import "fmt"

// Build identity, stamped through ldflags by the release pipeline. The
// defaults below cover ad-hoc `go build` binaries.
var (
	// Version is the semantic version of the bootstrap binary.
	Version = "1.0.0"
	// Commit is the short git SHA of the source tree (or "none").
	Commit = "none"
	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the version together with the commit and build time.
func Full() string {
	return fmt.Sprintf("venv-bootstrap %s (commit %s, built %s)", Version, Commit, BuildTime)
}
