// Package pip builds and runs the package installer invocations: manifest
// installation against mirror endpoints and the optional editable install
// of a local package with SSL trust-store variables exported.
package pip
