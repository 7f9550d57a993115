// Command venv-bootstrap provisions a Python virtual environment, installs
// dependencies from a requirements manifest through package-index mirrors,
// and optionally installs a local package in editable mode.
package main

import "github.com/oshokin/venv-bootstrap/cmd/venv-bootstrap/cmd"

func main() {
	cmd.Execute()
}
