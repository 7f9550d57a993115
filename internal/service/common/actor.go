//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"
)

// Actor identifies who provisioned an environment, for the receipt.
type Actor struct {
	// Hostname is the machine the bootstrap ran on.
	Hostname string `yaml:"hostname"`
	// Username is the OS account that ran the bootstrap.
	Username string `yaml:"username"`
}

// String renders the actor as user@host.
func (a *Actor) String() string {
	return fmt.Sprintf("%s@%s", a.Username, a.Hostname)
}

// DetectActor gathers host and user information for provisioning receipts.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
