// Package bootstrap drives the provisioning workflow end to end:
// preflight checks, environment create/update through the selected manager
// flavor, interpreter resolution, dependency installation from the
// requirements manifest via mirror endpoints, the optional editable
// install of a local package, and the receipt that lets an unchanged
// manifest skip reinstallation.
package bootstrap
