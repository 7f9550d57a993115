// Package config defines the YAML settings shared by the bootstrap commands.
//
// Every field has a usable default, so the tool works with no settings file
// present; Validate both checks and defaults a configuration in place.
package config
