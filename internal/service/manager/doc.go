// Package manager abstracts the environment manager flavors (conda, uv)
// behind a common interface: binary discovery, create/update command lines,
// default mirror lists, and interpreter resolution inside a provisioned
// environment.
package manager
