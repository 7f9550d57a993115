// Package toolchain wraps subordinate tool execution behind a Runner
// interface so the provisioning services can be exercised in tests with a
// fake instead of the real conda, uv, and pip binaries.
package toolchain
