// Package common holds helpers shared by several services.
//
// It currently provides detection of the current system actor
// (hostname/username) recorded in provisioning receipts.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
