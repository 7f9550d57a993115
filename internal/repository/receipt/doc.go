// Package receipt persists a record of the last successful bootstrap.
//
// The receipt is advisory bookkeeping owned by this tool, not environment
// state: a missing or unreadable receipt simply means the next run installs
// everything again.
package receipt
