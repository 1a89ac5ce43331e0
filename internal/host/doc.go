// Package host stands in for the native application when the deployer runs as a CLI.
//
// Host state lives in a JSON file next to the data root: whether an update is
// pending, the pending install request and the hashes the host has marked as
// failed or not yet run.
package host
