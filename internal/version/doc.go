// Package version exposes build metadata for the deployer.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. The host adapter reads Version as the application version and
// BuildTime as the native build time written into package metadata.
package version
