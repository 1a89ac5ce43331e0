// Package codepush contains core domain types for bundle update deployment.
//
// It defines Package (an update's identity and status), PackageInfoMetadata
// (the durable record shared with native code), install modes and options,
// the diff manifest, and the error taxonomy used across the deployer.
package codepush
