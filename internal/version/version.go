package version

import "fmt"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	// The deployer reports it as the application version accepted by update packages.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	// It is persisted as nativeBuildTime in package metadata.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// IsBuildTimeKnown reports whether BuildTime was injected at build time.
func IsBuildTimeKnown() bool {
	return BuildTime != "" && BuildTime != "unknown"
}
