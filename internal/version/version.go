// Package version provides build-time version information for miniappctl.
package version

import "fmt"

var (
	// Version is the release version (e.g., git tag or "dev")
	Version = "dev"
	// Commit is the git commit hash
	Commit = "dev"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build information for `miniappctl version`
func String() string {
	return fmt.Sprintf("miniappctl %s (commit %s, built %s)", Version, Commit, BuildTime)
}
