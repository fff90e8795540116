// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

var (
	// Version is the release version.
	// It should be populated by the build system (ldflags), for example
	// -X github.com/larsks/pubsub-example/internal/version.Version=v0.2.0.
	Version = "v0.1.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String formats the build metadata for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
