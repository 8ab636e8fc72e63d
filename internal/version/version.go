// Package version exposes build version information.
package version

import "fmt"

// Set at build time via -ldflags "-X github.com/wirepoll/wirepoll/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns the version and commit for the -version flag.
func Info() string {
	return fmt.Sprintf("wirepoll %s (%s)", Version, Commit)
}
