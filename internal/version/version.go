// Package version reports the build the binaries were produced from.
package version

import "fmt"

// Overridden at link time:
//
//	-ldflags "-X github.com/kailas-cloud/syllabus/internal/version.Version=v1.2.0"
//
//nolint:gochecknoglobals // link-time injection
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build for --version output and startup logs.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
