// Package version carries build metadata, set at link time with
// -ldflags "-X github.com/banshee-data/mockdaq/internal/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the metadata for `mockdaq version`.
func String() string {
	return fmt.Sprintf("mockdaq %s (%s, built %s, %s)", Version, GitSHA, BuildTime, runtime.Version())
}
