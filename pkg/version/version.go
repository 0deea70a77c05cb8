// Package version reports build information set through -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X github.com/rshade/batchload/pkg/version.version=...".
//
//nolint:gochecknoglobals // Linker-populated build metadata.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// GetVersion returns the release version.
func GetVersion() string {
	return version
}

// GetGitCommit returns the commit the binary was built from.
func GetGitCommit() string {
	return gitCommit
}

// GetBuildDate returns the build timestamp.
func GetBuildDate() string {
	return buildDate
}

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s/%s, %s)",
		version, gitCommit, buildDate, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
