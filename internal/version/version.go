// Package version holds build metadata stamped in with -ldflags -X.
package version

import "fmt"

var (
	// Version is the release of featuresweep.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build metadata for a -version flag.
func String(program string) string {
	return fmt.Sprintf("%s %s (%s, built %s)", program, Version, GitSHA, BuildTime)
}
