// Package version carries build metadata injected with ldflags:
// go build -ldflags "-X git.home.luguber.info/inful/kart/internal/version.Version=v0.3.0".
package version

import "fmt"

// Version is the release version of kart.
var Version = "unknown"

// Build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String returns the version line printed by --version.
func String() string {
	if GitCommit == "unknown" && BuildTime == "unknown" {
		return "kart " + Version
	}
	return fmt.Sprintf("kart %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
