// Package version carries build metadata stamped in at link time via
// -ldflags "-X github.com/you/eaglechat/internal/version.Version=...".
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)
