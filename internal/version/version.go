// Package version carries build metadata set through -ldflags.
package version

// Service names the binary in telemetry and the version endpoint.
const Service = "arcane-duels"

var (
	Version = "dev"
	Commit  = "none"
	Date    = ""
	Dirty   = "false"
)
