package contracts

import (
	"fmt"
	"runtime"
)

// Version identifiers for the service and the artifacts it publishes.
const (
	// Version is the service release version.
	Version = "0.3.0"

	// DataFormatVersion identifies the layout of the indicator CSV
	// artifact. Bump when columns change meaning or order.
	DataFormatVersion = "v1"

	// APIVersion identifies the HTTP and WebSocket surface.
	APIVersion = "v1"
)

// Populated at build time via -ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// CurrentBuild reports version and build details for the running binary.
func CurrentBuild() BuildInfo {
	return BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// VersionString returns the human readable service version.
func VersionString() string {
	return fmt.Sprintf("SBP Lens v%s", Version)
}
