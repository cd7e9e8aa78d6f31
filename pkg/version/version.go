// Package version reports termdex build information.
package version

import (
	"fmt"
	"runtime"
)

// Version is injected at build time:
//
//	-X github.com/bold-kg/termdex/pkg/version.Version=$(VERSION)
var Version = "dev"

var (
	// Commit is the short git commit, set via ldflags.
	Commit = "unknown"
	// Date is the RFC3339 build date, set via ldflags.
	Date = "unknown"
	// GoVersion is the toolchain the binary was built with.
	GoVersion = runtime.Version()
)

// BuildInfo is the JSON form of `termdex version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("termdex %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns just the version.
func Short() string {
	return Version
}

// GetInfo returns structured build information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
