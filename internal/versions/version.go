// Package versions reports what build of the archiver or differ is
// running. Release builds inject the values through -ldflags; anything
// built straight from a checkout falls back to the VCS stamp the Go
// toolchain embeds.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const unknown = "unknown"

// Injected at link time, e.g.
// -ldflags "-X .../internal/versions.Version=v1.2.0".
var (
	Version   = "dev"
	Commit    = unknown
	BuildDate = unknown
)

// VersionInfo is the printable build description.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo describes the running binary.
func GetVersionInfo() VersionInfo {
	return describe(Version, Commit, BuildDate)
}

func describe(version, commit, date string) VersionInfo {
	if strings.HasPrefix(version, "dev") {
		commit, date = vcsStamp(commit, date)
	}
	if version == "dev" && commit != unknown {
		// No release tag to show; name the build after the commit.
		version = "build-" + shortHash(commit)
	}
	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: formatDate(date),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// vcsStamp fills commit and date from the embedded build info, keeping any
// value the linker already set.
func vcsStamp(commit, date string) (string, string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, date
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == unknown {
				commit = s.Value
			}
		case "vcs.time":
			if date == unknown {
				date = s.Value
			}
		}
	}
	return commit, date
}

func shortHash(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

func formatDate(date string) string {
	t, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return date
	}
	return t.Format("2006-01-02 15:04:05 MST")
}
