// Package version reports which build of lode is running. Release
// builds stamp the variables below with -ldflags; plain `go build`
// binaries fall back to the VCS metadata the toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time:
//
//	-ldflags "-X .../internal/version.Version=v1.2.3 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetVersion returns the stamped version, falling back to the module
// version or VCS revision from the embedded build info.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
				return "dev-" + setting.Value[:7]
			}
		}
	}
	return "dev"
}

// GetGitCommit returns the stamped commit hash, falling back to the
// embedded vcs.revision.
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return "unknown"
}

// GetShortVersion returns the one-line form used by `lode version`:
// the version plus an abbreviated commit when one is known.
func GetShortVersion() string {
	version := GetVersion()
	commit := GetGitCommit()

	if commit != "unknown" && len(commit) >= 7 {
		if version != "dev" {
			return fmt.Sprintf("%s (%s)", version, commit[:7])
		}
		return "dev-" + commit[:7]
	}
	return version
}

// GetDetailedVersion returns the multi-line form used by
// `lode version --detailed`.
func GetDetailedVersion() string {
	parts := []string{"Version: " + GetVersion()}

	if commit := GetGitCommit(); commit != "unknown" {
		parts = append(parts, "Commit: "+commit)
	}
	if built := buildTime(); !built.IsZero() {
		parts = append(parts, "Built: "+built.Format(time.RFC3339))
	}
	parts = append(parts,
		"Go: "+runtime.Version(),
		fmt.Sprintf("Platform: %s/%s", runtime.GOOS, runtime.GOARCH))

	return strings.Join(parts, "\n")
}

// buildTime parses the stamped RFC3339 build time; unstamped builds
// get a zero time and the line is omitted from the detailed output.
func buildTime() time.Time {
	if BuildTime == "" || BuildTime == "unknown" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, BuildTime)
	if err != nil {
		return time.Time{}
	}
	return t
}
