// Package version reports the mowerctl build version.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Set at build time with:
//
//	go build -ldflags="-X github.com/muurk/mowerble/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/mowerble/internal/version.Commit=abc1234"
//
// Anything left empty is filled from the module's VCS build info on first use.
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

// Info describes the running binary
type Info struct {
	Version   string
	Commit    string
	GoVersion string
	Platform  string
}

var resolveOnce sync.Once

// Get returns the build information
func Get() Info {
	resolveOnce.Do(func() {
		if info, ok := debug.ReadBuildInfo(); ok {
			Version, Commit = resolve(Version, Commit, info.Main.Version, info.Settings)
		} else {
			Version, Commit = resolve(Version, Commit, "", nil)
		}
	})
	return Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// resolve fills version and commit from build info. A module version
// (from go install pkg@v1.2.3) wins over the VCS time.
func resolve(version, commit, moduleVersion string, settings []debug.BuildSetting) (string, string) {
	var revision, modified, vcsTime string
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			vcsTime = s.Value
		}
	}

	if commit == "" && revision != "" {
		commit = revision
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if modified == "true" {
			commit += "-dirty"
		}
	}

	if version == "" && moduleVersion != "" && moduleVersion != "(devel)" {
		version = moduleVersion
	}
	if version == "" && vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			version = "dev-" + t.Format("20060102")
		}
	}

	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	return version, commit
}

// Full returns the full version string including commit
func Full() string {
	i := Get()
	return fmt.Sprintf("%s (commit: %s, %s, %s)", i.Version, i.Commit, i.GoVersion, i.Platform)
}
