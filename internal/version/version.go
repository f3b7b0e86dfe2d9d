// Package version reports what build of camstream is running.
//
// Release builds set the variables below with -ldflags -X. Plain go build
// leaves them empty and the values embedded by the toolchain are used.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set at link time.
var (
	Version   string
	GitCommit string
	BuildDate string
	BuildID   string
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	Modified  bool   `json:"modified"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

var embedded = sync.OnceValue(func() Info {
	var i Info
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return i
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		i.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			i.GitCommit = s.Value
		case "vcs.time":
			i.BuildDate = s.Value
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
	return i
})

// Get merges link-time values over what the toolchain embedded.
func Get() Info {
	i := embedded()
	i.Version = first(Version, i.Version, "dev")
	i.GitCommit = first(GitCommit, i.GitCommit, "unknown")
	i.BuildDate = first(BuildDate, i.BuildDate, "unknown")
	i.BuildID = first(BuildID, "unknown")
	i.GoVersion = runtime.Version()
	i.Compiler = runtime.Compiler
	i.Platform = runtime.GOOS + "/" + runtime.GOARCH
	return i
}

// String returns the version alone.
func String() string {
	return Get().Version
}

// Summary is the line printed by the version command.
func Summary() string {
	i := Get()
	commit := i.GitCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("camstream %s (commit %s, built %s, %s %s)", i.Version, commit, i.BuildDate, i.GoVersion, i.Platform)
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
