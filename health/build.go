package health

import (
	"os"
	"runtime"
	"runtime/debug"
	"time"
)

type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time,omitempty"`
	GoVersion string    `json:"go_version"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
}

// GetBuildInfo reads VCS stamps embedded by the Go toolchain. BUILD_VERSION,
// BUILD_COMMIT and BUILD_TIME override them for images built without VCS data.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   "dev",
		GitCommit: "unknown",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.GitCommit = shortCommit(setting.Value)
			case "vcs.time":
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					info.BuildTime = t
				}
			}
		}
	}

	if v := os.Getenv("BUILD_VERSION"); v != "" {
		info.Version = v
	}
	if v := os.Getenv("BUILD_COMMIT"); v != "" {
		info.GitCommit = shortCommit(v)
	}
	if v := os.Getenv("BUILD_TIME"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			info.BuildTime = t
		}
	}

	return info
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
