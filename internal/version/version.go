package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is set at build time with -ldflags and falls back to the
	// module version embedded by go install.
	Version = "dev"
	// Commit is the VCS revision, when the toolchain recorded one.
	Commit = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	if Commit == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				Commit = s.Value[:7]
			}
		}
	}
}

// String renders "glyphx <version> [commit] <os>/<arch>".
func String() string {
	s := "glyphx " + Version
	if Commit != "" {
		s += " " + Commit
	}
	return fmt.Sprintf("%s %s/%s", s, runtime.GOOS, runtime.GOARCH)
}
