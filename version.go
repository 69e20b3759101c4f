package otd

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Runtime version numbers, bumped on release.
const (
	VersionMajor = 0
	VersionMinor = 1
	VersionMicro = 0
)

// Version returns the "major.minor.micro" runtime version string.
func Version() string {
	return fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionMicro)
}

// LibVersion is an alias for Version, kept separate from it because the
// original core distinguished a package version from a library ABI
// version; here they always move together.
func LibVersion() string { return Version() }

// BuildInfoT summarizes how this binary was built, for diagnostics
// output and bug reports.
type BuildInfoT struct {
	Version   string
	Scripting string
	GoVersion string
	Deps      []string
}

// BuildInfo reports the runtime version, the scripting host in use,
// the Go toolchain version, and the module's resolved dependencies.
func BuildInfo() BuildInfoT {
	bi := BuildInfoT{
		Version:   Version(),
		Scripting: "yaegi",
		GoVersion: runtime.Version(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, m := range info.Deps {
			bi.Deps = append(bi.Deps, fmt.Sprintf("%s@%s", m.Path, m.Version))
		}
	}
	return bi
}
