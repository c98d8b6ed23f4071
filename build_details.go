package oasengine

import (
	"fmt"
	"runtime"
	"strings"
)

// Set via ldflags during release builds.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Version returns the compiled version or 'dev' if run from source
func Version() string {
	return version
}

// Commit returns the git commit the binary was built from.
func Commit() string {
	return commit
}

// BuildTime returns the RFC3339 build timestamp.
func BuildTime() string {
	return buildTime
}

// GoVersion returns the Go runtime version.
func GoVersion() string {
	return runtime.Version()
}

// UserAgent returns the User-Agent string to use
func UserAgent() string {
	return fmt.Sprintf("oasengine/%s", version)
}

// BuildInfo formats all build metadata, one field per line.
func BuildInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version:    %s\n", Version())
	fmt.Fprintf(&b, "Commit:     %s\n", Commit())
	fmt.Fprintf(&b, "Build Time: %s\n", BuildTime())
	fmt.Fprintf(&b, "Go Version: %s", GoVersion())
	return b.String()
}
