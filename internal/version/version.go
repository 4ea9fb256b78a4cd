/*
Package version holds the persona-mcp build information.

The values are set via ldflags during build:

	go build -ldflags "-X github.com/khanglvm/persona-mcp/internal/version.Version=v0.3.0 \
	  -X github.com/khanglvm/persona-mcp/internal/version.Commit=$(git rev-parse --short HEAD) \
	  -X github.com/khanglvm/persona-mcp/internal/version.Date=$(date -u +%Y-%m-%d)" ./cmd/persona-mcp

Unset values describe a "dev" build. Version is also reported to MCP
clients in the initialize response and by the HTTP API index route.
*/
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info describes one build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
}

// Get returns the running build's information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}
}

// IsDev reports whether the build carries no release tag.
func (i Info) IsDev() bool {
	return i.Version == "" || i.Version == "dev"
}

// String renders the build for --version output.
func (i Info) String() string {
	if i.IsDev() {
		return "dev (development build)"
	}
	return i.Version + " (commit: " + i.Commit + ", built: " + i.Date + ")"
}
