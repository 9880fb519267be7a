// Package version holds the release version of the client and CLI.
package version

// Version is overridden at build time with
// -ldflags "-X github.com/labstep/labstep-go/internal/version.Version=..."
var Version = "0.1.0-dev"
