// Package build holds build-time version information.
package build

// Version is the tool version, overridden at release time via
// -ldflags "-X go.trai.ch/forge/internal/build.Version=...".
var Version = "dev"
