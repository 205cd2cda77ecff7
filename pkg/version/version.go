// Package version holds the build version reported by the API and logs.
package version

// Version is overridden at build time via -ldflags "-X vibewalk/pkg/version.Version=...".
var Version = "v0.3.0-dev"
