// Package version reports the crewscontrol build version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// commit may be set at build time with -ldflags "-X .../internal/version.commit=abc123".
var commit string

// Get returns the current version, with whitespace trimmed.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the version with the build commit when known.
func String() string {
	if commit == "" {
		return Get()
	}
	return Get() + " (" + commit + ")"
}
