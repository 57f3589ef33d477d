// Package version reports the build version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// UserAgent identifies CLI and dashboard requests to the server.
func UserAgent() string {
	return "lincoln/" + Get()
}
