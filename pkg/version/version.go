package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Get reports the girder release version recorded in the VERSION file.
func Get() string {
	return strings.TrimSpace(version)
}
