package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the greengate release embedded from the VERSION file.
func Get() string {
	return strings.TrimSpace(versionContent)
}
