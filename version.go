package chronicle

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the release of the chronicle module.
var Version = strings.TrimSpace(version)
