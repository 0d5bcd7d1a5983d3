package callflow

import _ "embed"

// Version is the release of the callflow module, read from the VERSION file.
//
//go:embed VERSION
var Version string
