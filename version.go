package swapflow

import _ "embed"

// Version is the release of the service, with a trailing newline.
//
//go:embed VERSION
var Version string
