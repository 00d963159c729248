package main

import (
	"github.com/evalforge/modelrun/internal/cmd"
)

// Build-time metadata, overridden via -ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	cmd.Execute()
}
