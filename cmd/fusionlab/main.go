package main

import (
	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/fusionlab/fusionlab/internal/cmd"
)

// Set via ldflags, e.g. -ldflags="-X main.version=1.0.0 -X main.commit=abc123"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		cmd.ExitWithCodeStderr(foundry.ExitFailure, "Command execution failed", err)
	}
}
