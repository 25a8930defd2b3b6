package main

import (
	"os"

	"github.com/PatchLens/cs-entry-lens/internal/logging"
	"github.com/PatchLens/cs-entry-lens/lens"
	"github.com/PatchLens/cs-entry-lens/lens/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := cmd.NewRootCommand(cmd.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := rootCmd.Execute(); err != nil {
		logging.Default().Errorf("%s%v", lens.ErrorLogPrefix, err)
		os.Exit(1)
	}
}
