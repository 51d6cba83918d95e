package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.Version=..." at release time.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		commit, built := GitCommit, BuildTime
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				switch {
				case s.Key == "vcs.revision" && commit == "":
					commit = s.Value
				case s.Key == "vcs.time" && built == "":
					built = s.Value
				}
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tradesim %s (commit %s, built %s, %s)\n",
			Version, orUnknown(commit), orUnknown(built), runtime.Version())
	},
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
