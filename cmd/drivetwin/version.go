package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"mercator-hq/drivetwin/pkg/policy/library"
)

// Set with -ldflags "-X main.Version=... -X main.GitCommit=... -X main.BuildDate=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the build version, the Go toolchain and the number of built-in policy primitives.`,
	Run: func(cmd *cobra.Command, args []string) {
		rows := [][2]string{
			{"version", Version},
			{"commit", GitCommit},
			{"built", BuildDate},
			{"go", runtime.Version()},
			{"platform", runtime.GOOS + "/" + runtime.GOARCH},
			{"primitives", fmt.Sprint(len(library.Primitives()))},
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "drivetwin")
		for _, r := range rows {
			fmt.Fprintf(out, "  %-11s %s\n", r[0]+":", r[1])
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
