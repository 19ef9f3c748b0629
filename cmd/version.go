package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spigell/jobscout/internal/sources"
)

// Set at build time with -ldflags "-X github.com/spigell/jobscout/cmd.version=...".
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the compiled-in source kinds",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s version: %s (%s)\n", app, version, runtime.Version())
		fmt.Fprintf(out, "source kinds: %s\n", strings.Join(sources.Kinds(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
