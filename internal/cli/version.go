package cmd

import (
	"fmt"

	"github.com/rohmanhakim/pyq-crawler/internal/build"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pyq-crawler %s (built %s)\n", build.FullVersion(), build.BuildTime)
	},
}
