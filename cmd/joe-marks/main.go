package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "joe-marks",
		Short: "Self-hosted bookmarks that stay in sync",
		Long: "Joe Marks keeps a personal bookmark list in sync across every device.\n" +
			"Run `joe-marks serve` on a server; the other commands talk to it with a\n" +
			"personal access token (MARKS_CLIENT_TOKEN).",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newVersionCmd(),
		newLsCmd(),
		newAddCmd(),
		newRmCmd(),
		newWatchCmd(),
		newImportCmd(),
		newExportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
