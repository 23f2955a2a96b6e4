package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tool",
	Short: "Build tools for ape-dts",
	Long: `This command bundles the tools that are used to build and publish the
ape-dts container images. This includes the image build targets that used to
live in the Makefile, a task runner for everything else and a helper to
download pinned build dependencies.`,
}

// Execute runs the CLI and returns whatever error the invoked command
// produced. Subprocess exit codes stay reachable through shell.ExitCode.
func Execute() error {
	return rootCmd.Execute()
}
