package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wjw0315/ape-dts/pkg/gitver"
)

func newLogger() zerolog.Logger {
	return zerolog.New(NewConsoleWriter())
}

// stringParam resolves a build parameter with the Makefile's ?= semantics,
// generalized: an explicitly set flag wins, then the environment variable,
// then the build.yml value, then the built-in default.
func stringParam(cmd *cobra.Command, flag, envName, fileValue, fallback string) (string, error) {
	if cmd.Flags().Changed(flag) {
		return cmd.Flags().GetString(flag)
	}

	if value, ok := os.LookupEnv(envName); ok {
		return value, nil
	}

	if fileValue != "" {
		return fileValue, nil
	}

	return fallback, nil
}

// resolveVersion expands the special value "git" to the version derived from
// the repository state.
func resolveVersion(version, root string) (string, error) {
	if version != "git" {
		return version, nil
	}

	return gitver.Describe(root)
}
