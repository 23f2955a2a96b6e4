package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wjw0315/ape-dts/pkg"
	"github.com/wjw0315/ape-dts/pkg/config"
	"github.com/wjw0315/ape-dts/pkg/images"
	"github.com/wjw0315/ape-dts/pkg/shell"
)

var releaseBuildCmd = &cobra.Command{
	Use:   "release-build",
	Short: "Builds the ape-dts build environment image",
	Long: `Runs images/build.sh with the computed image tag and the git token.
The token is passed as an empty second argument when it isn't set so the
script always receives both positional parameters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		cfg, err := config.Load(root)
		if err != nil {
			return err
		}

		image, err := stringParam(cmd, "build-img", "BUILD_IMG", cfg.BuildImg, config.DefaultBuildImg)
		if err != nil {
			return err
		}

		version, err := stringParam(cmd, "version", "VERSION", cfg.Version, config.DefaultVersion)
		if err != nil {
			return err
		}

		version, err = resolveVersion(version, root)
		if err != nil {
			return err
		}

		token, err := stringParam(cmd, "git-token", "GIT_TOKEN", "", "")
		if err != nil {
			return err
		}

		opts := images.ReleaseOptions{
			Image:   image,
			Version: version,
			Token:   token,
		}

		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		if dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), shell.Cmd{Args: opts.Args()}.String())
			return nil
		}

		pkg.PrintTask(fmt.Sprintf("Building %s", opts.Tag()))
		return images.Release(cmd.Context(), filepath.Join(root, "images"), opts)
	},
}

func init() {
	releaseBuildCmd.Flags().String("build-img", config.DefaultBuildImg, "image repository for the build environment (env BUILD_IMG)")
	releaseBuildCmd.Flags().String("version", config.DefaultVersion, `image tag, "git" derives it from the repository (env VERSION)`)
	releaseBuildCmd.Flags().String("git-token", "", "git access token handed to build.sh (env GIT_TOKEN)")
	releaseBuildCmd.Flags().BoolP("dry", "n", false, "only print the command, don't execute anything")

	rootCmd.AddCommand(releaseBuildCmd)
}
