package cmd

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wjw0315/ape-dts/pkg"
	"github.com/wjw0315/ape-dts/pkg/config"
	"github.com/wjw0315/ape-dts/pkg/images"
)

var dockerBuildCmd = &cobra.Command{
	Use:   "docker-build",
	Short: "Builds the ape-dts release image",
	Long: `Builds the release image from Dockerfile_release at the project root,
passing the task config path and the module name as build arguments. The
default engine shells out to docker build; --engine api talks to the Docker
daemon directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		cfg, err := config.Load(root)
		if err != nil {
			return err
		}

		image, err := stringParam(cmd, "release-img", "RELEASE_IMG", cfg.ReleaseImg, config.DefaultReleaseImg)
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

		configPath, err := stringParam(cmd, "config-path", "CONFIG_PATH", cfg.ConfigPath, config.DefaultConfigPath)
		if err != nil {
			return err
		}

		moduleName, err := stringParam(cmd, "module-name", "MODULE_NAME", cfg.ModuleName, config.DefaultModuleName)
		if err != nil {
			return err
		}

		opts := images.BuildOptions{
			Image:      image,
			Version:    version,
			Dockerfile: "Dockerfile_release",
			Context:    ".",
			BuildArgs: []images.BuildArg{
				{Name: "LOCAL_CONFIG_PATH", Value: configPath},
				{Name: "MODULE_NAME", Value: moduleName},
			},
		}

		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		if dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), opts.Command())
			return nil
		}

		engine, err := cmd.Flags().GetString("engine")
		if err != nil {
			return err
		}

		pkg.PrintTask(fmt.Sprintf("Building %s", opts.Tag()))
		switch engine {
		case "cli":
			err = images.BuildCLI(cmd.Context(), root, opts)
		case "api":
			err = images.BuildAPI(cmd.Context(), root, opts)
		default:
			return eris.Errorf("unknown engine %s, expected cli or api", engine)
		}
		if err != nil {
			return err
		}

		push, err := cmd.Flags().GetBool("push")
		if err != nil {
			return err
		}

		if push {
			pkg.PrintTask(fmt.Sprintf("Pushing %s", opts.Tag()))
			return images.Push(cmd.Context(), opts)
		}

		return nil
	},
}

func init() {
	dockerBuildCmd.Flags().String("release-img", config.DefaultReleaseImg, "image repository for the release image (env RELEASE_IMG)")
	dockerBuildCmd.Flags().String("version", config.DefaultVersion, `image tag, "git" derives it from the repository (env VERSION)`)
	dockerBuildCmd.Flags().String("config-path", config.DefaultConfigPath, "task config baked into the image (env CONFIG_PATH)")
	dockerBuildCmd.Flags().String("module-name", config.DefaultModuleName, "module to build inside the image (env MODULE_NAME)")
	dockerBuildCmd.Flags().String("engine", "cli", "build engine (cli or api)")
	dockerBuildCmd.Flags().Bool("push", false, "push the image after a successful build")
	dockerBuildCmd.Flags().BoolP("dry", "n", false, "only print the command, don't execute anything")

	rootCmd.AddCommand(dockerBuildCmd)
}
