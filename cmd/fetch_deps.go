package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wjw0315/ape-dts/pkg"
	"github.com/wjw0315/ape-dts/pkg/fetch"
)

var fetchDepsCmd = &cobra.Command{
	Use:   "fetch-deps",
	Short: "Downloads and unpacks pinned build dependencies",
	Long: `Downloads and unpacks the dependencies listed in images/DEPS.yml.
Downloads are verified against their recorded sha256 and skipped when the
stamp file says they are already up to date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := cmd.Flags().GetBool("update")
		if err != nil {
			return err
		}

		pkg.PrintTask("Loading config")
		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		imagesDir := filepath.Join(root, "images")
		cfg, err := fetch.LoadConfig(imagesDir)
		if err != nil {
			return err
		}

		pkg.PrintTask("Downloading dependencies")
		err = fetch.Sync(cmd.Context(), imagesDir, cfg, update)
		if err != nil {
			return err
		}

		if update {
			pkg.PrintTask("Updating checksums")
			err = fetch.SaveConfig(imagesDir, cfg)
			if err != nil {
				return err
			}
		}

		pkg.PrintTask("Done")
		return nil
	},
}

func init() {
	fetchDepsCmd.Flags().BoolP("update", "u", false, "accept the downloaded checksums and write them back to DEPS.yml")

	rootCmd.AddCommand(fetchDepsCmd)
}
