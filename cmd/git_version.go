package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wjw0315/ape-dts/pkg"
	"github.com/wjw0315/ape-dts/pkg/gitver"
)

var gitVersionCmd = &cobra.Command{
	Use:   "git-version",
	Short: "Prints the image version derived from the git repository",
	Long: `Prints the tag pointing at HEAD if there is one and the abbreviated
commit hash otherwise. A worktree with local modifications gets a -dirty
suffix. The build commands accept --version git to use this value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		version, err := gitver.Describe(root)
		if err != nil {
			return err
		}

		fmt.Println(version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gitVersionCmd)
}
