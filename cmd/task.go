package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wjw0315/ape-dts/pkg/tasks"
)

var taskCmd = &cobra.Command{
	Use:   "task [options] [task...]",
	Short: "Runs tasks from the nearest tasks.star file",
	Long: `This command parses the first tasks.star file it finds (walking up from
the working directory) and executes the given tasks. Arguments of the form
name=value set script options; everything else is treated as a task name.
Without task names it lists the available tasks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		taskArgs := make([]string, 0)
		options := make(map[string]string)

		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		for _, part := range args {
			pos := strings.Index(part, "=")
			if pos > -1 {
				options[part[:pos]] = part[pos+1:]
			} else {
				taskArgs = append(taskArgs, part)
			}
		}

		logger := newLogger()
		ctx := tasks.WithLogger(cmd.Context(), &logger)

		wd, err := os.Getwd()
		if err != nil {
			return eris.Wrap(err, "failed to retrieve the current working directory")
		}

		path := wd
		var taskPath string
		for {
			taskPath = filepath.Join(path, "tasks.star")
			_, err := os.Stat(taskPath)
			if err == nil {
				break
			}
			if !eris.Is(err, os.ErrNotExist) {
				return eris.Wrapf(err, "failed to check %s", taskPath)
			}

			parent := filepath.Dir(path)
			if parent == path {
				return eris.New("no tasks.star file found")
			}

			path = parent
		}

		taskList, scriptOptions, err := tasks.Load(ctx, taskPath, filepath.Dir(taskPath), options)
		if err != nil {
			return eris.Wrap(err, "failed to parse tasks")
		}

		for name := range options {
			if _, ok := scriptOptions[name]; !ok {
				logger.Warn().Msgf("option %s is not declared by %s", name, taskPath)
			}
		}

		for _, name := range taskArgs {
			err = tasks.Run(ctx, name, taskList, dryRun, force)
			if err != nil {
				return eris.Wrapf(err, "failed task %s", name)
			}
		}

		if len(taskArgs) == 0 {
			fmt.Println("Available tasks:")
			maxNameLen := 0
			sortedNames := make([]string, 0, len(taskList))
			for _, task := range taskList {
				if len(task.Name) > maxNameLen {
					maxNameLen = len(task.Name)
				}

				sortedNames = append(sortedNames, task.Name)
			}

			sort.Strings(sortedNames)

			lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
			for _, name := range sortedNames {
				fmt.Printf(lineFmt, name+":", taskList[name].Desc)
			}
		}

		return nil
	},
}

func init() {
	taskCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	taskCmd.Flags().BoolP("force", "f", false, "force build; always execute the passed tasks even if they don't have to run")

	rootCmd.AddCommand(taskCmd)
}
