package main

import (
	"os"

	"github.com/wjw0315/ape-dts/cmd"
	"github.com/wjw0315/ape-dts/pkg/shell"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		// keep the exit code of a failed build command intact
		if code, ok := shell.ExitCode(err); ok {
			os.Exit(code)
		}
		os.Exit(1)
	}
}
