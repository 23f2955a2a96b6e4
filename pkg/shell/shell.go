// Package shell runs build commands through an embedded POSIX shell
// (mvdan.cc/sh) so invocations behave the same on every platform.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Cmd describes a single command line to execute.
type Cmd struct {
	// Line is the raw shell command. Exactly one of Line or Args is set.
	Line string
	// Args is an argv that gets quoted into a command line verbatim.
	// Empty strings are preserved as empty positional arguments.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds extra environment entries layered over os.Environ().
	Env map[string]string
}

// String returns the shell representation of the command.
func (c Cmd) String() string {
	if c.Line != "" {
		return c.Line
	}

	parts := make([]string, len(c.Args))
	for idx, arg := range c.Args {
		quoted, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			// arg contains a null byte; there is no valid quoting for it
			quoted = fmt.Sprintf("%q", arg)
		}
		parts[idx] = quoted
	}
	return strings.Join(parts, " ")
}

func cmdEnviron(extra map[string]string) expand.Environ {
	envVars := os.Environ()
	for name, value := range extra {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// Run parses and executes the given command. The shell runs with -e so the
// first failing statement aborts the whole command. The subprocess failure is
// returned as-is which keeps the original exit status reachable via ExitCode.
func Run(ctx context.Context, cmd Cmd) error {
	parser := syntax.NewParser()
	line := cmd.String()

	prog, err := parser.Parse(strings.NewReader(line), "cmd")
	if err != nil {
		return eris.Wrapf(err, "failed to parse command %s", line)
	}

	runner, err := interp.New(
		interp.Dir(cmd.Dir),
		interp.Env(cmdEnviron(cmd.Env)),
		interp.OpenHandler(openHandler),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to initialize the shell runner")
	}

	for _, stmt := range prog.Stmts {
		err = runner.Run(ctx, stmt)
		if err != nil {
			return err
		}

		if runner.Exited() {
			break
		}
	}

	return nil
}

// Capture behaves like Run but collects stdout instead of inheriting it.
func Capture(ctx context.Context, cmd Cmd) (string, error) {
	parser := syntax.NewParser()
	line := cmd.String()

	prog, err := parser.Parse(strings.NewReader(line), "cmd")
	if err != nil {
		return "", eris.Wrapf(err, "failed to parse command %s", line)
	}

	output := strings.Builder{}
	runner, err := interp.New(
		interp.Dir(cmd.Dir),
		interp.Env(cmdEnviron(cmd.Env)),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, &output, os.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return "", eris.Wrap(err, "failed to initialize the shell runner")
	}

	for _, stmt := range prog.Stmts {
		err = runner.Run(ctx, stmt)
		if err != nil {
			return output.String(), err
		}

		if runner.Exited() {
			break
		}
	}

	return output.String(), nil
}

// ExitCode extracts the exit status from an error returned by Run.
func ExitCode(err error) (int, bool) {
	status, ok := interp.IsExitStatus(err)
	return int(status), ok
}
