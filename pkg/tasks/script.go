package tasks

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

type scriptCtx struct {
	ctx          context.Context
	filename     string
	projectRoot  string
	options      map[string]Option
	optionValues map[string]string
	envOverrides map[string]string
	tasks        []*Task
	initPhase    bool
}

func getCtx(thread *starlark.Thread) *scriptCtx {
	return thread.Local("scriptCtx").(*scriptCtx)
}

// resolve turns a script path into an absolute filesystem path. Paths
// starting with // are relative to the project root, everything else is
// relative to the script's directory.
func (s *scriptCtx) resolve(path string) string {
	switch {
	case strings.HasPrefix(path, "//"):
		return filepath.Clean(filepath.Join(s.projectRoot, path[2:]))
	case filepath.IsAbs(path):
		return filepath.Clean(path)
	default:
		return filepath.Clean(filepath.Join(filepath.Dir(s.filename), path))
	}
}

// display shortens a path for log messages, using // for the project root.
func (s *scriptCtx) display(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	if strings.HasPrefix(absPath, s.projectRoot+string(filepath.Separator)) {
		return "//" + filepath.ToSlash(absPath[len(s.projectRoot)+1:])
	}
	return path
}

func builtins() starlark.StringDict {
	return starlark.StringDict{
		"OS":           starlark.String(runtime.GOOS),
		"ARCH":         starlark.String(runtime.GOARCH),
		"info":         starlark.NewBuiltin("info", starInfo),
		"warn":         starlark.NewBuiltin("warn", starWarn),
		"error":        starlark.NewBuiltin("error", starError),
		"option":       starlark.NewBuiltin("option", starOption),
		"getenv":       starlark.NewBuiltin("getenv", starGetenv),
		"setenv":       starlark.NewBuiltin("setenv", starSetenv),
		"resolve_path": starlark.NewBuiltin("resolve_path", starResolvePath),
		"isdir":        starlark.NewBuiltin("isdir", starIsdir),
		"isfile":       starlark.NewBuiltin("isfile", starIsfile),
		"read_yaml":    starlark.NewBuiltin("read_yaml", starReadYaml),
		"execute":      starlark.NewBuiltin("execute", starExecute),
		"task":         starlark.NewBuiltin("task", starTask),
	}
}

// Load evaluates the given task script and returns the declared options.
// The script's global scope only declares options; the tasks themselves are
// collected by calling its configure function.
func Load(ctx context.Context, filename, projectRoot string, optionValues map[string]string) (List, map[string]Option, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, nil, err
	}

	filename, err = filepath.Abs(filename)
	if err != nil {
		return nil, nil, err
	}

	script, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "failed to read %s", filename)
	}

	threadCtx := scriptCtx{
		ctx:          ctx,
		filename:     filename,
		projectRoot:  projectRoot,
		options:      make(map[string]Option),
		optionValues: optionValues,
		envOverrides: make(map[string]string),
		tasks:        make([]*Task, 0),
		initPhase:    true,
	}

	thread := &starlark.Thread{
		Name: "main",
		Print: func(thread *starlark.Thread, msg string) {
			log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	thread.SetLocal("scriptCtx", &threadCtx)

	displayName := threadCtx.display(filename)
	globals, err := starlark.ExecFile(thread, displayName, script, builtins())
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, nil, eris.Errorf("failed to execute %s:\n%s", displayName, evalError.Backtrace())
		}
		return nil, nil, eris.Wrapf(err, "failed to execute %s", displayName)
	}

	configure, ok := globals["configure"]
	if !ok {
		return nil, nil, eris.Errorf("%s did not declare a configure function", displayName)
	}

	configureFunc, ok := configure.(starlark.Callable)
	if !ok {
		return nil, nil, eris.Errorf("%s declared a configure value but it's not a function", displayName)
	}

	threadCtx.initPhase = false
	_, err = starlark.Call(thread, configureFunc, nil, nil)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, nil, eris.New(evalError.Backtrace())
		}
		return nil, nil, eris.Wrapf(err, "failed configure call in %s", displayName)
	}

	list := List{}
	for _, task := range threadCtx.tasks {
		if _, present := list[task.Name]; present {
			return nil, nil, eris.Errorf("task %s was declared twice", task.Name)
		}
		list[task.Name] = task

		// setenv() calls apply to every task unless the task sets the
		// variable itself
		for name, value := range threadCtx.envOverrides {
			if _, present := task.Env[name]; !present {
				task.Env[name] = value
			}
		}
	}

	return list, threadCtx.options, nil
}
