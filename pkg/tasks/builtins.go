package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"

	"github.com/wjw0315/ape-dts/pkg/shell"
)

func logAt(thread *starlark.Thread, level string, msg string) {
	sctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	event := log(sctx.ctx).Info()
	if level == "warn" {
		event = log(sctx.ctx).Warn()
	}

	event.Msgf("%s:%d:%d: %s", sctx.display(sctx.filename), pos.Line, pos.Col, msg)
}

func starInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	logAt(thread, "info", message)
	return starlark.None, nil
}

func starWarn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	logAt(thread, "warn", message)
	return starlark.None, nil
}

func starError(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	return nil, eris.New(message)
}

func starOption(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultValue string
	var help string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue, "help?", &help)
	if err != nil {
		return nil, err
	}

	sctx := getCtx(thread)
	if !sctx.initPhase {
		return nil, eris.New("option() can only be called during the init phase (in the global scope)")
	}

	sctx.options[name] = Option{
		Default: defaultValue,
		Help:    help,
	}

	if value, ok := sctx.optionValues[name]; ok {
		return starlark.String(value), nil
	}

	return starlark.String(defaultValue), nil
}

func starGetenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &key)
	if err != nil {
		return nil, err
	}

	value, ok := getCtx(thread).envOverrides[key]
	if !ok {
		value = os.Getenv(key)
	}

	return starlark.String(value), nil
}

func starSetenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var value string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &key, &value)
	if err != nil {
		return nil, err
	}

	getCtx(thread).envOverrides[key] = value
	return starlark.True, nil
}

func starResolvePath(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) < 1 {
		return nil, eris.New("expects at least one argument")
	}

	parts := make([]string, len(args))
	for idx, arg := range args {
		value, ok := arg.(starlark.String)
		if !ok {
			return nil, eris.Errorf("only accepts string arguments but argument %d was a %s", idx, arg.Type())
		}
		parts[idx] = value.GoString()
	}

	sctx := getCtx(thread)
	return starlark.String(sctx.resolve(strings.Join(parts, string(os.PathSeparator)))), nil
}

func starIsdir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(getCtx(thread).resolve(path))
	return starlark.Bool(err == nil && info.IsDir()), nil
}

func starIsfile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(getCtx(thread).resolve(path))
	return starlark.Bool(err == nil && info.Mode().IsRegular()), nil
}

func yamlToStarlark(value interface{}) (starlark.Value, error) {
	switch value := value.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(value), nil
	case int:
		return starlark.MakeInt(value), nil
	case bool:
		return starlark.Bool(value), nil
	case float64:
		return starlark.Float(value), nil
	case []interface{}:
		items := make(starlark.Tuple, len(value))
		for idx, item := range value {
			var err error
			items[idx], err = yamlToStarlark(item)
			if err != nil {
				return nil, err
			}
		}
		return items, nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(value))
		for key, item := range value {
			converted, err := yamlToStarlark(item)
			if err != nil {
				return nil, err
			}

			err = dict.SetKey(starlark.String(key), converted)
			if err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, eris.Errorf("encountered unsupported YAML value %v", value)
	}
}

func yamlLookup(doc interface{}, key string) interface{} {
	for _, part := range strings.Split(key, ".") {
		switch value := doc.(type) {
		case map[string]interface{}:
			doc = value[part]
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(value) {
				return nil
			}
			doc = value[idx]
		default:
			return nil
		}
	}

	return doc
}

func starReadYaml(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var file string
	var key string
	var defaultValue starlark.Value

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &file, &key, &defaultValue)
	if err != nil {
		return nil, err
	}

	file = getCtx(thread).resolve(file)
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", file)
	}

	var doc interface{}
	err = yaml.Unmarshal(content, &doc)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", file)
	}

	value := yamlLookup(doc, key)
	if value == nil {
		if defaultValue == nil {
			return starlark.None, nil
		}
		return defaultValue, nil
	}

	return yamlToStarlark(value)
}

func starExecute(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var command starlark.Value
	var outputFormat string
	var showError bool

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "command", &command, "format?", &outputFormat, "show_error?", &showError)
	if err != nil {
		return nil, err
	}

	if outputFormat == "" {
		outputFormat = "text"
	}

	if outputFormat != "text" && outputFormat != "json" {
		return nil, eris.Errorf("unsupported format %s", outputFormat)
	}

	sctx := getCtx(thread)
	cmd := shell.Cmd{
		Dir: sctx.resolve("."),
		Env: sctx.envOverrides,
	}

	switch command := command.(type) {
	case starlark.String:
		cmd.Line = command.GoString()
	case starlark.Tuple:
		cmd.Args, err = stringItems(command, "command")
		if err != nil {
			return nil, err
		}
	case *starlark.List:
		cmd.Args, err = stringItems(command, "command")
		if err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("unexpected type %s for the command parameter, only strings, tuples and lists are valid", command.Type())
	}

	output, err := shell.Capture(sctx.ctx, cmd)
	if err != nil {
		if showError {
			log(sctx.ctx).Error().Err(err).Msgf("command %s failed", cmd.String())
		}
		return starlark.False, nil
	}

	if outputFormat == "json" {
		var decoded interface{}
		err = json.Unmarshal([]byte(output), &decoded)
		if err != nil {
			return nil, eris.Wrap(err, "failed to parse the command output")
		}

		return yamlToStarlark(decoded)
	}

	return starlark.String(output), nil
}

type starIterable interface {
	Len() int
	Iterate() starlark.Iterator
}

func stringItems(input starIterable, field string) ([]string, error) {
	if value, ok := input.(*starlark.List); ok && value == nil {
		return []string{}, nil
	}

	result := make([]string, 0, input.Len())
	iter := input.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		value, ok := item.(starlark.String)
		if !ok {
			return nil, eris.Errorf("expected all items in %s to be strings but found %s", field, item.Type())
		}
		result = append(result, value.GoString())
	}

	return result, nil
}

func stringDict(input *starlark.Dict, field string) (map[string]string, error) {
	result := map[string]string{}
	if input == nil {
		return result, nil
	}

	for _, rawKey := range input.Keys() {
		key, ok := rawKey.(starlark.String)
		if !ok {
			return nil, eris.Errorf("found key of type %s in %s but only strings are supported", rawKey.Type(), field)
		}

		rawValue, _, err := input.Get(rawKey)
		if err != nil {
			return nil, err
		}

		value, ok := rawValue.(starlark.String)
		if !ok {
			return nil, eris.Errorf("found value of type %s for key %s but only strings are supported", rawValue.Type(), key.GoString())
		}

		result[key.GoString()] = value.GoString()
	}

	return result, nil
}

func starTask(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var deps *starlark.List
	var skipIfExists *starlark.List
	var inputs *starlark.List
	var outputs *starlark.List
	var env *starlark.Dict
	var cmds *starlark.List

	task := new(Task)

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name??", &task.Name, "hidden?", &task.Hidden,
		"desc?", &task.Desc, "deps?", &deps, "base?", &task.Base, "skip_if_exists?", &skipIfExists,
		"inputs?", &inputs, "outputs?", &outputs, "env?", &env, "cmds?", &cmds)
	if err != nil {
		return nil, err
	}

	if task.Name == "" {
		task.Hidden = true
		task.Name = "auto#" + nanoid.New()
	}

	sctx := getCtx(thread)
	if task.Base == "" {
		task.Base = "."
	}
	task.Base = sctx.resolve(task.Base)

	task.Deps, err = stringItems(deps, "deps")
	if err != nil {
		return nil, err
	}

	task.SkipIfExists, err = stringItems(skipIfExists, "skip_if_exists")
	if err != nil {
		return nil, err
	}

	task.Inputs, err = stringItems(inputs, "inputs")
	if err != nil {
		return nil, err
	}

	task.Outputs, err = stringItems(outputs, "outputs")
	if err != nil {
		return nil, err
	}

	task.Env, err = stringDict(env, "env")
	if err != nil {
		return nil, err
	}

	task.Cmds = make([]Cmd, 0)
	if cmds != nil {
		iter := cmds.Iterate()
		defer iter.Done()

		var item starlark.Value
		idx := 0
		for iter.Next(&item) {
			switch value := item.(type) {
			case starlark.String:
				task.Cmds = append(task.Cmds, Cmd{Script: value.GoString()})
			case starlark.Tuple:
				argv, err := stringItems(value, fmt.Sprintf("command #%d", idx))
				if err != nil {
					return nil, err
				}
				task.Cmds = append(task.Cmds, Cmd{Script: shell.Cmd{Args: argv}.String()})
			case *starlark.List:
				argv, err := stringItems(value, fmt.Sprintf("command #%d", idx))
				if err != nil {
					return nil, err
				}
				task.Cmds = append(task.Cmds, Cmd{Script: shell.Cmd{Args: argv}.String()})
			case *Task:
				task.Cmds = append(task.Cmds, Cmd{Ref: value})
			default:
				return nil, eris.Errorf("%s: unexpected type %s, only strings, tuples, lists and tasks are valid", fn.Name(), item.Type())
			}

			idx++
		}
	}

	if len(task.Inputs) > 0 && len(task.Outputs) == 0 {
		logAt(thread, "warn", fmt.Sprintf("%s: found inputs but no outputs", task.Name))
	}

	if !task.Hidden {
		sctx.tasks = append(sctx.tasks, task)
	}
	return task, nil
}
