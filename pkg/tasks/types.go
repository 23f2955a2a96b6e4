package tasks

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

// Cmd is a single step of a task: either a shell command line or a reference
// to another task that should run at this point.
type Cmd struct {
	Script string
	Ref    *Task
}

// Task contains the processed values passed to task() by the task script
type Task struct {
	Name         string
	Desc         string
	Base         string
	Hidden       bool
	Deps         []string
	SkipIfExists []string
	Inputs       []string
	Outputs      []string
	Env          map[string]string
	Cmds         []Cmd
}

// List maps task names to their definitions
type List map[string]*Task

// Option is a script parameter declared with option() in the global scope.
type Option struct {
	Default string
	Help    string
}

// Implement starlark.Value for *Task so scripts can pass tasks around.

func (t *Task) String() string {
	return fmt.Sprintf("<Task %s: %s>", t.Name, t.Desc)
}

// Type always returns "task" to indicate this type
func (t *Task) Type() string {
	return "task"
}

// Freeze doesn't do anything since tasks are immutable anyway
func (t *Task) Freeze() {}

// Truth always returns true since a task can't be nil or None
func (t *Task) Truth() starlark.Bool {
	return starlark.True
}

// Hash always returns an error since tasks aren't hashable
func (t *Task) Hash() (uint32, error) {
	return 0, eris.New("task is not a hashable type")
}
