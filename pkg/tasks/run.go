package tasks

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wjw0315/ape-dts/pkg/shell"
)

type taskState int

const (
	statePending taskState = iota
	stateRunning
	stateDone
)

type runState struct {
	status map[string]taskState
}

// resolvePatterns expands the glob patterns relative to base.
func resolvePatterns(base string, patterns []string) ([]string, error) {
	result := []string{}

	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(base, pattern)
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", pattern)
		}

		if matches == nil {
			// keep non-matching literals so stat checks can report them
			result = append(result, pattern)
		} else {
			result = append(result, matches...)
		}
	}

	return result, nil
}

// Run executes the given task including its dependencies.
func Run(ctx context.Context, name string, list List, dryRun, force bool) error {
	task, found := list[name]
	if !found {
		return eris.Errorf("task %s not found", name)
	}

	state := &runState{status: make(map[string]taskState)}
	return runTask(ctx, state, task, list, dryRun, force, true)
}

func shouldSkip(ctx context.Context, task *Task) (bool, error) {
	if len(task.SkipIfExists) > 0 {
		skipList, err := resolvePatterns(task.Base, task.SkipIfExists)
		if err != nil {
			return false, eris.Wrap(err, "failed to resolve the skip_if_exists list")
		}

		found := 0
		for _, item := range skipList {
			_, err := os.Stat(item)
			if err == nil {
				found++
			} else if !eris.Is(err, os.ErrNotExist) {
				return false, eris.Wrapf(err, "failed to check %s", item)
			}
		}

		if found > 0 && found == len(skipList) {
			log(ctx).Info().
				Str("task", task.Name).
				Msg("skipped because all skip files exist")
			return true, nil
		}
	}

	if len(task.Inputs) == 0 || len(task.Outputs) == 0 {
		return false, nil
	}

	inputList, err := resolvePatterns(task.Base, task.Inputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve inputs")
	}

	outputList, err := resolvePatterns(task.Base, task.Outputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve outputs")
	}

	var newestInput time.Time
	for _, item := range inputList {
		info, err := os.Stat(item)
		if err != nil {
			return false, eris.Wrapf(err, "failed to check input %s", item)
		}

		if info.ModTime().After(newestInput) {
			newestInput = info.ModTime()
		}
	}

	if newestInput.IsZero() {
		return false, nil
	}

	var newestOutput time.Time
	for _, item := range outputList {
		info, err := os.Stat(item)
		if err != nil {
			if eris.Is(err, os.ErrNotExist) {
				// a missing output always forces a rebuild
				return false, nil
			}
			return false, eris.Wrapf(err, "failed to check output %s", item)
		}

		if info.ModTime().After(newestOutput) {
			newestOutput = info.ModTime()
		}
	}

	if newestOutput.After(newestInput) {
		log(ctx).Info().
			Str("task", task.Name).
			Msgf("nothing to do (output is %.0f seconds newer)", newestOutput.Sub(newestInput).Seconds())
		return true, nil
	}

	return false, nil
}

func runTask(ctx context.Context, state *runState, task *Task, list List, dryRun, force, canSkip bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch state.status[task.Name] {
	case stateDone:
		log(ctx).Debug().Msgf("task %s already run", task.Name)
		return nil
	case stateRunning:
		return eris.Errorf("task %s was called recursively", task.Name)
	}

	state.status[task.Name] = stateRunning

	for _, dep := range task.Deps {
		depTask, ok := list[dep]
		if !ok {
			return eris.Errorf("task %s not found", dep)
		}

		err := runTask(ctx, state, depTask, list, dryRun, false, true)
		if err != nil {
			return eris.Wrapf(err, "task %s failed due to its dependency %s", task.Name, dep)
		}
	}

	if canSkip && !force {
		skip, err := shouldSkip(ctx, task)
		if err != nil {
			return err
		}

		if skip {
			state.status[task.Name] = stateDone
			return nil
		}
	}

	for _, item := range task.Cmds {
		if item.Ref != nil {
			err := runTask(ctx, state, item.Ref, list, dryRun, force, true)
			if err != nil {
				return err
			}
			continue
		}

		log(ctx).Info().
			Str("task", task.Name).
			Bool("command", true).
			Msg(item.Script)

		if !dryRun {
			err := shell.Run(ctx, shell.Cmd{
				Line: item.Script,
				Dir:  task.Base,
				Env:  task.Env,
			})
			if err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	state.status[task.Name] = stateDone
	return nil
}
