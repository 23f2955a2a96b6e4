package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx() context.Context {
	logger := zerolog.Nop()
	return WithLogger(context.Background(), &logger)
}

func writeScript(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.star")
	err := os.WriteFile(path, []byte(content), 0o660)
	require.NoError(t, err)
	return path
}

const sampleScript = `
greeting = option("greeting", "hello", help="what to print")

def configure():
    task(
        "first",
        desc = "prints the greeting",
        cmds = ["echo " + greeting],
    )

    task(
        "second",
        desc = "depends on first",
        deps = ["first"],
        cmds = [["echo", "two words"]],
    )
`

func TestLoadCollectsTasks(t *testing.T) {
	path := writeScript(t, sampleScript)

	list, options, err := Load(testCtx(), path, filepath.Dir(path), nil)
	require.NoError(t, err)

	require.Contains(t, options, "greeting")
	assert.Equal(t, "hello", options["greeting"].Default)
	assert.Equal(t, "what to print", options["greeting"].Help)

	require.Len(t, list, 2)
	require.Contains(t, list, "first")
	require.Contains(t, list, "second")

	first := list["first"]
	assert.Equal(t, "prints the greeting", first.Desc)
	require.Len(t, first.Cmds, 1)
	assert.Equal(t, "echo hello", first.Cmds[0].Script)

	second := list["second"]
	assert.Equal(t, []string{"first"}, second.Deps)
	require.Len(t, second.Cmds, 1)
	assert.Equal(t, "echo 'two words'", second.Cmds[0].Script)
}

func TestLoadOptionOverride(t *testing.T) {
	path := writeScript(t, sampleScript)

	list, _, err := Load(testCtx(), path, filepath.Dir(path), map[string]string{"greeting": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo hi", list["first"].Cmds[0].Script)
}

func TestLoadMissingConfigure(t *testing.T) {
	path := writeScript(t, `x = 1`)

	_, _, err := Load(testCtx(), path, filepath.Dir(path), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure")
}

func TestLoadDuplicateTask(t *testing.T) {
	path := writeScript(t, `
def configure():
    task("twice", cmds = ["echo a"])
    task("twice", cmds = ["echo b"])
`)

	_, _, err := Load(testCtx(), path, filepath.Dir(path), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")
}

func TestLoadOptionInsideConfigure(t *testing.T) {
	path := writeScript(t, `
def configure():
    option("late", "nope")
`)

	_, _, err := Load(testCtx(), path, filepath.Dir(path), nil)
	require.Error(t, err)
}

func TestLoadSetenvAppliesToTasks(t *testing.T) {
	path := writeScript(t, `
setenv("RUSTFLAGS", "-C target-cpu=native")

def configure():
    task("build", cmds = ["echo ok"])
    task("other", env = {"RUSTFLAGS": "custom"}, cmds = ["echo ok"])
`)

	list, _, err := Load(testCtx(), path, filepath.Dir(path), nil)
	require.NoError(t, err)
	assert.Equal(t, "-C target-cpu=native", list["build"].Env["RUSTFLAGS"])
	assert.Equal(t, "custom", list["other"].Env["RUSTFLAGS"])
}

func TestLoadHiddenTaskRef(t *testing.T) {
	path := writeScript(t, `
def configure():
    helper = task(cmds = ["echo helper"])
    task("main", cmds = [helper, "echo main"])
`)

	list, _, err := Load(testCtx(), path, filepath.Dir(path), nil)
	require.NoError(t, err)

	// anonymous tasks don't show up in the list
	require.Len(t, list, 1)

	main := list["main"]
	require.Len(t, main.Cmds, 2)
	require.NotNil(t, main.Cmds[0].Ref)
	assert.True(t, main.Cmds[0].Ref.Hidden)
	assert.Equal(t, "echo helper", main.Cmds[0].Ref.Cmds[0].Script)
}
