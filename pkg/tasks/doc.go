// Package tasks implements a small Starlark-scripted task runner. A
// tasks.star file declares build tasks (shell commands plus metadata like
// dependencies and output files) and this package evaluates the script and
// executes the requested tasks through the embedded shell.
package tasks
