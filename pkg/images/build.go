// Package images implements the build orchestration for the ape-dts
// container images: computing image tags and docker build invocations and
// executing them either through the shell or directly against the Docker
// daemon.
package images

import (
	"context"
	"strings"

	"github.com/wjw0315/ape-dts/pkg/shell"
)

// BuildArg is a single --build-arg entry. Order is significant because the
// computed command line is part of the tool's contract.
type BuildArg struct {
	Name  string
	Value string
}

// BuildOptions describes a docker build invocation.
type BuildOptions struct {
	// Image is the repository part of the tag (e.g. caiqynb/ape-dts).
	Image string
	// Version is the tag part (e.g. 0.1).
	Version string
	// Dockerfile is passed via -f, relative to the build context.
	Dockerfile string
	// Context is the build context directory.
	Context string
	// BuildArgs are substituted into the Dockerfile at build time.
	BuildArgs []BuildArg
}

// Tag returns the full image tag, <repository>:<version>.
func (o BuildOptions) Tag() string {
	return o.Image + ":" + o.Version
}

// Args returns the docker build argv for these options.
func (o BuildOptions) Args() []string {
	args := []string{"docker", "build", "-t", o.Tag()}

	for _, arg := range o.BuildArgs {
		args = append(args, "--build-arg", arg.Name+"="+arg.Value)
	}

	args = append(args, "-f", o.Dockerfile, o.Context)
	return args
}

// Command returns the docker build command line for display purposes.
func (o BuildOptions) Command() string {
	return strings.Join(o.Args(), " ")
}

// BuildCLI runs docker build through the shell runtime, from dir.
func BuildCLI(ctx context.Context, dir string, opts BuildOptions) error {
	return shell.Run(ctx, shell.Cmd{
		Args: opts.Args(),
		Dir:  dir,
	})
}
