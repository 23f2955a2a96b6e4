package images

import (
	"context"

	"github.com/wjw0315/ape-dts/pkg/shell"
)

// ReleaseOptions describes a build environment image build, performed by the
// build.sh script in the images directory.
type ReleaseOptions struct {
	// Image is the repository part of the tag (e.g. caiqynb/ape-dts-env).
	Image string
	// Version is the tag part.
	Version string
	// Token is a git access token handed to build.sh so it can fetch private
	// sources. An unset token is passed as an empty second argument, never
	// dropped.
	Token string
}

// Tag returns the full image tag, <repository>:<version>.
func (o ReleaseOptions) Tag() string {
	return o.Image + ":" + o.Version
}

// Args returns the build.sh argv for these options.
func (o ReleaseOptions) Args() []string {
	return []string{"./build.sh", o.Tag(), o.Token}
}

// Release runs build.sh from the given images directory.
func Release(ctx context.Context, imagesDir string, opts ReleaseOptions) error {
	return shell.Run(ctx, shell.Cmd{
		Args: opts.Args(),
		Dir:  imagesDir,
	})
}
