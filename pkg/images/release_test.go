package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseArgs(t *testing.T) {
	opts := ReleaseOptions{
		Image:   "caiqynb/ape-dts-env",
		Version: "0.1",
		Token:   "ghp_secret",
	}

	assert.Equal(t, []string{"./build.sh", "caiqynb/ape-dts-env:0.1", "ghp_secret"}, opts.Args())
}

func TestReleaseArgsEmptyToken(t *testing.T) {
	opts := ReleaseOptions{
		Image:   "caiqynb/ape-dts-env",
		Version: "0.1",
	}

	// an unset token still has to reach build.sh as a positional argument
	args := opts.Args()
	require.Len(t, args, 3)
	assert.Equal(t, "", args[2])
}
