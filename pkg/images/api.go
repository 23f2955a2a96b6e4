package images

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/rotisserie/eris"
)

func newDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, eris.Wrap(err, "failed to create docker client")
	}

	return cli, nil
}

// BuildAPI builds the image by talking to the Docker daemon directly instead
// of shelling out to the docker CLI. The build context is the dir directory.
func BuildAPI(ctx context.Context, dir string, opts BuildOptions) error {
	cli, err := newDockerClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	buildCtx, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return eris.Wrapf(err, "failed to create build context from %s", dir)
	}

	buildArgs := make(map[string]*string, len(opts.BuildArgs))
	for _, arg := range opts.BuildArgs {
		value := arg.Value
		buildArgs[arg.Name] = &value
	}

	resp, err := cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{opts.Tag()},
		Dockerfile: opts.Dockerfile,
		BuildArgs:  buildArgs,
		Remove:     true,
	})
	if err != nil {
		return eris.Wrapf(err, "failed to build %s", opts.Tag())
	}
	defer resp.Body.Close()

	// The daemon reports errors inside the message stream, not through the
	// HTTP status, so we have to decode it to learn about failures.
	err = jsonmessage.DisplayJSONMessagesStream(resp.Body, os.Stderr, os.Stderr.Fd(), false, nil)
	if err != nil {
		return eris.Wrapf(err, "build of %s failed", opts.Tag())
	}

	return nil
}

// Push uploads the tag computed from opts to its registry. Credentials are
// read from DOCKER_USERNAME and DOCKER_PASSWORD if both are set.
func Push(ctx context.Context, opts BuildOptions) error {
	cli, err := newDockerClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	authConfig := registry.AuthConfig{
		Username: os.Getenv("DOCKER_USERNAME"),
		Password: os.Getenv("DOCKER_PASSWORD"),
	}

	encoded, err := json.Marshal(authConfig)
	if err != nil {
		return eris.Wrap(err, "failed to encode registry credentials")
	}

	resp, err := cli.ImagePush(ctx, opts.Tag(), types.ImagePushOptions{
		RegistryAuth: base64.URLEncoding.EncodeToString(encoded),
	})
	if err != nil {
		return eris.Wrapf(err, "failed to push %s", opts.Tag())
	}
	defer resp.Close()

	err = jsonmessage.DisplayJSONMessagesStream(resp, os.Stderr, os.Stderr.Fd(), false, nil)
	if err != nil {
		return eris.Wrapf(err, "push of %s failed", opts.Tag())
	}

	return nil
}
