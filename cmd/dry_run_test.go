package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// projectDir creates a fake project root and makes it the working directory.
// The build parameter variables are cleared so values inherited from the
// caller's shell can't leak into the expected commands.
func projectDir(t *testing.T) string {
	t.Helper()

	for _, name := range []string{"BUILD_IMG", "RELEASE_IMG", "VERSION", "CONFIG_PATH", "MODULE_NAME", "GIT_TOKEN"} {
		if value, ok := os.LookupEnv(name); ok {
			name, value := name, value
			t.Cleanup(func() { os.Setenv(name, value) })
			os.Unsetenv(name)
		}
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.star"), []byte("def configure():\n    pass\n"), 0o660))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
	})

	return dir
}

func runTool(t *testing.T, args ...string) string {
	t.Helper()

	output := strings.Builder{}
	rootCmd.SetOut(&output)
	rootCmd.SetErr(&output)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	return output.String()
}

func TestDockerBuildDryDefaults(t *testing.T) {
	projectDir(t)

	output := runTool(t, "docker-build", "--dry")
	assert.Equal(t,
		"docker build -t caiqynb/ape-dts:0.1"+
			" --build-arg LOCAL_CONFIG_PATH=./images/example/mysql_snapshot_sample.yaml"+
			" --build-arg MODULE_NAME=ape-dts"+
			" -f Dockerfile_release .\n",
		output)
}

func TestDockerBuildDryEnv(t *testing.T) {
	projectDir(t)
	t.Setenv("RELEASE_IMG", "example/dts")
	t.Setenv("VERSION", "1.4")
	t.Setenv("CONFIG_PATH", "./configs/pg.yaml")
	t.Setenv("MODULE_NAME", "dt-precheck")

	output := runTool(t, "docker-build", "--dry")
	assert.Equal(t,
		"docker build -t example/dts:1.4"+
			" --build-arg LOCAL_CONFIG_PATH=./configs/pg.yaml"+
			" --build-arg MODULE_NAME=dt-precheck"+
			" -f Dockerfile_release .\n",
		output)
}

func TestDockerBuildDryConfigFile(t *testing.T) {
	dir := projectDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.yml"), []byte("releaseImg: file/dts\n"), 0o660))

	output := runTool(t, "docker-build", "--dry")
	assert.True(t, strings.HasPrefix(output, "docker build -t file/dts:0.1 "), output)
}

func TestReleaseBuildDryDefaults(t *testing.T) {
	projectDir(t)

	output := runTool(t, "release-build", "--dry")
	assert.Equal(t, "./build.sh caiqynb/ape-dts-env:0.1 ''\n", output)
}

func TestReleaseBuildDryToken(t *testing.T) {
	projectDir(t)
	t.Setenv("GIT_TOKEN", "ghp_secret")
	t.Setenv("BUILD_IMG", "example/dts-env")

	output := runTool(t, "release-build", "--dry")
	assert.Equal(t, "./build.sh example/dts-env:0.1 ghp_secret\n", output)
}
