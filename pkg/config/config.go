// Package config loads the optional build.yml file at the project root which
// overrides the built-in defaults for the image build parameters.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Defaults for all build parameters. Environment variables and flags take
// precedence, see the command documentation.
const (
	DefaultBuildImg   = "caiqynb/ape-dts-env"
	DefaultReleaseImg = "caiqynb/ape-dts"
	DefaultVersion    = "0.1"
	DefaultConfigPath = "./images/example/mysql_snapshot_sample.yaml"
	DefaultModuleName = "ape-dts"
)

// FileName is the config file looked up at the project root.
const FileName = "build.yml"

// Config holds the per-project overrides. Empty fields fall through to the
// built-in defaults.
type Config struct {
	BuildImg   string `yaml:"buildImg"`
	ReleaseImg string `yaml:"releaseImg"`
	Version    string `yaml:"version"`
	ConfigPath string `yaml:"configPath"`
	ModuleName string `yaml:"moduleName"`
}

// Load reads build.yml from the given project root. A missing file yields a
// zero config and no error; a malformed or unknown key is fatal.
func Load(root string) (Config, error) {
	var cfg Config

	path := filepath.Join(root, FileName)
	content, err := os.ReadFile(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, eris.Wrapf(err, "could not open %s", path)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	err = decoder.Decode(&cfg)
	if err != nil && !eris.Is(err, io.EOF) {
		return cfg, eris.Wrapf(err, "failed to parse %s", path)
	}

	return cfg, nil
}
