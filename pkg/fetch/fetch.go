// Package fetch downloads and unpacks the pinned assets the image builds
// depend on, as listed in images/DEPS.yml. Every download is verified against
// its recorded sha256 and a stamp file keeps track of what is already
// unpacked so unchanged deps are skipped.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"
)

// Dep is one pinned download.
type Dep struct {
	URL      string   `yaml:"url"`
	Dest     string   `yaml:"dest"`
	Sha256   string   `yaml:"sha256"`
	Strip    int      `yaml:"strip"`
	MarkExec []string `yaml:"markExec,omitempty"`
}

// Config is the contents of a DEPS.yml file.
type Config struct {
	Vars map[string]string `yaml:"vars"`
	Deps map[string]Dep    `yaml:"deps"`
}

const (
	configName = "DEPS.yml"
	stampName  = "DEPS.stamps"
)

// LoadConfig reads the DEPS.yml in the given directory.
func LoadConfig(dir string) (Config, error) {
	var cfg Config

	path := filepath.Join(dir, configName)
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "could not open %s", path)
	}

	err = yaml.Unmarshal(content, &cfg)
	if err != nil {
		return cfg, eris.Wrapf(err, "failed to parse %s", path)
	}

	return cfg, nil
}

// ResolveURL substitutes the declared {VAR} placeholders into a dep URL.
func (c Config) ResolveURL(url string) string {
	for key, value := range c.Vars {
		url = strings.ReplaceAll(url, "{"+key+"}", value)
	}

	return url
}

// SaveConfig writes the config back to DEPS.yml. Used after an --update run
// to persist the refreshed checksums.
func SaveConfig(dir string, cfg Config) error {
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "failed to encode the dep config")
	}

	path := filepath.Join(dir, configName)
	err = os.WriteFile(path, content, 0o660)
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", path)
	}

	return nil
}

func readStamps(dir string) map[string]string {
	stamps := map[string]string{}

	content, err := os.ReadFile(filepath.Join(dir, stampName))
	if err == nil {
		// a broken stamp file just means everything gets downloaded again
		_ = json.Unmarshal(content, &stamps)
	}

	return stamps
}

func writeStamps(dir string, stamps map[string]string) error {
	content, err := json.Marshal(stamps)
	if err != nil {
		return eris.Wrap(err, "failed to encode stamps")
	}

	path := filepath.Join(dir, stampName)
	err = os.WriteFile(path, content, 0o660)
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", path)
	}

	return nil
}

func progress(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

// download fetches the URL into a temporary file and returns the file path
// together with the hex encoded sha256 of the contents.
func download(ctx context.Context, url, desc string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", eris.Wrapf(err, "failed to prepare a request for %s", url)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", eris.Wrapf(err, "failed to download %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", eris.Errorf("download of %s failed with status %s", url, resp.Status)
	}

	tmpFile, err := os.CreateTemp("", "ape-dts-dep-*")
	if err != nil {
		return "", "", eris.Wrap(err, "failed to create a temporary file")
	}
	defer tmpFile.Close()

	hasher := sha256.New()
	bar := progress(resp.ContentLength, desc)

	_, err = io.Copy(io.MultiWriter(tmpFile, hasher, bar), resp.Body)
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", "", eris.Wrapf(err, "failed to download %s", url)
	}

	return tmpFile.Name(), hex.EncodeToString(hasher.Sum(nil)), nil
}

// Names returns the dep names in a stable order.
func (c Config) Names() []string {
	names := make([]string, 0, len(c.Deps))
	for name := range c.Deps {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Sync downloads and unpacks every dep that isn't up to date. With update set
// the recorded checksums are replaced by whatever the downloads produce
// instead of being enforced.
func Sync(ctx context.Context, dir string, cfg Config, update bool) error {
	stamps := readStamps(dir)

	for _, name := range cfg.Names() {
		dep := cfg.Deps[name]

		if stamps[name] == dep.Sha256 && dep.Sha256 != "" && !update {
			destInfo, err := os.Stat(filepath.Join(dir, dep.Dest))
			if err == nil && destInfo != nil {
				continue
			}
		}

		url := cfg.ResolveURL(dep.URL)
		tmpPath, digest, err := download(ctx, url, name)
		if err != nil {
			return err
		}

		if update {
			dep.Sha256 = digest
			cfg.Deps[name] = dep
		} else if dep.Sha256 != "" && digest != dep.Sha256 {
			os.Remove(tmpPath)
			return eris.Errorf("checksum mismatch for %s: expected %s but got %s", name, dep.Sha256, digest)
		}

		dest := filepath.Join(dir, dep.Dest)
		err = Unpack(tmpPath, url, dest, dep.Strip)
		os.Remove(tmpPath)
		if err != nil {
			return eris.Wrapf(err, "failed to unpack %s", name)
		}

		for _, item := range dep.MarkExec {
			itemPath := filepath.Join(dest, item)
			err = os.Chmod(itemPath, 0o755)
			if err != nil {
				return eris.Wrapf(err, "failed to mark %s as executable", itemPath)
			}
		}

		stamps[name] = digest
	}

	return writeStamps(dir, stamps)
}
