package fetch

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripPath(t *testing.T) {
	tests := []struct {
		name  string
		strip int
		want  string
		ok    bool
	}{
		{"bin/tool", 0, "bin/tool", true},
		{"pkg-1.0/bin/tool", 1, "bin/tool", true},
		{"./pkg-1.0/bin/tool", 1, "bin/tool", true},
		{"pkg-1.0", 1, "", false},
		{"a/b/c", 2, "c", true},
	}

	for _, tt := range tests {
		got, ok := StripPath(tt.name, tt.strip)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, filepath.FromSlash(tt.want), got, tt.name)
	}
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()

	buffer := bytes.Buffer{}
	gzWriter := gzip.NewWriter(&buffer)
	tarWriter := tar.NewWriter(gzWriter)

	for name, content := range files {
		err := tarWriter.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		})
		require.NoError(t, err)

		_, err = tarWriter.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzWriter.Close())
	return buffer.Bytes()
}

func digestOf(content []byte) string {
	digest := sha256.Sum256(content)
	return hex.EncodeToString(digest[:])
}

func TestUnpackTarGz(t *testing.T) {
	archive := tarGz(t, map[string]string{
		"pkg-1.0/bin/tool":  "binary",
		"pkg-1.0/README.md": "docs",
	})

	archivePath := filepath.Join(t.TempDir(), "pkg.tar.gz")
	require.NoError(t, os.WriteFile(archivePath, archive, 0o660))

	dest := filepath.Join(t.TempDir(), "tools")
	err := Unpack(archivePath, "https://example.com/pkg-1.0.tar.gz", dest, 1)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dest, "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(content))
	assert.FileExists(t, filepath.Join(dest, "README.md"))
}

func TestUnpackPlainFile(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "download")
	require.NoError(t, os.WriteFile(srcPath, []byte("#!/bin/sh\n"), 0o660))

	dest := filepath.Join(t.TempDir(), "tools", "tini")
	err := Unpack(srcPath, "https://example.com/tini-static-amd64", dest, 0)
	require.NoError(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(content))
}

func TestLoadConfigResolveURL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "DEPS.yml"), []byte(`
vars:
  VERSION: 1.2.3
deps:
  tool:
    url: https://example.com/tool-{VERSION}.tar.gz
    dest: tools/tool
    sha256: abc
    strip: 1
`), 0o660))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	dep := cfg.Deps["tool"]
	assert.Equal(t, "https://example.com/tool-{VERSION}.tar.gz", dep.URL)
	assert.Equal(t, "https://example.com/tool-1.2.3.tar.gz", cfg.ResolveURL(dep.URL))
	assert.Equal(t, 1, dep.Strip)
}

func TestSync(t *testing.T) {
	t.Setenv("CI", "true")

	archive := tarGz(t, map[string]string{"pkg-1.0/bin/tool": "binary"})

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	cfg := Config{
		Deps: map[string]Dep{
			"tool": {
				URL:      server.URL + "/pkg-1.0.tar.gz",
				Dest:     "tools/tool",
				Sha256:   digestOf(archive),
				Strip:    1,
				MarkExec: []string{filepath.Join("bin", "tool")},
			},
		},
	}

	err := Sync(context.Background(), dir, cfg, false)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)

	toolPath := filepath.Join(dir, "tools", "tool", "bin", "tool")
	require.FileExists(t, toolPath)

	info, err := os.Stat(toolPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)

	// the stamp file makes the second sync a no-op
	err = Sync(context.Background(), dir, cfg, false)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestSyncChecksumMismatch(t *testing.T) {
	t.Setenv("CI", "true")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("unexpected content"))
	}))
	defer server.Close()

	cfg := Config{
		Deps: map[string]Dep{
			"tool": {
				URL:    server.URL + "/tool",
				Dest:   "tools/tool",
				Sha256: digestOf([]byte("pinned content")),
			},
		},
	}

	err := Sync(context.Background(), t.TempDir(), cfg, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestSyncUpdateAcceptsChecksum(t *testing.T) {
	t.Setenv("CI", "true")

	content := []byte("new content")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	cfg := Config{
		Deps: map[string]Dep{
			"tool": {
				URL:    server.URL + "/tool",
				Dest:   "tools/tool",
				Sha256: digestOf([]byte("stale pin")),
			},
		},
	}

	dir := t.TempDir()
	err := Sync(context.Background(), dir, cfg, true)
	require.NoError(t, err)
	assert.Equal(t, digestOf(content), cfg.Deps["tool"].Sha256)

	err = SaveConfig(dir, cfg)
	require.NoError(t, err)

	reloaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, digestOf(content), reloaded.Deps["tool"].Sha256)
}
