package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// StripPath removes the first strip components from an archive member name.
// The second return value is false when the whole name got consumed (e.g. the
// top-level directory itself).
func StripPath(name string, strip int) (string, bool) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	parts := strings.Split(name, "/")
	if len(parts) <= strip {
		return "", false
	}

	return filepath.Join(parts[strip:]...), true
}

// Unpack extracts the downloaded file into dest. The archive format is
// derived from the URL; anything without a known archive suffix is treated
// as a plain file and copied to dest.
func Unpack(archivePath, url, dest string, strip int) error {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return unpackZip(archivePath, dest, strip)
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		return unpackTar(archivePath, dest, strip, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case strings.HasSuffix(url, ".tar.xz"):
		return unpackTar(archivePath, dest, strip, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case strings.HasSuffix(url, ".tar.bz2"):
		return unpackTar(archivePath, dest, strip, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	default:
		return copyFile(archivePath, dest)
	}
}

func copyFile(src, dest string) error {
	err := os.MkdirAll(filepath.Dir(dest), 0o770)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", filepath.Dir(dest))
	}

	source, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", src)
	}
	defer source.Close()

	target, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", dest)
	}
	defer target.Close()

	_, err = io.Copy(target, source)
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", dest)
	}

	return nil
}

func writeMember(dest, name string, mode os.FileMode, content io.Reader, strip int) error {
	name, ok := StripPath(name, strip)
	if !ok {
		return nil
	}

	itemPath := filepath.Join(dest, name)
	err := os.MkdirAll(filepath.Dir(itemPath), 0o770)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", filepath.Dir(itemPath))
	}

	target, err := os.OpenFile(itemPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", itemPath)
	}
	defer target.Close()

	_, err = io.Copy(target, content)
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", itemPath)
	}

	return nil
}

func unpackZip(archivePath, dest string, strip int) error {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", archivePath)
	}
	defer archive.Close()

	for _, item := range archive.File {
		if item.FileInfo().IsDir() {
			continue
		}

		handle, err := item.Open()
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", item.Name)
		}

		err = writeMember(dest, item.Name, item.Mode(), handle, strip)
		handle.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func unpackTar(archivePath, dest string, strip int, decompress func(io.Reader) (io.Reader, error)) error {
	archive, err := os.Open(archivePath)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", archivePath)
	}
	defer archive.Close()

	stream, err := decompress(archive)
	if err != nil {
		return eris.Wrapf(err, "failed to decompress %s", archivePath)
	}

	reader := tar.NewReader(stream)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", archivePath)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		err = writeMember(dest, header.Name, os.FileMode(header.Mode)&0o777, reader, strip)
		if err != nil {
			return err
		}
	}

	return nil
}
