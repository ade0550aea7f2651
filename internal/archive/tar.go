package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Source is the read side of a filesystem that TarDir archives from.
type Source interface {
	Stat(path string) (fs.FileInfo, error)
	ReadDir(path string) ([]fs.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
}

// Target is the write side of a filesystem that Extract unpacks into.
type Target interface {
	MkdirAll(path string) error
	Create(path string) (io.WriteCloser, error)
	Chtimes(path string, atime, mtime time.Time) error
}

// TarDir creates a tar gz archive from a directory. Entry names are
// prefixed with the directory's base name so the archive extracts into a
// single folder.
func TarDir(writer io.Writer, src Source, dir string) error {
	info, err := src.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	// create gzip compressed tar writer
	gzipWriter := gzip.NewWriter(writer)
	tarWriter := tar.NewWriter(gzipWriter)

	if err := addTree(tarWriter, src, dir, filepath.Base(dir), info); err != nil {
		return err
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	return gzipWriter.Close()
}

// addTree writes path and, for directories, everything below it in name order.
func addTree(tw *tar.Writer, src Source, path, name string, info fs.FileInfo) error {
	// backups only contain plain files and directories
	if !info.Mode().IsRegular() && !info.IsDir() {
		return nil
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(name)
	if info.IsDir() {
		header.Name += "/"
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if !info.IsDir() {
		f, err := src.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", path, err)
		}
		return nil
	}

	children, err := src.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, child := range children {
		if err := addTree(tw, src, filepath.Join(path, child.Name()), name+"/"+child.Name(), child); err != nil {
			return err
		}
	}
	return nil
}

// Extract unpacks a tar gz stream created by TarDir into dest. Entries that
// would land outside dest are rejected. Returns the top-level directory
// created inside dest.
func Extract(reader io.Reader, dst Target, dest string) (string, error) {
	gzipReader, err := gzip.NewReader(reader)
	if err != nil {
		return "", fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzipReader.Close()

	cleanDest, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("resolving destination: %w", err)
	}

	var top string
	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read archive: %w", err)
		}

		target := filepath.Join(cleanDest, filepath.FromSlash(header.Name))
		if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(filepath.Separator)) {
			return "", fmt.Errorf("archive entry escapes destination: %s", header.Name)
		}
		if top == "" {
			top = filepath.Join(cleanDest, strings.SplitN(filepath.ToSlash(filepath.Clean(header.Name)), "/", 2)[0])
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := dst.MkdirAll(target); err != nil {
				return "", fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(dst, target, tarReader, header); err != nil {
				return "", err
			}
		default:
			// links and devices are never produced by TarDir
			continue
		}
	}

	if top == "" {
		return "", fmt.Errorf("archive is empty")
	}
	return top, nil
}

func writeEntry(dst Target, target string, r io.Reader, header *tar.Header) error {
	if err := dst.MkdirAll(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	f, err := dst.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to extract %s: %w", header.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	return dst.Chtimes(target, header.ModTime, header.ModTime)
}
