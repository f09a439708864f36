// Package archive packs the page directories of a run into a single zip file.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Result describes a written archive
type Result struct {
	Path  string
	Files int
	// Bytes is the size of the archive on disk
	Bytes int64
}

// Archive zips every regular file under the given directories into dest.
// Each dir must lie inside root; entry names are relative to root with
// forward slashes, e.g. page_1/report.pdf. Nothing else under root is read.
// The archive is written to a temporary file beside dest and renamed on
// success, so dest is never left half written.
func Archive(root string, dirs []string, dest string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("archive: %s is not a directory", root)
	}
	for _, dir := range dirs {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("archive: %s is not inside %s", dir, root)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("archive: failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("archive: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	files, err := writeZip(tmp, root, dirs)
	if err != nil {
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("archive: failed to sync: %w", err)
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("archive: failed to close: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("archive: failed to move archive into place: %w", err)
	}
	committed = true

	return &Result{Path: dest, Files: files, Bytes: size}, nil
}

func writeZip(w io.Writer, root string, dirs []string) (int, error) {
	zw := zip.NewWriter(w)
	files := 0

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if err := addFile(zw, path, filepath.ToSlash(rel), d); err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}
			files++
			return nil
		})
		if err != nil {
			zw.Close()
			return 0, fmt.Errorf("archive: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("archive: failed to finish zip: %w", err)
	}
	return files, nil
}

func addFile(zw *zip.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = strings.TrimPrefix(name, "/")
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
