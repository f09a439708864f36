package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func pageDirs(root string, pages ...int) []string {
	dirs := make([]string, 0, len(pages))
	for _, n := range pages {
		dirs = append(dirs, filepath.Join(root, "page_"+strconv.Itoa(n)))
	}
	return dirs
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(data)
	}
	return out
}

func TestArchive(t *testing.T) {
	root := filepath.Join(t.TempDir(), "downloads")
	writeFile(t, filepath.Join(root, "page_1", "report.pdf"), "pdf")
	writeFile(t, filepath.Join(root, "page_1", "logo.png"), "png")
	writeFile(t, filepath.Join(root, "page_2", "Q3_Report_.png"), "q3")

	dest := filepath.Join(t.TempDir(), "zipped_files", "files.zip")
	res, err := Archive(root, pageDirs(root, 1, 2), dest)
	require.NoError(t, err)

	assert.Equal(t, dest, res.Path)
	assert.Equal(t, 3, res.Files)
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), res.Bytes)

	entries := readZip(t, dest)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"page_1/logo.png", "page_1/report.pdf", "page_2/Q3_Report_.png"}, names)
	assert.Equal(t, "q3", entries["page_2/Q3_Report_.png"])
}

func TestArchiveEmptyTree(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(t.TempDir(), "files.zip")

	res, err := Archive(root, nil, dest)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Files)
	assert.Empty(t, readZip(t, dest))
}

func TestArchiveMissingRoot(t *testing.T) {
	destDir := t.TempDir()
	_, err := Archive(filepath.Join(t.TempDir(), "missing"), nil, filepath.Join(destDir, "files.zip"))
	assert.Error(t, err)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchiveUnwritableDestination(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "page_1", "a.txt"), "a")

	blocker := filepath.Join(t.TempDir(), "blocker")
	writeFile(t, blocker, "not a directory")

	_, err := Archive(root, pageDirs(root, 1), filepath.Join(blocker, "files.zip"))
	assert.Error(t, err)
}

func TestArchiveReplacesExisting(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "page_1", "new.txt"), "new")

	dest := filepath.Join(t.TempDir(), "files.zip")
	writeFile(t, dest, "old archive")

	_, err := Archive(root, pageDirs(root, 1), dest)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"page_1/new.txt": "new"}, readZip(t, dest))
}

func TestArchiveOnlyListedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "page_1", "a.txt"), "a")
	writeFile(t, filepath.Join(root, "page_2", "b.txt"), "b")
	writeFile(t, filepath.Join(root, "keep", "notes.txt"), "mine")
	writeFile(t, filepath.Join(root, "top.txt"), "mine too")

	dest := filepath.Join(t.TempDir(), "files.zip")
	res, err := Archive(root, pageDirs(root, 2), dest)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, map[string]string{"page_2/b.txt": "b"}, readZip(t, dest))
}

func TestArchiveRejectsDirectoryOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.txt"), "x")

	destDir := t.TempDir()
	_, err := Archive(root, []string{outside}, filepath.Join(destDir, "files.zip"))
	assert.Error(t, err)

	_, err = Archive(root, []string{root}, filepath.Join(destDir, "files.zip"))
	assert.Error(t, err)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
