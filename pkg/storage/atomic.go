package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams r into dest. Bytes go to a uniquely named temp file in
// dest's directory which is renamed onto dest only after a successful copy,
// sync and close. On any error the temp file is removed and dest is untouched.
func WriteAtomic(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to sync file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return n, nil
}
