package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FailureRecorder records a download that failed after all retries
type FailureRecorder interface {
	Record(url, reason string) error
}

// FailureLog is an append-only text file with one "<url> | <reason>" line
// per failed download. Existing content is never truncated.
type FailureLog struct {
	path string
	mu   sync.Mutex
}

// NewFailureLog returns a FailureLog writing to path. The file is created
// lazily on the first Record.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Path returns the file path
func (f *FailureLog) Path() string {
	return f.path
}

// Record appends one line. Concurrent calls never interleave.
func (f *FailureLog) Record(url, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create failure log directory: %w", err)
		}
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open failure log: %w", err)
	}

	if _, err := fmt.Fprintf(file, "%s | %s\n", url, reason); err != nil {
		file.Close()
		return fmt.Errorf("failed to append to failure log: %w", err)
	}
	return file.Close()
}
