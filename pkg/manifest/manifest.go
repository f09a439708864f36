// Package manifest writes a JSON report of an export next to its archive:
// what was fetched per page, which files made it into the archive and which
// downloads failed.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shopfiles/pkg/models"
	"shopfiles/pkg/storage"
)

// Suffix is appended to the archive path to name its manifest
const Suffix = ".manifest.json"

// Manifest describes one export run
type Manifest struct {
	RunID          string               `json:"run_id"`
	Store          string               `json:"store"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at"`
	Archive        string               `json:"archive"`
	ArchiveBytes   int64                `json:"archive_bytes"`
	Completed      bool                 `json:"completed"`
	Degraded       bool                 `json:"degraded"`
	DegradedReason string               `json:"degraded_reason,omitempty"`
	LastCursor     string               `json:"last_cursor,omitempty"`
	Totals         Totals               `json:"totals"`
	Pages          []PageEntry          `json:"pages"`
	Files          []FileEntry          `json:"files"`
	Failures       []Failure            `json:"failures"`
	Skipped        []models.SkippedItem `json:"skipped,omitempty"`
}

// Totals sums the page entries
type Totals struct {
	Items      int   `json:"items"`
	Skipped    int   `json:"skipped"`
	Downloaded int   `json:"downloaded"`
	Failed     int   `json:"failed"`
	Bytes      int64 `json:"bytes"`
}

// PageEntry summarises one page
type PageEntry struct {
	Page       int `json:"page"`
	Items      int `json:"items"`
	Skipped    int `json:"skipped"`
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
}

// FileEntry is one downloaded file; Path is relative to the archive root
type FileEntry struct {
	Page  int    `json:"page"`
	Path  string `json:"path"`
	URL   string `json:"url"`
	Bytes int64  `json:"bytes"`
}

// Failure is one download that failed after all retries
type Failure struct {
	Page     int    `json:"page"`
	URL      string `json:"url"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}

// Run identifies the export a manifest belongs to
type Run struct {
	ID         string
	Store      string
	StartedAt  time.Time
	FinishedAt time.Time
	// WorkRoot is stripped from outcome paths
	WorkRoot     string
	Archive      string
	ArchiveBytes int64
}

// Build assembles a manifest from a run summary
func Build(run Run, summary *models.RunSummary) *Manifest {
	m := &Manifest{
		RunID:        run.ID,
		Store:        run.Store,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Archive:      run.Archive,
		ArchiveBytes: run.ArchiveBytes,
		Pages:        []PageEntry{},
		Files:        []FileEntry{},
		Failures:     []Failure{},
	}
	if summary == nil {
		return m
	}

	m.Completed = summary.Completed
	m.LastCursor = summary.LastCursor
	if summary.Err != nil {
		m.Degraded = true
		m.DegradedReason = summary.Err.Error()
	}

	for _, page := range summary.Pages {
		entry := PageEntry{
			Page:       page.Number,
			Items:      page.Items,
			Skipped:    len(page.Skipped),
			Downloaded: page.Downloaded(),
			Failed:     page.Failed(),
		}
		m.Pages = append(m.Pages, entry)
		m.Skipped = append(m.Skipped, page.Skipped...)

		m.Totals.Items += entry.Items
		m.Totals.Skipped += entry.Skipped
		m.Totals.Downloaded += entry.Downloaded
		m.Totals.Failed += entry.Failed

		for _, o := range page.Outcomes {
			if o.Success {
				m.Files = append(m.Files, FileEntry{
					Page:  page.Number,
					Path:  relativePath(run.WorkRoot, o.Path),
					URL:   o.URL,
					Bytes: o.Bytes,
				})
				m.Totals.Bytes += o.Bytes
				continue
			}
			m.Failures = append(m.Failures, Failure{
				Page:     page.Number,
				URL:      o.URL,
				Reason:   o.Reason,
				Attempts: o.Attempts,
			})
		}
	}
	return m
}

func relativePath(root, p string) string {
	if root == "" {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// PathFor returns the manifest path for an archive
func PathFor(archivePath string) string {
	return archivePath + Suffix
}

// Save writes the manifest atomically as indented JSON
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if _, err := storage.WriteAtomic(path, bytes.NewReader(append(data, '\n'))); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest written by Save
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}
