package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"shopfiles/pkg/logger"
	"shopfiles/pkg/models"
	"shopfiles/pkg/storage"
)

// CurrentVersion is written into every saved checkpoint
const CurrentVersion = 1

// Checkpoint is the pagination state of an export for one store
type Checkpoint struct {
	Store             string    `json:"store"`
	LastProcessedPage int       `json:"last_processed_page"`
	EndCursor         string    `json:"end_cursor"`
	TotalDownloaded   int       `json:"total_downloaded"`
	TotalFailed       int       `json:"total_failed"`
	TotalSkipped      int       `json:"total_skipped"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Version           int       `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// NewManager creates a checkpoint manager for store. Files live in dir, or
// in the platform data directory when dir is empty.
func NewManager(store, dir string, log logger.Logger) (*Manager, error) {
	if store == "" {
		return nil, fmt.Errorf("store must not be empty")
	}
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}

	key := unsafeKeyChars.ReplaceAllString(store, "_")
	return &Manager{
		checkpointPath: filepath.Join(dir, key+".checkpoint.json"),
		logger:         log.WithField("component", "checkpoint"),
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create saves and returns a fresh checkpoint
func (m *Manager) Create(store string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		Store:     store,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   CurrentVersion,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint created", map[string]interface{}{
		"store": store,
		"path":  m.checkpointPath,
	})
	return cp, nil
}

// Load reads the checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version > CurrentVersion {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, CurrentVersion)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"store":      cp.Store,
		"last_page":  cp.LastProcessedPage,
		"end_cursor": cp.EndCursor,
		"updated_at": cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()
	if cp.Version == 0 {
		cp.Version = CurrentVersion
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if _, err := storage.WriteAtomic(m.checkpointPath, bytes.NewReader(append(data, '\n'))); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"store":      cp.Store,
		"last_page":  cp.LastProcessedPage,
		"end_cursor": cp.EndCursor,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// UpdateProgress records a finished page and the cursor to continue from
func (m *Manager) UpdateProgress(cp *Checkpoint, summary models.PageSummary, nextCursor string) error {
	cp.LastProcessedPage = summary.Number
	cp.EndCursor = nextCursor
	cp.TotalDownloaded += summary.Downloaded()
	cp.TotalFailed += summary.Failed()
	cp.TotalSkipped += len(summary.Skipped)
	return m.Save(cp)
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "shopfiles")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "shopfiles")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "shopfiles")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "shopfiles")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
