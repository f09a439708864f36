package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfiles/pkg/logger"
	"shopfiles/pkg/models"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager("demo.myshopify.com", t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	return mgr
}

func TestCreateAndLoad(t *testing.T) {
	mgr := newManager(t)

	cp, err := mgr.Create("demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, cp.Version)
	assert.True(t, mgr.Exists())

	loaded, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "demo.myshopify.com", loaded.Store)
	assert.Equal(t, 0, loaded.LastProcessedPage)
}

func TestLoadMissing(t *testing.T) {
	mgr := newManager(t)

	cp, err := mgr.Load()
	assert.NoError(t, err)
	assert.Nil(t, cp)
}

func TestUpdateProgress(t *testing.T) {
	mgr := newManager(t)
	cp, err := mgr.Create("demo.myshopify.com")
	require.NoError(t, err)

	summary := models.PageSummary{
		Number:  2,
		Items:   4,
		Skipped: []models.SkippedItem{{ID: "gid://1"}},
		Outcomes: []models.DownloadOutcome{
			{Success: true}, {Success: true}, {Success: false, Reason: "HTTP 500"},
		},
	}
	require.NoError(t, mgr.UpdateProgress(cp, summary, "cursor-2"))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.LastProcessedPage)
	assert.Equal(t, "cursor-2", loaded.EndCursor)
	assert.Equal(t, 2, loaded.TotalDownloaded)
	assert.Equal(t, 1, loaded.TotalFailed)
	assert.Equal(t, 1, loaded.TotalSkipped)
}

func TestDelete(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.Create("demo.myshopify.com")
	require.NoError(t, err)

	require.NoError(t, mgr.Delete())
	assert.False(t, mgr.Exists())
	assert.NoError(t, mgr.Delete(), "deleting twice is fine")
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	mgr := newManager(t)
	require.NoError(t, os.WriteFile(mgr.Path(), []byte("{not json"), 0644))

	_, err := mgr.Load()
	assert.Error(t, err)
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	mgr := newManager(t)
	require.NoError(t, os.WriteFile(mgr.Path(), []byte(`{"store":"x","version":99}`), 0644))

	_, err := mgr.Load()
	assert.ErrorContains(t, err, "newer")
}

func TestStoreKeyIsSanitised(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager("https://demo.myshopify.com/", dir, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(mgr.Path()))
	assert.Equal(t, "https___demo.myshopify.com_.checkpoint.json", filepath.Base(mgr.Path()))
}

func TestDefaultDirectoryUsesXDG(t *testing.T) {
	if os.Getenv("APPDATA") != "" {
		t.Skip("windows data directory")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)

	mgr, err := NewManager("demo.myshopify.com", "", logger.NewNopLogger())
	require.NoError(t, err)
	if filepath.Dir(filepath.Dir(filepath.Dir(mgr.Path()))) != xdg {
		t.Skip("platform data directory is not XDG based")
	}
	assert.Equal(t, filepath.Join(xdg, "shopfiles", "checkpoints"), filepath.Dir(mgr.Path()))
}

func TestNewManagerRequiresStore(t *testing.T) {
	_, err := NewManager("", t.TempDir(), nil)
	assert.Error(t, err)
}
