package paginator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfiles/pkg/checkpoint"
	"shopfiles/pkg/logger"
	"shopfiles/pkg/metrics"
	"shopfiles/pkg/models"
	"shopfiles/pkg/storage"
)

// fakeSource serves canned pages and records every request
type fakeSource struct {
	mu       sync.Mutex
	pages    []*models.Page
	failAt   int
	requests []models.PageRequest
}

func (f *fakeSource) FetchPage(ctx context.Context, req models.PageRequest) (*models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	n := len(f.requests)
	if f.failAt > 0 && n == f.failAt {
		return nil, errors.New("HTTP 502")
	}
	if n > len(f.pages) {
		return nil, fmt.Errorf("unexpected request %d", n)
	}
	return f.pages[n-1], nil
}

// fakeFetcher writes a small file for every URL not listed in fail
type fakeFetcher struct {
	mu    sync.Mutex
	fail  map[string]bool
	dests []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceURL, dest string, maxAttempts int) models.DownloadOutcome {
	f.mu.Lock()
	f.dests = append(f.dests, dest)
	f.mu.Unlock()

	if f.fail[sourceURL] {
		return models.DownloadOutcome{URL: sourceURL, Path: dest, Attempts: maxAttempts, Reason: "HTTP 500"}
	}
	if err := os.WriteFile(dest, []byte(sourceURL), 0644); err != nil {
		return models.DownloadOutcome{URL: sourceURL, Path: dest, Attempts: 1, Reason: err.Error()}
	}
	return models.DownloadOutcome{URL: sourceURL, Path: dest, Success: true, Attempts: 1, Bytes: int64(len(sourceURL))}
}

func genericFiles(prefix string, n int) []models.AssetDescriptor {
	items := make([]models.AssetDescriptor, n)
	for i := range items {
		items[i] = models.AssetDescriptor{
			ID:     fmt.Sprintf("gid://shopify/GenericFile/%s%d", prefix, i),
			Kind:   models.KindGenericFile,
			URL:    fmt.Sprintf("https://cdn.example.com/%s/file-%d.pdf", prefix, i),
			Cursor: fmt.Sprintf("%s-cursor-%d", prefix, i),
		}
	}
	return items
}

func newPaginator(t *testing.T, opts Options) (*Paginator, *storage.Tree) {
	t.Helper()
	tree, err := storage.NewTree(filepath.Join(t.TempDir(), "downloads"))
	require.NoError(t, err)

	opts.Tree = tree
	if opts.Fetcher == nil {
		opts.Fetcher = &fakeFetcher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	p, err := New(opts)
	require.NoError(t, err)
	return p, tree
}

func TestRunStopsOnEmptyPage(t *testing.T) {
	source := &fakeSource{pages: []*models.Page{
		{HasNextPage: true, Items: genericFiles("a", 50), LastCursor: "end-1"},
		{HasNextPage: true},
	}}
	p, tree := newPaginator(t, Options{Source: source, Workers: 3})

	summary := p.Run(context.Background())

	require.Len(t, source.requests, 2, "no third page may be requested")
	assert.Equal(t, "", source.requests[0].After)
	assert.Equal(t, "end-1", source.requests[1].After)
	assert.Equal(t, DefaultPageSize, source.requests[0].PageSize)

	assert.True(t, summary.Completed)
	assert.False(t, summary.Degraded())
	require.Len(t, summary.Pages, 2)
	assert.Equal(t, 50, summary.Pages[0].Downloaded())
	assert.Equal(t, 0, summary.Pages[1].Items)

	entries, err := os.ReadDir(filepath.Join(tree.Root(), "page_1"))
	require.NoError(t, err)
	assert.Len(t, entries, 50)
	assert.Equal(t, []int{1}, tree.Pages())
}

func TestRunFollowsCursorUntilLastPage(t *testing.T) {
	source := &fakeSource{pages: []*models.Page{
		{HasNextPage: true, Items: genericFiles("a", 2), LastCursor: "end-1"},
		{HasNextPage: false, Items: genericFiles("b", 1), LastCursor: "end-2"},
	}}
	p, _ := newPaginator(t, Options{Source: source, PageSize: 2})

	summary := p.Run(context.Background())

	require.Len(t, source.requests, 2)
	assert.True(t, summary.Completed)
	assert.Equal(t, "end-2", summary.LastCursor)
	_, _, downloaded, failed := summary.Totals()
	assert.Equal(t, 3, downloaded)
	assert.Equal(t, 0, failed)
}

func TestRunFallsBackToLastEdgeCursor(t *testing.T) {
	source := &fakeSource{pages: []*models.Page{
		{HasNextPage: true, Items: genericFiles("a", 3)},
		{HasNextPage: false},
	}}
	p, _ := newPaginator(t, Options{Source: source})

	p.Run(context.Background())

	require.Len(t, source.requests, 2)
	assert.Equal(t, "a-cursor-2", source.requests[1].After)
}

func TestRunSourceFailureKeepsEarlierPages(t *testing.T) {
	log := logger.NewTestLogger()
	m := metrics.New()
	source := &fakeSource{
		pages:  []*models.Page{{HasNextPage: true, Items: genericFiles("a", 2), LastCursor: "end-1"}},
		failAt: 2,
	}
	p, tree := newPaginator(t, Options{Source: source, Logger: log, Metrics: m})

	summary := p.Run(context.Background())

	assert.True(t, summary.Degraded())
	assert.False(t, summary.Completed)
	assert.Contains(t, summary.Err.Error(), "page 2")
	require.Len(t, summary.Pages, 1)
	assert.Equal(t, "end-1", summary.LastCursor)
	assert.True(t, log.HasError())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PageErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PagesFetched))

	entries, err := os.ReadDir(filepath.Join(tree.Root(), "page_1"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunStopsWhenCursorDoesNotAdvance(t *testing.T) {
	log := logger.NewTestLogger()
	source := &fakeSource{pages: []*models.Page{
		{HasNextPage: true, Items: genericFiles("a", 1), LastCursor: "same"},
		{HasNextPage: true, Items: genericFiles("b", 1), LastCursor: "same"},
	}}
	p, _ := newPaginator(t, Options{Source: source, Logger: log})

	summary := p.Run(context.Background())

	assert.Len(t, source.requests, 2)
	assert.ErrorIs(t, summary.Err, ErrCursorStalled)
	assert.False(t, summary.Completed)
	assert.Equal(t, 1, log.CountMessages("WARN", "without a usable cursor"))
}

func TestRunStopsWhenCursorMissing(t *testing.T) {
	source := &fakeSource{pages: []*models.Page{
		{HasNextPage: true, Items: []models.AssetDescriptor{{ID: "1", Kind: models.KindGenericFile, URL: "https://cdn.example.com/x.pdf"}}},
	}}
	p, _ := newPaginator(t, Options{Source: source})

	summary := p.Run(context.Background())

	assert.Len(t, source.requests, 1)
	assert.ErrorIs(t, summary.Err, ErrCursorStalled)
}

func TestRunRespectsMaxPages(t *testing.T) {
	source := &fakeSource{pages: []*models.Page{
		{HasNextPage: true, Items: genericFiles("a", 1), LastCursor: "end-1"},
		{HasNextPage: true, Items: genericFiles("b", 1), LastCursor: "end-2"},
		{HasNextPage: true, Items: genericFiles("c", 1), LastCursor: "end-3"},
	}}
	p, _ := newPaginator(t, Options{Source: source, MaxPages: 2})

	summary := p.Run(context.Background())

	assert.Len(t, source.requests, 2)
	assert.Len(t, summary.Pages, 2)
	assert.False(t, summary.Completed)
	assert.False(t, summary.Degraded())
	assert.Equal(t, "end-2", summary.LastCursor)
}

func TestRunSkipsItemsWithoutURL(t *testing.T) {
	log := logger.NewTestLogger()
	m := metrics.New()
	fetcher := &fakeFetcher{}
	source := &fakeSource{pages: []*models.Page{{
		HasNextPage: false,
		LastCursor:  "end-1",
		Items: []models.AssetDescriptor{
			{ID: "img-1", Kind: models.KindMediaImage, Alt: "No source"},
			{ID: "vid-1", Kind: "Video", URL: "https://cdn.example.com/v.mp4"},
			{ID: "file-1", Kind: models.KindGenericFile, URL: "https://cdn.example.com/report.pdf?sig=1"},
		},
	}}}
	p, tree := newPaginator(t, Options{Source: source, Fetcher: fetcher, Logger: log, Metrics: m})

	summary := p.Run(context.Background())

	require.Len(t, summary.Pages, 1)
	page := summary.Pages[0]
	assert.Equal(t, 3, page.Items)
	assert.Len(t, page.Skipped, 2)
	assert.Len(t, page.Outcomes, 1)
	assert.Equal(t, 2, log.CountMessages("WARN", "No valid URL for file"))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ItemsSkipped))
	assert.Equal(t, []string{filepath.Join(tree.Root(), "page_1", "report.pdf")}, fetcher.dests)
}

func TestRunDeduplicatesNamesWithinPage(t *testing.T) {
	fetcher := &fakeFetcher{}
	source := &fakeSource{pages: []*models.Page{{
		LastCursor: "end-1",
		Items: []models.AssetDescriptor{
			{ID: "1", Kind: models.KindGenericFile, URL: "https://cdn.example.com/a/logo.png"},
			{ID: "2", Kind: models.KindGenericFile, URL: "https://cdn.example.com/b/logo.png"},
		},
	}}}
	p, tree := newPaginator(t, Options{Source: source, Fetcher: fetcher, Workers: 1})

	summary := p.Run(context.Background())

	require.Len(t, summary.Pages, 1)
	assert.Equal(t, 2, summary.Pages[0].Downloaded())
	dir := filepath.Join(tree.Root(), "page_1")
	assert.FileExists(t, filepath.Join(dir, "logo.png"))
	assert.FileExists(t, filepath.Join(dir, "logo-2.png"))
}

func TestRunItemFailureDoesNotStopPage(t *testing.T) {
	items := genericFiles("a", 4)
	fetcher := &fakeFetcher{fail: map[string]bool{items[1].URL: true}}
	source := &fakeSource{pages: []*models.Page{{Items: items, LastCursor: "end-1"}}}
	p, _ := newPaginator(t, Options{Source: source, Fetcher: fetcher, Workers: 2})

	summary := p.Run(context.Background())

	require.Len(t, summary.Pages, 1)
	assert.Len(t, summary.Pages[0].Outcomes, 4)
	assert.Equal(t, 3, summary.Pages[0].Downloaded())
	assert.Equal(t, 1, summary.Pages[0].Failed())
	assert.True(t, summary.Completed)
}

func TestRunCancelledContext(t *testing.T) {
	source := &fakeSource{pages: []*models.Page{{Items: genericFiles("a", 1)}}}
	p, _ := newPaginator(t, Options{Source: source})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary := p.Run(ctx)

	assert.Empty(t, source.requests)
	assert.True(t, summary.Degraded())
	assert.False(t, summary.Completed)
}

func TestRunRecordsAndClearsCheckpoint(t *testing.T) {
	mgr, err := checkpoint.NewManager("demo.myshopify.com", t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	cp, err := mgr.Create("demo.myshopify.com")
	require.NoError(t, err)

	source := &fakeSource{pages: []*models.Page{
		{HasNextPage: true, Items: genericFiles("a", 1), LastCursor: "end-1"},
		{HasNextPage: true, Items: genericFiles("b", 1), LastCursor: "end-2"},
	}}
	p, _ := newPaginator(t, Options{Source: source, MaxPages: 2, Checkpoints: mgr, Checkpoint: cp})

	p.Run(context.Background())

	saved, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 2, saved.LastProcessedPage)
	assert.Equal(t, "end-2", saved.EndCursor)
	assert.Equal(t, 2, saved.TotalDownloaded)

	// resume and finish
	source = &fakeSource{pages: []*models.Page{{HasNextPage: false}}}
	p, _ = newPaginator(t, Options{
		Source:      source,
		Checkpoints: mgr,
		Checkpoint:  saved,
		StartPage:   saved.LastProcessedPage + 1,
		StartCursor: saved.EndCursor,
	})
	summary := p.Run(context.Background())

	require.Len(t, source.requests, 1)
	assert.Equal(t, "end-2", source.requests[0].After)
	assert.Equal(t, 3, summary.Pages[0].Number)
	assert.True(t, summary.Completed)
	assert.False(t, mgr.Exists())
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
