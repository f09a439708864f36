package paginator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"shopfiles/internal/downloader"
	"shopfiles/pkg/checkpoint"
	errs "shopfiles/pkg/errors"
	"shopfiles/pkg/filename"
	"shopfiles/pkg/logger"
	"shopfiles/pkg/metrics"
	"shopfiles/pkg/models"
	"shopfiles/pkg/ratelimit"
	"shopfiles/pkg/storage"
	"shopfiles/pkg/ui"
)

// DefaultPageSize is requested when Options.PageSize is not set
const DefaultPageSize = 50

// ErrCursorStalled is recorded when the source reports more pages but gives
// no cursor to reach them
var ErrCursorStalled = errors.New("next page cursor is missing or unchanged")

// Source lists remote assets one page at a time. Implemented by
// *shopify.Client.
type Source interface {
	FetchPage(ctx context.Context, req models.PageRequest) (*models.Page, error)
}

// Options configures a Paginator. Source, Tree and Fetcher are required.
type Options struct {
	Source      Source
	Tree        *storage.Tree
	Fetcher     downloader.AssetFetcher
	Workers     int
	MaxAttempts int
	PageSize    int
	// MaxPages bounds the pages requested by this run; 0 means no limit
	MaxPages int
	Limiter  ratelimit.Limiter

	// Checkpoints and Checkpoint are both set to record progress after
	// every page. StartPage and StartCursor resume an earlier run.
	Checkpoints *checkpoint.Manager
	Checkpoint  *checkpoint.Checkpoint
	StartPage   int
	StartCursor string

	Metrics  *metrics.Metrics
	Progress ui.Progress
	Logger   logger.Logger
}

// Paginator walks the remote listing and downloads every page's assets
// before requesting the next one
type Paginator struct {
	opts     Options
	progress ui.Progress
	limiter  ratelimit.Limiter
	logger   logger.Logger
}

// New creates a Paginator
func New(opts Options) (*Paginator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("paginator: source is required")
	}
	if opts.Tree == nil {
		return nil, fmt.Errorf("paginator: directory tree is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("paginator: fetcher is required")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = downloader.DefaultMaxAttempts
	}
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.StartPage < 1 {
		opts.StartPage = 1
	}

	p := &Paginator{
		opts:     opts,
		progress: opts.Progress,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
	}
	if p.progress == nil {
		p.progress = ui.NopProgress{}
	}
	if p.limiter == nil {
		p.limiter = ratelimit.Unlimited{}
	}
	if p.logger == nil {
		p.logger = logger.GetLogger()
	}
	p.logger = p.logger.WithField("component", "paginator")
	return p, nil
}

// Run pages through the source until it is exhausted, the page limit is
// reached, the source fails or ctx is cancelled. A source failure ends the
// run early and is reported in RunSummary.Err; it is not returned as an error.
func (p *Paginator) Run(ctx context.Context) *models.RunSummary {
	summary := &models.RunSummary{LastCursor: p.opts.StartCursor}
	cursor := models.PageCursor{After: p.opts.StartCursor, HasMore: true}
	number := p.opts.StartPage

	p.logger.InfoWithFields("Starting pagination", map[string]interface{}{
		"start_page": number,
		"page_size":  p.opts.PageSize,
		"max_pages":  p.opts.MaxPages,
		"workers":    p.opts.Workers,
		"resumed":    p.opts.StartCursor != "",
	})

	for cursor.HasMore {
		if p.opts.MaxPages > 0 && len(summary.Pages) >= p.opts.MaxPages {
			p.logger.InfoWithFields("Page limit reached", map[string]interface{}{
				"max_pages":  p.opts.MaxPages,
				"end_cursor": cursor.After,
			})
			break
		}

		if err := p.limiter.Wait(ctx); err != nil {
			summary.Err = p.interrupted(number, err)
			break
		}

		p.progress.PageStarted(number)
		p.logger.DebugWithFields("Fetching page", map[string]interface{}{
			"page":  number,
			"after": cursor.After,
		})

		page, err := p.opts.Source.FetchPage(ctx, models.PageRequest{
			PageSize: p.opts.PageSize,
			After:    cursor.After,
		})
		if err != nil {
			if ctx.Err() != nil {
				summary.Err = p.interrupted(number, ctx.Err())
				break
			}
			p.opts.Metrics.PageFailed()
			p.logger.WithError(err).ErrorWithFields("Failed to fetch page, stopping pagination", map[string]interface{}{
				"page":  number,
				"after": cursor.After,
			})
			summary.Err = fmt.Errorf("page %d: %w", number, err)
			break
		}
		p.opts.Metrics.PageFetched()

		pageSummary := p.processPage(ctx, number, page.Items)
		summary.Pages = append(summary.Pages, pageSummary)
		p.progress.PageFinished(pageSummary)
		logger.LogPageSummary(p.logger, pageSummary)

		if len(page.Items) == 0 {
			p.logger.InfoWithFields("Empty page, no more files", map[string]interface{}{"page": number})
			cursor = models.PageCursor{HasMore: false}
			break
		}

		next := nextCursor(page)
		if page.HasNextPage && (next == "" || next == cursor.After) {
			p.logger.WarnWithFields("Source reports more pages without a usable cursor, stopping", map[string]interface{}{
				"page":        number,
				"after":       cursor.After,
				"next_cursor": next,
			})
			summary.Err = fmt.Errorf("page %d: %w", number, ErrCursorStalled)
			break
		}

		cursor = models.PageCursor{After: next, HasMore: page.HasNextPage}
		summary.LastCursor = next
		p.saveProgress(pageSummary, next)

		if ctx.Err() != nil {
			summary.Err = p.interrupted(number+1, ctx.Err())
			break
		}
		number++
	}

	summary.Completed = !cursor.HasMore
	if summary.Completed {
		p.finishCheckpoint()
	}

	items, skipped, downloaded, failed := summary.Totals()
	p.logger.InfoWithFields("Pagination finished", map[string]interface{}{
		"pages":      len(summary.Pages),
		"items":      items,
		"skipped":    skipped,
		"downloaded": downloaded,
		"failed":     failed,
		"completed":  summary.Completed,
		"degraded":   summary.Degraded(),
	})
	return summary
}

// processPage downloads every item of one page and waits for all outcomes
func (p *Paginator) processPage(ctx context.Context, number int, items []models.AssetDescriptor) models.PageSummary {
	pageSummary := models.PageSummary{Number: number, Items: len(items)}
	dedupe := filename.NewDeduper()

	var (
		dir  string
		jobs []downloader.DownloadJob
	)
	for _, item := range items {
		src := item.SourceURL()
		if src == "" {
			p.logger.WarnWithFields("No valid URL for file", map[string]interface{}{
				"page": number,
				"id":   item.ID,
				"kind": string(item.Kind),
			})
			pageSummary.Skipped = append(pageSummary.Skipped, models.SkippedItem{ID: item.ID, Kind: item.Kind})
			p.opts.Metrics.Skipped()
			continue
		}

		if dir == "" {
			dir = p.pageDir(number)
		}
		name := dedupe.Claim(filename.Resolve(item))
		jobs = append(jobs, downloader.DownloadJob{
			Index:       len(jobs),
			Page:        number,
			Descriptor:  item,
			URL:         src,
			Destination: filepath.Join(dir, name),
		})
	}

	p.progress.PageFetched(number, len(jobs))
	if len(jobs) == 0 {
		return pageSummary
	}

	results := downloader.RunJobs(ctx, p.opts.Workers, p.opts.Fetcher, p.opts.MaxAttempts, jobs,
		func(r downloader.DownloadResult) {
			p.progress.ItemFinished(number, r.Outcome)
		}, p.logger)

	pageSummary.Outcomes = make([]models.DownloadOutcome, 0, len(results))
	for _, r := range results {
		pageSummary.Outcomes = append(pageSummary.Outcomes, r.Outcome)
	}
	return pageSummary
}

// pageDir creates the page directory. On failure it still returns the
// intended path so every download of the page fails and is recorded.
func (p *Paginator) pageDir(number int) string {
	dir, err := p.opts.Tree.PageDir(number)
	if err != nil {
		p.logger.WithError(err).ErrorWithFields("Failed to create page directory", map[string]interface{}{
			"page": number,
		})
		return filepath.Join(p.opts.Tree.Root(), storage.PageDirPrefix+strconv.Itoa(number))
	}
	return dir
}

func (p *Paginator) interrupted(number int, err error) error {
	p.logger.WarnWithFields("Pagination interrupted", map[string]interface{}{
		"page":  number,
		"error": err.Error(),
	})
	return fmt.Errorf("page %d: %w", number, errs.Classify(err))
}

func (p *Paginator) saveProgress(summary models.PageSummary, next string) {
	if p.opts.Checkpoints == nil || p.opts.Checkpoint == nil {
		return
	}
	if err := p.opts.Checkpoints.UpdateProgress(p.opts.Checkpoint, summary, next); err != nil {
		p.logger.WithError(err).Warn("Failed to update checkpoint progress")
	}
}

func (p *Paginator) finishCheckpoint() {
	if p.opts.Checkpoints == nil {
		return
	}
	if err := p.opts.Checkpoints.Delete(); err != nil {
		p.logger.WithError(err).Warn("Failed to delete checkpoint")
		return
	}
	p.logger.Debug("Checkpoint deleted after complete listing")
}

// nextCursor prefers the listing's end cursor and falls back to the cursor
// of the last edge
func nextCursor(page *models.Page) string {
	if page.LastCursor != "" {
		return page.LastCursor
	}
	if n := len(page.Items); n > 0 {
		return page.Items[n-1].Cursor
	}
	return ""
}
