package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopfiles/internal/downloader"
	"shopfiles/pkg/archive"
	"shopfiles/pkg/checkpoint"
	"shopfiles/pkg/config"
	"shopfiles/pkg/logger"
	"shopfiles/pkg/manifest"
	"shopfiles/pkg/metrics"
	"shopfiles/pkg/models"
	"shopfiles/pkg/paginator"
	"shopfiles/pkg/ratelimit"
	"shopfiles/pkg/shopify"
	"shopfiles/pkg/storage"
	"shopfiles/pkg/ui"
)

// Options configures a Runner. Config is required; Source defaults to a
// Shopify client built from Config.
type Options struct {
	Config *config.Config
	Source paginator.Source
	// Resume continues from the store's checkpoint when one exists
	Resume bool
	// ForceRestart discards the store's checkpoint before starting
	ForceRestart bool
	Progress     ui.Progress
	Metrics      *metrics.Metrics
	Logger       logger.Logger
}

// Report is the result of one export run. It is returned even when Run
// fails, carrying whatever was produced before the failure.
type Report struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	StartPage    int
	Summary      *models.RunSummary
	Archive      *archive.Result
	ManifestPath string
	FailureLog   string
	// CleanupErr is set when the run's page directories could not be removed
	CleanupErr error
}

// Runner performs a complete export: setup, pagination, archiving, the
// manifest and cleanup of the page directories
type Runner struct {
	cfg          *config.Config
	source       paginator.Source
	resume       bool
	forceRestart bool
	progress     ui.Progress
	metrics      *metrics.Metrics
	logger       logger.Logger
}

// NewRunner validates the configuration and creates a Runner
func NewRunner(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("export: config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if opts.Resume && opts.ForceRestart {
		return nil, fmt.Errorf("export: resume and force restart are mutually exclusive")
	}

	r := &Runner{
		cfg:          opts.Config,
		source:       opts.Source,
		resume:       opts.Resume,
		forceRestart: opts.ForceRestart,
		progress:     opts.Progress,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
	if r.logger == nil {
		r.logger = logger.GetLogger()
	}
	if r.progress == nil {
		r.progress = ui.NopProgress{}
	}
	if r.metrics == nil && r.cfg.Metrics.Address != "" {
		r.metrics = metrics.New()
	}

	if r.source == nil {
		if err := r.cfg.ValidateCredentials(); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		client, err := shopify.NewClient(shopify.ClientOptions{
			Endpoint:    r.cfg.GraphQLEndpoint(),
			AccessToken: r.cfg.Shopify.AccessToken,
			Timeout:     r.cfg.Download.RequestTimeout,
			Logger:      r.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		r.source = client
	}
	return r, nil
}

// storeKey names the store in checkpoints, logs and the manifest
func (r *Runner) storeKey() string {
	if r.cfg.Shopify.Store != "" {
		return r.cfg.Shopify.Store
	}
	return r.cfg.Shopify.Endpoint
}

// Run executes the export. Download failures and an early end of
// pagination are reported in the Report; only setup and archive failures
// are returned as errors. The page directories the run created are removed
// before Run returns, whatever the outcome; the work root goes too when
// nothing else is in it.
func (r *Runner) Run(ctx context.Context) (report *Report, err error) {
	report = &Report{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now(),
		StartPage:  1,
		FailureLog: r.cfg.Output.FailureLog,
	}
	log := r.logger.WithFields(map[string]interface{}{
		"component": "export",
		"run_id":    report.RunID,
	})

	tree, err := storage.NewTree(r.cfg.Output.WorkDirectory)
	if err != nil {
		return report, fmt.Errorf("export setup: %w", err)
	}
	defer func() {
		report.FinishedAt = time.Now()
		if cerr := tree.Remove(); cerr != nil {
			report.CleanupErr = cerr
			log.WithError(cerr).WarnWithFields("Failed to remove page directories", map[string]interface{}{
				"path": tree.Root(),
			})
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			log.ErrorWithFields("Export panicked", map[string]interface{}{"panic": fmt.Sprint(rec)})
			err = fmt.Errorf("export: panic: %v", rec)
		}
	}()

	if err := r.setup(tree, log); err != nil {
		return report, fmt.Errorf("export setup: %w", err)
	}

	if r.metrics != nil && r.cfg.Metrics.Address != "" {
		metricsCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if serr := r.metrics.Serve(metricsCtx, r.cfg.Metrics.Address); serr != nil {
				log.WithError(serr).Warn("Metrics endpoint stopped")
			}
		}()
	}

	manager, cp, err := r.openCheckpoint(log)
	if err != nil {
		return report, fmt.Errorf("export setup: %w", err)
	}
	startCursor := ""
	if cp != nil && r.resume && cp.LastProcessedPage > 0 {
		report.StartPage = cp.LastProcessedPage + 1
		startCursor = cp.EndCursor
	}

	log.InfoWithFields("Starting export", map[string]interface{}{
		"store":      r.storeKey(),
		"work_dir":   tree.Root(),
		"archive":    r.cfg.Output.ArchivePath,
		"start_page": report.StartPage,
	})

	fetcher := downloader.NewFetcher(downloader.FetcherOptions{
		RequestTimeout: r.cfg.Download.RequestTimeout,
		RetryDelay:     r.cfg.Download.RetryDelay,
		Failures:       storage.NewFailureLog(r.cfg.Output.FailureLog),
		Metrics:        r.metrics,
		Logger:         log,
	})
	pg, err := paginator.New(paginator.Options{
		Source:      r.source,
		Tree:        tree,
		Fetcher:     fetcher,
		Workers:     r.cfg.Download.ConcurrentDownloads,
		MaxAttempts: r.cfg.Download.RetryAttempts,
		PageSize:    r.cfg.Download.PageSize,
		MaxPages:    r.cfg.Download.MaxPages,
		Limiter:     ratelimit.New(r.cfg.RateLimit.RequestsPerMinute),
		Checkpoints: manager,
		Checkpoint:  cp,
		StartPage:   report.StartPage,
		StartCursor: startCursor,
		Metrics:     r.metrics,
		Progress:    r.progress,
		Logger:      log,
	})
	if err != nil {
		return report, fmt.Errorf("export setup: %w", err)
	}

	report.Summary = pg.Run(ctx)

	archivePath := archivePathFor(r.cfg.Output.ArchivePath, report.StartPage)
	report.Archive, err = archive.Archive(tree.Root(), tree.Dirs(), archivePath)
	if err != nil {
		log.WithError(err).ErrorWithFields("Failed to create archive", map[string]interface{}{
			"archive": archivePath,
		})
		return report, err
	}
	log.InfoWithFields("Archive written", map[string]interface{}{
		"archive": report.Archive.Path,
		"files":   report.Archive.Files,
		"bytes":   report.Archive.Bytes,
	})

	if r.cfg.Output.WriteManifest {
		r.writeManifest(report, tree.Root(), log)
	}

	items, skipped, downloaded, failed := report.Summary.Totals()
	fields := map[string]interface{}{
		"pages":      len(report.Summary.Pages),
		"items":      items,
		"skipped":    skipped,
		"downloaded": downloaded,
		"failed":     failed,
		"completed":  report.Summary.Completed,
		"duration":   time.Since(report.StartedAt),
	}
	if failed > 0 {
		fields["failure_log"] = r.cfg.Output.FailureLog
	}
	if report.Summary.Degraded() {
		fields["reason"] = report.Summary.Err.Error()
		log.WarnWithFields("Export finished early", fields)
	} else {
		log.InfoWithFields("Export finished", fields)
	}
	return report, nil
}

// setup ensures the directories the run writes to exist and clears pages
// left by an interrupted run
func (r *Runner) setup(tree *storage.Tree, log logger.Logger) error {
	if removed, err := tree.ClearStale(); err != nil {
		return err
	} else if len(removed) > 0 {
		log.WarnWithFields("Removed page directories left by an earlier run", map[string]interface{}{
			"directories": removed,
		})
	}
	for _, dir := range []string{
		filepath.Dir(r.cfg.Output.ArchivePath),
		filepath.Dir(r.cfg.Output.FailureLog),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// openCheckpoint returns the checkpoint manager and the checkpoint this run
// should update, or nils when checkpoints are disabled
func (r *Runner) openCheckpoint(log logger.Logger) (*checkpoint.Manager, *checkpoint.Checkpoint, error) {
	if !r.cfg.Checkpoint.Enabled {
		return nil, nil, nil
	}

	manager, err := checkpoint.NewManager(r.storeKey(), r.cfg.Checkpoint.Directory, log)
	if err != nil {
		return nil, nil, err
	}

	if r.forceRestart {
		if err := manager.Delete(); err != nil {
			return nil, nil, err
		}
		log.Info("Checkpoint cleared, starting from the first page")
	}

	if r.resume {
		cp, err := manager.Load()
		if err != nil {
			return nil, nil, err
		}
		if cp != nil {
			log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"last_page":  cp.LastProcessedPage,
				"end_cursor": cp.EndCursor,
				"downloaded": cp.TotalDownloaded,
				"failed":     cp.TotalFailed,
			})
			return manager, cp, nil
		}
		log.Info("No checkpoint found, starting from the first page")
	} else if manager.Exists() && !r.forceRestart {
		log.WarnWithFields("Replacing existing checkpoint, pass --resume to continue it instead", map[string]interface{}{
			"path": manager.Path(),
		})
	}

	cp, err := manager.Create(r.storeKey())
	if err != nil {
		return nil, nil, err
	}
	return manager, cp, nil
}

func (r *Runner) writeManifest(report *Report, workRoot string, log logger.Logger) {
	m := manifest.Build(manifest.Run{
		ID:           report.RunID,
		Store:        r.storeKey(),
		StartedAt:    report.StartedAt,
		FinishedAt:   time.Now(),
		WorkRoot:     workRoot,
		Archive:      report.Archive.Path,
		ArchiveBytes: report.Archive.Bytes,
	}, report.Summary)

	path := manifest.PathFor(report.Archive.Path)
	if err := m.Save(path); err != nil {
		log.WithError(err).WarnWithFields("Failed to write manifest", map[string]interface{}{"path": path})
		return
	}
	report.ManifestPath = path
}

// archivePathFor keeps a resumed run from overwriting the archive of the
// run it continues: pages from startPage on go to <name>-from-page-<N>.zip.
func archivePathFor(path string, startPage int) string {
	if startPage <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-from-page-" + strconv.Itoa(startPage) + ext
}
