package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shopfiles/pkg/auth"
	"shopfiles/pkg/config"
	"shopfiles/pkg/export"
	"shopfiles/pkg/logger"
	"shopfiles/pkg/ui"
)

var exportFlags struct {
	store          string
	apiVersion     string
	workDir        string
	archive        string
	failureLog     string
	concurrent     int
	pageSize       int
	maxPages       int
	retryAttempts  int
	requestTimeout time.Duration
	rateLimit      int
	metricsAddr    string
	resume         bool
	forceRestart   bool
	notify         bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download every file of the store and zip them",
	Long: `Export all files listed in the store's Files section.

Each page of the listing is downloaded into page_<N>/ under the work
directory. Those page directories are zipped into the archive and then
removed; anything else in the work directory is left alone. A manifest
describing the run is written next to the archive.

Credentials come from, in order:
  - the access_token config value or SHOPFILES_ACCESS_TOKEN / ACCESS_TOKEN
  - credentials stored with 'shopfiles auth login'

The command exits 0 when the archive was written, even if some downloads
failed or the listing ended early; check the failure log in that case.`,
	Example: `  # Export with stored credentials
  shopfiles export --store demo.myshopify.com

  # Smaller pages, more parallel downloads
  shopfiles export --store demo --page-size 25 --concurrent 6

  # Continue an interrupted export
  shopfiles export --store demo --resume`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addExportFlags(exportCmd)
}

func addExportFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&exportFlags.store, "store", "s", "", "store domain, e.g. demo.myshopify.com")
	f.StringVar(&exportFlags.apiVersion, "api-version", "", "Admin API version (default 2024-10)")
	f.StringVar(&exportFlags.workDir, "work-dir", "", "temporary download directory (default ./downloads)")
	f.StringVarP(&exportFlags.archive, "archive", "o", "", "archive path (default ./zipped_files/files.zip)")
	f.StringVar(&exportFlags.failureLog, "failure-log", "", "failed download record (default failed_downloads.txt)")
	f.IntVar(&exportFlags.concurrent, "concurrent", 3, "parallel downloads per page")
	f.IntVar(&exportFlags.pageSize, "page-size", 50, "files requested per page (1-250)")
	f.IntVar(&exportFlags.maxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	f.IntVar(&exportFlags.retryAttempts, "retry-attempts", 3, "attempts per download")
	f.DurationVar(&exportFlags.requestTimeout, "request-timeout", 10*time.Second, "timeout per HTTP request")
	f.IntVar(&exportFlags.rateLimit, "rate-limit", 60, "page requests per minute (0 = unlimited)")
	f.StringVar(&exportFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.BoolVar(&exportFlags.resume, "resume", false, "continue from the store's last checkpoint")
	f.BoolVar(&exportFlags.forceRestart, "force-restart", false, "discard the store's checkpoint and start over")
	f.BoolVar(&exportFlags.notify, "notify", false, "show a desktop notification when the export ends")
}

// changedFlags returns only the flags given on the command line so they
// override config and environment values
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	f := cmd.Flags()
	flags := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if f.Changed(name) {
			flags[name] = value
		}
	}
	set("store", exportFlags.store)
	set("api-version", exportFlags.apiVersion)
	set("work-dir", exportFlags.workDir)
	set("archive", exportFlags.archive)
	set("failure-log", exportFlags.failureLog)
	set("concurrent", exportFlags.concurrent)
	set("page-size", exportFlags.pageSize)
	set("max-pages", exportFlags.maxPages)
	set("retry-attempts", exportFlags.retryAttempts)
	set("request-timeout", exportFlags.requestTimeout)
	set("rate-limit", exportFlags.rateLimit)
	set("metrics-addr", exportFlags.metricsAddr)
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runExport(cmd *cobra.Command) error {
	printer := ui.Stdout()

	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("shopfiles starting")

	if err := resolveCredentials(cfg, log); err != nil {
		return err
	}
	printer.Info("Store", cfg.Shopify.Store)
	printer.Info("Archive", cfg.Output.ArchivePath)

	var progress ui.Progress = ui.NopProgress{}
	if !quiet {
		progress = ui.NewStatusTracker(printer)
	}

	runner, err := export.NewRunner(export.Options{
		Config:       cfg,
		Resume:       exportFlags.resume,
		ForceRestart: exportFlags.forceRestart,
		Progress:     progress,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := ui.NewNotifier(printer, exportFlags.notify)
	report, err := runner.Run(ctx)
	if err != nil {
		notifier.Error("Export failed", err.Error())
		return err
	}

	printReport(printer, notifier, report)
	return nil
}

// resolveCredentials fills the access token from the credential store when
// config and environment did not supply one
func resolveCredentials(cfg *config.Config, log logger.Logger) error {
	if cfg.Shopify.AccessToken != "" {
		return cfg.ValidateCredentials()
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	var account *auth.Account
	if cfg.Shopify.Store != "" {
		account, err = manager.Retrieve(cfg.Shopify.Store)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return fmt.Errorf("%w: run 'shopfiles auth login' or set SHOPFILES_ACCESS_TOKEN", err)
		}
		return err
	}

	cfg.Shopify.AccessToken = account.AccessToken
	if cfg.Shopify.Store == "" {
		cfg.Shopify.Store = account.Store
	}
	if account.APIVersion != "" && cfg.Shopify.APIVersion == config.DefaultConfig().Shopify.APIVersion {
		cfg.Shopify.APIVersion = account.APIVersion
	}
	log.WithField("store", account.Store).Info("Using stored credentials")
	return cfg.ValidateCredentials()
}

func printReport(printer *ui.Printer, notifier *ui.Notifier, report *export.Report) {
	items, skipped, downloaded, failed := report.Summary.Totals()

	fmt.Println()
	printer.Info("Pages", fmt.Sprint(len(report.Summary.Pages)))
	printer.Info("Files listed", fmt.Sprint(items))
	printer.Info("Downloaded", fmt.Sprint(downloaded))
	if skipped > 0 {
		printer.Info("Skipped (no URL)", fmt.Sprint(skipped))
	}
	if failed > 0 {
		printer.Warning(fmt.Sprintf("%d downloads failed, see %s", failed, report.FailureLog))
	}
	if report.ManifestPath != "" {
		printer.Info("Manifest", report.ManifestPath)
	}
	if report.CleanupErr != nil {
		printer.Warning("Page directories were not removed", report.CleanupErr)
	}

	message := fmt.Sprintf("%d files in %s", report.Archive.Files, report.Archive.Path)
	switch {
	case report.Summary.Degraded():
		notifier.Warning("Export finished early", fmt.Sprintf("%s (%v); rerun with --resume to continue", message, report.Summary.Err))
	case !report.Summary.Completed:
		notifier.Warning("Export stopped at page limit", message+"; rerun with --resume to continue")
	default:
		notifier.Success("Export complete", message)
	}
}
