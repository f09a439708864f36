package export_test

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"shopfiles/pkg/config"
	"shopfiles/pkg/export"
	"shopfiles/pkg/logger"
	"shopfiles/pkg/ui"
)

func ExampleRunner_Run() {
	cfg := config.DefaultConfig()
	cfg.Shopify.Store = "demo.myshopify.com"
	cfg.Shopify.AccessToken = os.Getenv("SHOPFILES_ACCESS_TOKEN")
	cfg.Output.ArchivePath = "./zipped_files/demo.zip"

	runner, err := export.NewRunner(export.Options{
		Config:   cfg,
		Resume:   true,
		Progress: ui.NewStatusTracker(ui.Stdout()),
		Logger:   logger.GetLogger(),
	})
	if err != nil {
		fmt.Printf("Failed to create runner: %v\n", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := runner.Run(ctx)
	if err != nil {
		fmt.Printf("Export failed: %v\n", err)
		return
	}

	items, skipped, downloaded, failed := report.Summary.Totals()
	fmt.Printf("%d items, %d downloaded, %d failed, %d skipped\n", items, downloaded, failed, skipped)
	fmt.Printf("Archive: %s (%d files)\n", report.Archive.Path, report.Archive.Files)
}
