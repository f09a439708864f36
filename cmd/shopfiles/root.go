package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"shopfiles/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "shopfiles",
	Short: "Bulk export a Shopify store's Files into a zip archive",
	Long: `shopfiles pages through every file in a Shopify store's Files section
(Settings > Files) using the Admin GraphQL API, downloads each one with
retries and packs the result into a single zip archive.

Downloads that still fail after all retries are listed in a failure log
(one "<url> | <reason>" line each) so they can be fetched later. Running
shopfiles without a subcommand starts an export.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			os.Setenv("NO_COLOR", "1")
		}
		if !quiet && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.Stdout().Banner()
		}
	},
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd)
	},
}

// Execute runs the root command and exits 1 on any returned error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.NewPrinter(os.Stderr).Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./shopfiles.yaml or ~/.config/shopfiles/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the banner and per-page progress")

	// export is the default command, so its flags are accepted at the root too
	addExportFlags(rootCmd)

	rootCmd.SetVersionTemplate(`shopfiles {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
