package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"shopfiles/pkg/auth"
	"shopfiles/pkg/config"
	"shopfiles/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage shopfiles configuration.

Values are taken from, highest priority first:
  - command line flags
  - environment variables (SHOPFILES_*, plus SHOPIFY_STORE, API_VERSION
    and ACCESS_TOKEN)
  - .env in the current directory and ~/.shopfiles.env
  - the configuration file
  - defaults`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with every option.

The file is written to shopfiles.yaml in the current directory unless
--config names another path.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with the access token masked",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

const exampleConfig = `# shopfiles configuration
#
# Environment variables override these values, e.g. SHOPFILES_STORE,
# SHOPFILES_ACCESS_TOKEN, SHOPFILES_PAGE_SIZE.

shopify:
  # Store domain; "demo" is expanded to demo.myshopify.com
  store: "demo.myshopify.com"
  api_version: "2024-10"
  # Prefer 'shopfiles auth login' or SHOPFILES_ACCESS_TOKEN over this
  access_token: ""

download:
  # Parallel downloads within a page (1-16)
  concurrent_downloads: 3
  # Files per listing page (1-250)
  page_size: 50
  # Stop after this many pages; 0 exports everything
  max_pages: 0
  request_timeout: 10s
  # Attempts per file, with retry_delay between them
  retry_attempts: 3
  retry_delay: 1s

output:
  # page_<N> directories are created here and removed after archiving
  work_directory: "./downloads"
  archive_path: "./zipped_files/files.zip"
  # One "<url> | <reason>" line per download that failed every attempt.
  # Must be outside work_directory.
  failure_log: "failed_downloads.txt"
  # Write <archive>.manifest.json
  write_manifest: true

rate_limit:
  # Listing page requests per minute; 0 disables the limit
  requests_per_minute: 60

checkpoint:
  # Record progress after every page so 'export --resume' can continue
  enabled: true
  # Defaults to the platform data directory
  directory: ""

metrics:
  # Serve Prometheus metrics during the export, e.g. ":9090"
  address: ""

logging:
  # debug, info, warn, error
  level: "info"
  # JSON log file; console only when empty
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "shopfiles.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	printer := ui.Stdout()
	printer.Success("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set your store domain in the file")
	fmt.Println("2. Store an access token with 'shopfiles auth login'")
	fmt.Println("3. Run 'shopfiles config validate', then 'shopfiles export'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.Shopify.AccessToken != "" {
		display.Shopify.AccessToken = auth.SanitizeAccount(&auth.Account{AccessToken: cfg.Shopify.AccessToken}).AccessToken
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.Stdout().Highlight("Current configuration")
	fmt.Println()
	fmt.Print(string(data))
	fmt.Printf("\nGraphQL endpoint: %s\n", cfg.GraphQLEndpoint())
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	printer := ui.Stdout()

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	if err := cfg.ValidateCredentials(); err != nil {
		printer.Warning("Credentials incomplete", err)
		fmt.Println("  The access token can also come from 'shopfiles auth login'.")
	}

	printer.Success("Configuration is valid")
	fmt.Println("\nSummary:")
	fmt.Printf("  Store:                %s\n", cfg.Shopify.Store)
	fmt.Printf("  Endpoint:             %s\n", cfg.GraphQLEndpoint())
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Page size:            %d\n", cfg.Download.PageSize)
	fmt.Printf("  Retry attempts:       %d\n", cfg.Download.RetryAttempts)
	fmt.Printf("  Archive:              %s\n", cfg.Output.ArchivePath)
	fmt.Printf("  Failure log:          %s\n", cfg.Output.FailureLog)
	fmt.Printf("  Log level:            %s\n", cfg.Logging.Level)
	return nil
}
