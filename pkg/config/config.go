package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for a files export run
type Config struct {
	// Shopify store and credentials
	Shopify ShopifyConfig `yaml:"shopify" json:"shopify"`

	// Download and pagination settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Where the run writes its tree, archive and failure record
	Output OutputConfig `yaml:"output" json:"output"`

	// Rate limiting for page requests
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Page-resume checkpoint
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ShopifyConfig holds the Admin API address and credentials
type ShopifyConfig struct {
	Store       string `yaml:"store" json:"store"`
	APIVersion  string `yaml:"api_version" json:"api_version"`
	AccessToken string `yaml:"access_token" json:"access_token"`
	// Endpoint overrides the URL derived from Store and APIVersion
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	PageSize            int           `yaml:"page_size" json:"page_size"`
	MaxPages            int           `yaml:"max_pages" json:"max_pages"`
	RequestTimeout      time.Duration `yaml:"request_timeout" json:"request_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay          time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// OutputConfig holds filesystem locations
type OutputConfig struct {
	WorkDirectory string `yaml:"work_directory" json:"work_directory"`
	ArchivePath   string `yaml:"archive_path" json:"archive_path"`
	FailureLog    string `yaml:"failure_log" json:"failure_log"`
	WriteManifest bool   `yaml:"write_manifest" json:"write_manifest"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// CheckpointConfig controls page-resume checkpoints
type CheckpointConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" json:"directory"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Address string `yaml:"address" json:"address"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Shopify: ShopifyConfig{
			APIVersion: "2024-10",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			PageSize:            50,
			MaxPages:            0, // 0 means no limit
			RequestTimeout:      10 * time.Second,
			RetryAttempts:       3,
			RetryDelay:          time.Second,
		},
		Output: OutputConfig{
			WorkDirectory: "./downloads",
			ArchivePath:   "./zipped_files/files.zip",
			FailureLog:    "failed_downloads.txt",
			WriteManifest: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GraphQLEndpoint returns the Admin API GraphQL URL for the configured store
func (c *Config) GraphQLEndpoint() string {
	if c.Shopify.Endpoint != "" {
		return c.Shopify.Endpoint
	}
	store := strings.TrimSuffix(strings.TrimPrefix(c.Shopify.Store, "https://"), "/")
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", store, c.Shopify.APIVersion)
}

// envLookup returns the first non-empty value among the given variables
func envLookup(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func envInt(name string, target *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*target = val
	return nil
}

// LoadFromEnv loads configuration from environment variables. The unprefixed
// SHOPIFY_STORE, API_VERSION and ACCESS_TOKEN are accepted as fallbacks.
func (c *Config) LoadFromEnv() error {
	if store := envLookup("SHOPFILES_STORE", "SHOPIFY_STORE"); store != "" {
		c.Shopify.Store = store
	}
	if version := envLookup("SHOPFILES_API_VERSION", "API_VERSION"); version != "" {
		c.Shopify.APIVersion = version
	}
	if token := envLookup("SHOPFILES_ACCESS_TOKEN", "ACCESS_TOKEN"); token != "" {
		c.Shopify.AccessToken = token
	}
	if endpoint := os.Getenv("SHOPFILES_ENDPOINT"); endpoint != "" {
		c.Shopify.Endpoint = endpoint
	}

	var errs []error
	for name, target := range map[string]*int{
		"SHOPFILES_CONCURRENT_DOWNLOADS": &c.Download.ConcurrentDownloads,
		"SHOPFILES_PAGE_SIZE":            &c.Download.PageSize,
		"SHOPFILES_MAX_PAGES":            &c.Download.MaxPages,
		"SHOPFILES_RETRY_ATTEMPTS":       &c.Download.RetryAttempts,
		"SHOPFILES_REQUESTS_PER_MINUTE":  &c.RateLimit.RequestsPerMinute,
	} {
		if err := envInt(name, target); err != nil {
			errs = append(errs, err)
		}
	}

	if dir := os.Getenv("SHOPFILES_WORK_DIR"); dir != "" {
		c.Output.WorkDirectory = dir
	}
	if archive := os.Getenv("SHOPFILES_ARCHIVE_PATH"); archive != "" {
		c.Output.ArchivePath = archive
	}
	if failureLog := os.Getenv("SHOPFILES_FAILURE_LOG"); failureLog != "" {
		c.Output.FailureLog = failureLog
	}
	if addr := os.Getenv("SHOPFILES_METRICS_ADDR"); addr != "" {
		c.Metrics.Address = addr
	}
	if logLevel := os.Getenv("SHOPFILES_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"shopfiles.yaml",
		".shopfiles.yaml",
		".shopfiles.yml",
		filepath.Join(home, ".config", "shopfiles", "config.yaml"),
		filepath.Join(home, ".config", "shopfiles", "config.yml"),
		filepath.Join(home, ".shopfiles.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are checked
// separately by ValidateCredentials since they may come from a credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 16 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 16"))
	}
	if c.Download.PageSize <= 0 || c.Download.PageSize > 250 {
		errs = append(errs, errors.New("page size must be between 1 and 250"))
	}
	if c.Download.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Download.RetryAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.Download.RetryDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}
	if c.Download.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Output.WorkDirectory == "" {
		errs = append(errs, errors.New("work directory is required"))
	}
	if c.Output.ArchivePath == "" {
		errs = append(errs, errors.New("archive path is required"))
	}
	if c.Output.FailureLog == "" {
		errs = append(errs, errors.New("failure log path is required"))
	}
	if c.Output.WorkDirectory != "" {
		if c.Output.ArchivePath != "" && within(c.Output.WorkDirectory, c.Output.ArchivePath) {
			errs = append(errs, errors.New("archive path must not be inside the work directory"))
		}
		if c.Output.FailureLog != "" && within(c.Output.WorkDirectory, c.Output.FailureLog) {
			errs = append(errs, errors.New("failure log must not be inside the work directory"))
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// within reports whether path is dir itself or lies under it
func within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return absPath == absDir || strings.HasPrefix(absPath, absDir+string(filepath.Separator))
}

// ValidateCredentials checks the store address and access token
func (c *Config) ValidateCredentials() error {
	var errs []error
	if c.Shopify.Store == "" && c.Shopify.Endpoint == "" {
		errs = append(errs, errors.New("shopify store domain is required"))
	}
	if c.Shopify.APIVersion == "" && c.Shopify.Endpoint == "" {
		errs = append(errs, errors.New("shopify api version is required"))
	}
	if c.Shopify.AccessToken == "" {
		errs = append(errs, errors.New("shopify access token is required"))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if store, ok := flags["store"].(string); ok && store != "" {
		c.Shopify.Store = store
	}
	if version, ok := flags["api-version"].(string); ok && version != "" {
		c.Shopify.APIVersion = version
	}
	if workDir, ok := flags["work-dir"].(string); ok && workDir != "" {
		c.Output.WorkDirectory = workDir
	}
	if archive, ok := flags["archive"].(string); ok && archive != "" {
		c.Output.ArchivePath = archive
	}
	if failureLog, ok := flags["failure-log"].(string); ok && failureLog != "" {
		c.Output.FailureLog = failureLog
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Download.PageSize = pageSize
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages >= 0 {
		c.Download.MaxPages = maxPages
	}
	if retries, ok := flags["retry-attempts"].(int); ok && retries > 0 {
		c.Download.RetryAttempts = retries
	}
	if timeout, ok := flags["request-timeout"].(time.Duration); ok && timeout > 0 {
		c.Download.RequestTimeout = timeout
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm >= 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Address = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".shopfiles.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
