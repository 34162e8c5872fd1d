// Package config loads the settings of a run or a server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/report"
	"github.com/naka-gawa/github-audience/internal/usecase"
)

const (
	DefaultRepo             = "wasmedge/wasmedge"
	DefaultPageSize         = 100
	DefaultPageTimeout      = 30 * time.Second
	DefaultRunTimeout       = 5 * time.Minute
	DefaultScheduleInterval = 24 * time.Hour
	DefaultPort             = "8080"
	DefaultSink             = "stdout"
	DefaultFormat           = "markdown"
)

// Config holds application configuration. Token and DatabaseURL are never
// read from the YAML file.
type Config struct {
	GitHubToken string `yaml:"-"`
	GitHubRepo  string `yaml:"repo"`

	WindowDays             int           `yaml:"window_days"`
	PageSize               int           `yaml:"page_size"`
	EarlyStopThreshold     int           `yaml:"early_stop_threshold"`
	ProfileConcurrency     int           `yaml:"profile_concurrency"`
	PageTimeout            time.Duration `yaml:"page_timeout"`
	RunTimeout             time.Duration `yaml:"run_timeout"`
	InlineProfiles         bool          `yaml:"inline_profiles"`
	CrossReferenceWatchers bool          `yaml:"cross_reference_watchers"`
	RequireWatchers        bool          `yaml:"require_watchers"`

	ScheduleInterval time.Duration `yaml:"schedule_interval"`
	Port             string        `yaml:"port"`
	Sink             string        `yaml:"sink"`
	Format           string        `yaml:"format"`
	GistPublic       bool          `yaml:"gist_public"`
	DatabaseURL      string        `yaml:"-"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		GitHubRepo:         DefaultRepo,
		WindowDays:         usecase.DefaultWindowDays,
		PageSize:           DefaultPageSize,
		EarlyStopThreshold: usecase.DefaultEarlyStopThreshold,
		ProfileConcurrency: usecase.DefaultProfileConcurrency,
		PageTimeout:        DefaultPageTimeout,
		RunTimeout:         DefaultRunTimeout,
		ScheduleInterval:   DefaultScheduleInterval,
		Port:               DefaultPort,
		Sink:               DefaultSink,
		Format:             DefaultFormat,
	}
}

// Load builds the configuration from the defaults, the YAML file at path
// (skipped when path is empty) and the environment, later sources winning.
// Flags are applied by the caller, which validates again afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var errs []error
	c.GitHubToken = getEnv("GITHUB_TOKEN", c.GitHubToken)
	c.GitHubRepo = getEnv("GITHUB_REPO", c.GitHubRepo)
	c.WindowDays = getInt("WINDOW_DAYS", c.WindowDays, &errs)
	c.PageSize = getInt("PAGE_SIZE", c.PageSize, &errs)
	c.EarlyStopThreshold = getInt("EARLY_STOP_THRESHOLD", c.EarlyStopThreshold, &errs)
	c.ProfileConcurrency = getInt("PROFILE_CONCURRENCY", c.ProfileConcurrency, &errs)
	c.PageTimeout = getDuration("PAGE_TIMEOUT", c.PageTimeout, &errs)
	c.RunTimeout = getDuration("RUN_TIMEOUT", c.RunTimeout, &errs)
	c.ScheduleInterval = getDuration("SCHEDULE_INTERVAL", c.ScheduleInterval, &errs)
	c.Port = getEnv("PORT", c.Port)
	c.Sink = getEnv("REPORT_SINK", c.Sink)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.GistPublic = getBool("GIST_PUBLIC", c.GistPublic, &errs)
	return errors.Join(errs...)
}

// Validate checks that values are in range. The token is checked by the
// commands that talk to GitHub.
func (c *Config) Validate() error {
	if _, err := domain.ParseRepoRef(c.GitHubRepo); err != nil {
		return fmt.Errorf("repo: %w", err)
	}
	if c.WindowDays < 0 {
		return fmt.Errorf("window_days must be >= 0, got %d", c.WindowDays)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("page_size must be between 1 and 100, got %d", c.PageSize)
	}
	if c.ProfileConcurrency < 1 {
		return fmt.Errorf("profile_concurrency must be >= 1, got %d", c.ProfileConcurrency)
	}
	if c.PageTimeout < 0 || c.RunTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.ScheduleInterval <= 0 {
		return fmt.Errorf("schedule_interval must be positive, got %s", c.ScheduleInterval)
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return err
	}
	return nil
}

// Repo returns the configured repository. Call after Validate.
func (c *Config) Repo() domain.RepoRef {
	repo, _ := domain.ParseRepoRef(c.GitHubRepo)
	return repo
}

// ReportFormat returns the configured format. Call after Validate.
func (c *Config) ReportFormat() report.Format {
	f, _ := report.ParseFormat(c.Format)
	return f
}

// PipelineOptions translates the configuration for usecase.NewPipeline.
// An early-stop threshold <= 0 disables early stop.
func (c *Config) PipelineOptions() usecase.Options {
	threshold := c.EarlyStopThreshold
	if threshold <= 0 {
		threshold = usecase.EarlyStopDisabled
	}
	return usecase.Options{
		PageSize:           c.PageSize,
		PageTimeout:        c.PageTimeout,
		RunTimeout:         c.RunTimeout,
		EarlyStopThreshold: threshold,
		RequireWatchers:    c.RequireWatchers,
		Aggregator: usecase.AggregatorOptions{
			ProfileConcurrency:     c.ProfileConcurrency,
			InlineProfiles:         c.InlineProfiles,
			CrossReferenceWatchers: c.CrossReferenceWatchers,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return b
}
