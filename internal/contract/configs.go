package contract

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/schema"
)

// Default values for configuration.
const (
	DefaultBatchSize         = 100
	DefaultMaxConcurrent     = 4
	DefaultRateLimitDelay    = 1.0 // seconds
	DefaultHTTPTimeout       = 30  // seconds
	DefaultBlameLimit        = 50
	DefaultContentLimit      = 1_000_000 // bytes
	DefaultBackfillDays      = 1
	DefaultHotspotWindowDays = 30
	DefaultResultLimit       = 25
	MaxResultLimit           = 1000
	DefaultGitLabURL         = "https://gitlab.com"
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateFormat is the day representation accepted and printed by the CLI.
const DateFormat = time.DateOnly

// Config holds the final, validated runtime configuration.
type Config struct {
	DBConnect string // Please use env var as this is plaintext
	Backend   schema.Backend

	LogLevel  string
	LogFormat string

	// --- Local extraction ---
	RepoPath     string
	RepoID       *uuid.UUID
	Workers      int
	BatchSize    int
	Since        *time.Time
	MaxCommits   int
	Blame        schema.BlameMode
	BlameLimit   int
	ContentLimit int64
	FastStats    bool

	// --- Remote sync ---
	MaxConcurrent     int
	RateLimitDelay    time.Duration
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
	GitHubToken       string
	GitHubBaseURL     string
	GitLabToken       string
	GitLabURL         string
	Filter            schema.RepoFilter
	Pattern           string
	MaxRepos          int
	MaxPRs            int
	Backfill          bool
	PullRequests      bool

	// --- Metrics ---
	Day           time.Time
	BackfillDays  int
	HotspotWindow int
	CommitMetrics bool
	WorkItemsFile string
	TeamsFile     string

	// --- Output ---
	Output      schema.OutputMode
	OutputFile  string
	UseColors   bool
	Width       int // Terminal width override (0 = auto-detect)
	ResultLimit int
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.RepoID != nil {
		id := *c.RepoID
		clone.RepoID = &id
	}
	if c.Since != nil {
		since := *c.Since
		clone.Since = &since
	}
	return &clone
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	RepoPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	DB         string `mapstructure:"db"`
	LogLevel   string `mapstructure:"log-level"`
	LogFormat  string `mapstructure:"log-format"`
	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Color      string `mapstructure:"color"`
	Width      int    `mapstructure:"width"`
	Limit      int    `mapstructure:"limit"`
	Workers    int    `mapstructure:"workers"`
	BatchSize  int    `mapstructure:"batch-size"`
	RepoID     string `mapstructure:"repo-id"`

	// --- Fields from syncCmd.PersistentFlags() ---
	Since             string  `mapstructure:"since"`
	MaxCommits        int     `mapstructure:"max-commits"`
	Blame             string  `mapstructure:"blame"`
	BlameLimit        int     `mapstructure:"blame-limit"`
	ContentLimit      int64   `mapstructure:"content-limit"`
	FastStats         bool    `mapstructure:"fast-stats"`
	MaxConcurrent     int     `mapstructure:"max-concurrent"`
	RateLimitDelay    float64 `mapstructure:"rate-limit-delay"`
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
	HTTPTimeout       int     `mapstructure:"http-timeout"`
	GitHubToken       string  `mapstructure:"github-token"`
	GitHubBaseURL     string  `mapstructure:"github-base-url"`
	GitLabToken       string  `mapstructure:"gitlab-token"`
	GitLabURL         string  `mapstructure:"gitlab-url"`
	Org               string  `mapstructure:"org"`
	Group             string  `mapstructure:"group"`
	User              string  `mapstructure:"user"`
	Search            string  `mapstructure:"search"`
	Pattern           string  `mapstructure:"pattern"`
	MaxRepos          int     `mapstructure:"max-repos"`
	MaxPRs            int     `mapstructure:"max-prs"`
	Backfill          bool    `mapstructure:"backfill"`
	PullRequests      bool    `mapstructure:"prs"`

	// --- Fields from metricsCmd / hotspotsCmd flags ---
	Day           string `mapstructure:"day"`
	BackfillDays  int    `mapstructure:"backfill-days"`
	HotspotWindow int    `mapstructure:"hotspot-window"`
	CommitMetrics bool   `mapstructure:"commit-metrics"`
	WorkItemsFile string `mapstructure:"work-items"`
	TeamsFile     string `mapstructure:"teams"`
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateStorage(cfg, input); err != nil {
		return err
	}
	if err := validateExtraction(cfg, input); err != nil {
		return err
	}
	if err := validateRemote(cfg, input); err != nil {
		return err
	}
	if err := processMetricsWindow(cfg, input); err != nil {
		return err
	}
	return resolveRepoPath(cfg, input)
}

// validateSimpleInputs processes output, logging and concurrency fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.LogLevel = input.LogLevel
	cfg.LogFormat = input.LogFormat

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", input.Output)
	}

	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	if input.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0 (received %d)", input.BatchSize)
	}
	cfg.BatchSize = input.BatchSize

	if input.RepoID != "" {
		id, err := uuid.Parse(strings.TrimSpace(input.RepoID))
		if err != nil {
			return fmt.Errorf("repo-id must be a UUID (received %q)", input.RepoID)
		}
		cfg.RepoID = &id
	}
	return nil
}

// validateStorage classifies the connection string.
func validateStorage(cfg *Config, input *ConfigRawInput) error {
	conn := strings.TrimSpace(input.DB)
	if conn == "" {
		conn = DefaultDBConnection()
	}
	backend, err := DetectBackend(conn)
	if err != nil {
		return err
	}
	cfg.DBConnect = conn
	cfg.Backend = backend
	return ValidateDatabaseConnectionString(backend, conn)
}

// ValidateDatabaseConnectionString checks the shape of a connection string for its backend.
func ValidateDatabaseConnectionString(backend schema.Backend, conn string) error {
	rest := StripScheme(conn)
	switch backend {
	case schema.SQLiteBackend, schema.ParquetBackend:
		if rest == "" {
			return fmt.Errorf("%s connection string must name a path (e.g. %s:///var/lib/gitpulse)", backend, backend)
		}
	case schema.MySQLBackend:
		if !strings.Contains(rest, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(rest, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgresBackend, schema.MongoBackend, schema.Neo4jBackend:
		if rest == "" {
			return fmt.Errorf("%s connection string must name a host", backend)
		}
	}
	return nil
}

// validateExtraction processes local extraction settings.
func validateExtraction(cfg *Config, input *ConfigRawInput) error {
	if input.Since != "" {
		since, err := ParseDateTime(input.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &since
	}

	if input.MaxCommits < 0 {
		return fmt.Errorf("max-commits cannot be negative (received %d)", input.MaxCommits)
	}
	cfg.MaxCommits = input.MaxCommits

	cfg.Blame = schema.BlameMode(strings.ToLower(input.Blame))
	if cfg.Blame == "" {
		cfg.Blame = schema.BlameSample
	}
	if _, ok := schema.ValidBlameModes[cfg.Blame]; !ok {
		return fmt.Errorf("invalid blame mode '%s'. must be all, none, sample", input.Blame)
	}
	if cfg.Blame == schema.BlameSample && input.BlameLimit <= 0 {
		return fmt.Errorf("blame-limit must be greater than 0 in sample mode (received %d)", input.BlameLimit)
	}
	cfg.BlameLimit = input.BlameLimit

	if input.ContentLimit < 0 {
		return fmt.Errorf("content-limit cannot be negative (received %d)", input.ContentLimit)
	}
	cfg.ContentLimit = input.ContentLimit
	cfg.FastStats = input.FastStats
	return nil
}

// validateRemote processes remote sync settings.
func validateRemote(cfg *Config, input *ConfigRawInput) error {
	if input.MaxConcurrent <= 0 {
		return fmt.Errorf("max-concurrent must be greater than 0 (received %d)", input.MaxConcurrent)
	}
	cfg.MaxConcurrent = input.MaxConcurrent

	if input.RateLimitDelay <= 0 {
		return fmt.Errorf("rate-limit-delay must be greater than 0 (received %g)", input.RateLimitDelay)
	}
	cfg.RateLimitDelay = time.Duration(input.RateLimitDelay * float64(time.Second))

	if input.RequestsPerSecond < 0 {
		return fmt.Errorf("requests-per-second cannot be negative (received %g)", input.RequestsPerSecond)
	}
	cfg.RequestsPerSecond = input.RequestsPerSecond

	if input.HTTPTimeout <= 0 {
		return fmt.Errorf("http-timeout must be greater than 0 (received %d)", input.HTTPTimeout)
	}
	cfg.HTTPTimeout = time.Duration(input.HTTPTimeout) * time.Second

	if input.MaxRepos < 0 || input.MaxPRs < 0 {
		return fmt.Errorf("max-repos and max-prs cannot be negative (received %d, %d)", input.MaxRepos, input.MaxPRs)
	}
	cfg.MaxRepos = input.MaxRepos
	cfg.MaxPRs = input.MaxPRs

	org := input.Org
	if org == "" {
		org = input.Group
	}
	cfg.Filter = schema.RepoFilter{Org: org, User: input.User, Search: input.Search}
	if cfg.Filter.Org != "" && cfg.Filter.User != "" {
		return fmt.Errorf("only one of --org/--group and --user may be set")
	}
	cfg.Pattern = strings.TrimSpace(input.Pattern)

	cfg.GitHubToken = input.GitHubToken
	cfg.GitHubBaseURL = input.GitHubBaseURL
	cfg.GitLabToken = input.GitLabToken
	cfg.GitLabURL = strings.TrimRight(input.GitLabURL, "/")
	if cfg.GitLabURL == "" {
		cfg.GitLabURL = DefaultGitLabURL
	}
	cfg.Backfill = input.Backfill
	cfg.PullRequests = input.PullRequests
	return nil
}

// processMetricsWindow handles the day and backfill window of the metrics job.
func processMetricsWindow(cfg *Config, input *ConfigRawInput) error {
	cfg.Day = schema.UTCDay(time.Now())
	if input.Day != "" {
		day, err := time.Parse(DateFormat, input.Day)
		if err != nil {
			return fmt.Errorf("invalid --day value '%s': expected %s", input.Day, DateFormat)
		}
		cfg.Day = day.UTC()
	}

	if input.BackfillDays < 1 {
		return fmt.Errorf("backfill-days must be at least 1 (received %d)", input.BackfillDays)
	}
	cfg.BackfillDays = input.BackfillDays

	if input.HotspotWindow < 1 {
		return fmt.Errorf("hotspot-window must be at least 1 (received %d)", input.HotspotWindow)
	}
	cfg.HotspotWindow = input.HotspotWindow

	cfg.CommitMetrics = input.CommitMetrics
	cfg.WorkItemsFile = input.WorkItemsFile
	cfg.TeamsFile = input.TeamsFile
	return nil
}

// resolveRepoPath makes the positional repository path absolute.
func resolveRepoPath(cfg *Config, input *ConfigRawInput) error {
	repoPath := input.RepoPathStr
	if repoPath == "" {
		repoPath = "."
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return fmt.Errorf("failed to resolve repository path %q: %w", repoPath, err)
	}
	cfg.RepoPath = abs
	return nil
}

// ParseDateTime accepts either a day (YYYY-MM-DD) or an RFC3339 timestamp.
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("'%s' is neither %s nor RFC3339", s, DateFormat)
	}
	return t.UTC(), nil
}
