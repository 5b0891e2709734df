// Package cmd defines the command-line interface for gitpulse.
package cmd

import (
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(hotspotsCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	syncCmd.AddCommand(syncLocalCmd)
	syncCmd.AddCommand(syncGitHubCmd)
	syncCmd.AddCommand(syncGitLabCmd)

	metricsCmd.AddCommand(metricsDailyCmd)

	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("db", "", "Storage connection string: sqlite://, mysql://, postgres://, mongodb://, neo4j://, parquet:// (default sqlite://$HOME/.gitpulse.db)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", contract.ConsoleLogFormat, "Log format: console or json")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Int("batch-size", contract.DefaultBatchSize, "Number of records per store write")
	rootCmd.PersistentFlags().String("repo-id", "", "Explicit repository id (UUID) overriding the derived one")
	rootCmd.PersistentFlags().String("day", "", "Day to compute, YYYY-MM-DD (default today UTC)")
	rootCmd.PersistentFlags().Int("hotspot-window", contract.DefaultHotspotWindowDays, "Hotspot window in days ending at --day")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all persistent flags of syncCmd to Viper
	syncCmd.PersistentFlags().String("since", "", "Only sync commits after this date (YYYY-MM-DD or RFC3339)")
	syncCmd.PersistentFlags().Int("max-commits", 0, "Maximum commits per repository (0 = unlimited)")
	syncCmd.PersistentFlags().String("blame", string(schema.BlameSample), "Blame mode: all or none or sample")
	syncCmd.PersistentFlags().Int("blame-limit", contract.DefaultBlameLimit, "Number of files blamed in sample mode")
	syncCmd.PersistentFlags().Int64("content-limit", contract.DefaultContentLimit, "Largest file stored with contents, in bytes (0 = no contents)")
	syncCmd.PersistentFlags().Bool("fast-stats", false, "Skip diff computation and write zero line counts")
	syncCmd.PersistentFlags().Int("max-concurrent", contract.DefaultMaxConcurrent, "Repositories processed concurrently")
	syncCmd.PersistentFlags().Float64("rate-limit-delay", contract.DefaultRateLimitDelay, "Initial backoff in seconds after a rate limit")
	syncCmd.PersistentFlags().Float64("requests-per-second", 0, "Steady request pacing (0 = unpaced)")
	syncCmd.PersistentFlags().Int("http-timeout", contract.DefaultHTTPTimeout, "HTTP timeout in seconds")
	syncCmd.PersistentFlags().String("search", "", "Provider search query selecting repositories")
	syncCmd.PersistentFlags().String("pattern", "", "Glob over full repository names, e.g. 'acme/api-*'")
	syncCmd.PersistentFlags().Int("max-repos", 0, "Maximum repositories to sync (0 = unlimited)")
	syncCmd.PersistentFlags().Int("max-prs", 0, "Maximum pull requests per repository (0 = unlimited)")
	syncCmd.PersistentFlags().Bool("backfill", true, "Backfill files, commit stats and blame missing from the store")
	syncCmd.PersistentFlags().Bool("prs", true, "Sync pull requests")
	if err := viper.BindPFlags(syncCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding sync flags", err)
	}

	// Bind all flags of syncGitHubCmd to Viper
	syncGitHubCmd.Flags().String("org", "", "GitHub organization")
	syncGitHubCmd.Flags().String("user", "", "GitHub user")
	syncGitHubCmd.Flags().String("github-token", "", "GitHub token (prefer GITPULSE_GITHUB_TOKEN)")
	syncGitHubCmd.Flags().String("github-base-url", "", "GitHub Enterprise API URL")
	if err := viper.BindPFlags(syncGitHubCmd.Flags()); err != nil {
		contract.LogFatal("Error binding github flags", err)
	}

	// Bind all flags of syncGitLabCmd to Viper
	syncGitLabCmd.Flags().String("group", "", "GitLab group path")
	syncGitLabCmd.Flags().String("gitlab-token", "", "GitLab token (prefer GITPULSE_GITLAB_TOKEN)")
	syncGitLabCmd.Flags().String("gitlab-url", contract.DefaultGitLabURL, "GitLab instance URL")
	if err := viper.BindPFlags(syncGitLabCmd.Flags()); err != nil {
		contract.LogFatal("Error binding gitlab flags", err)
	}

	// Bind all flags of metricsDailyCmd to Viper
	metricsDailyCmd.Flags().Int("backfill-days", contract.DefaultBackfillDays, "Number of days ending at --day to compute")
	metricsDailyCmd.Flags().Bool("commit-metrics", true, "Write per-commit size records")
	metricsDailyCmd.Flags().String("work-items", "", "YAML or JSON file of work items")
	metricsDailyCmd.Flags().String("teams", "", "YAML file mapping members to teams")
	if err := viper.BindPFlags(metricsDailyCmd.Flags()); err != nil {
		contract.LogFatal("Error binding metrics flags", err)
	}

	// Bind all flags of storeMigrateCmd to Viper
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding store migrate flags", err)
	}
}
