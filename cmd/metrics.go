package cmd

import (
	"github.com/huangsam/gitpulse/core"
	"github.com/spf13/cobra"
)

// metricsCmd groups the derived metrics commands.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute derived metrics from stored facts.",
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// metricsDailyCmd runs the daily metrics job.
var metricsDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Compute daily repository, user, commit and hotspot metrics.",
	Long: `For each day in the window ending at --day, load the stored commit stats and
pull requests, compute the daily rollups and write them back to the same store.

Computed metrics:
- Repository: commits, lines touched, average commit size, large-commit ratio, PR cycle time
- User: commits, lines added and deleted, files touched, PRs authored and merged
- Commit: size bucket (small, medium, large)
- File: hotspot score over --hotspot-window days
- Work items (with --work-items): throughput, WIP, cycle and lead time percentiles

Examples:
  # Compute yesterday and today
  gitpulse metrics daily --backfill-days 2

  # Recompute a past day for one repository with team attribution
  gitpulse metrics daily --day 2024-05-01 --repo-id <uuid> --teams teams.yaml --work-items items.json`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	RunE:    runExecutor(core.ExecuteMetricsDaily),
}
