package cmd

import (
	"github.com/huangsam/gitpulse/core"
	"github.com/spf13/cobra"
)

// hotspotsCmd ranks the files of one repository by hotspot score.
var hotspotsCmd = &cobra.Command{
	Use:   "hotspots [repo-path]",
	Short: "Show the top files of a repository ranked by hotspot score.",
	Long: `Rank files by 0.4*log(1+churn) + 0.3*contributors + 0.3*commits over the
--hotspot-window days ending at --day, straight from the stored facts.

The repository is selected by --repo-id, else by the id of the local
repository at repo-path.

Examples:
  # Top files of the current repository over the last 30 days
  gitpulse hotspots

  # Top 10 over one quarter as CSV
  gitpulse hotspots --repo-id <uuid> --hotspot-window 90 --limit 10 --output csv`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE:    runExecutor(core.ExecuteHotspots),
}
