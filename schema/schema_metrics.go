package schema

import (
	"time"

	"github.com/google/uuid"
)

// CommitStatRow is a per-file commit stat joined with its commit's author and committer time.
// FilePath is empty for commits that have no stat rows.
type CommitStatRow struct {
	RepoID        uuid.UUID `json:"repo_id"`
	CommitHash    string    `json:"commit_hash"`
	AuthorEmail   string    `json:"author_email"`
	AuthorName    string    `json:"author_name"`
	CommitterWhen time.Time `json:"committer_when"`
	FilePath      string    `json:"file_path"`
	Additions     int       `json:"additions"`
	Deletions     int       `json:"deletions"`
}

// PullRequestRow is the slice of a pull request the daily rollup needs.
type PullRequestRow struct {
	RepoID      uuid.UUID  `json:"repo_id"`
	Number      int        `json:"number"`
	AuthorEmail string     `json:"author_email"`
	AuthorName  string     `json:"author_name"`
	CreatedAt   time.Time  `json:"created_at"`
	MergedAt    *time.Time `json:"merged_at,omitempty"`
}

// CommitMetricsRecord describes one commit on one day.
type CommitMetricsRecord struct {
	RepoID       uuid.UUID  `json:"repo_id"`
	CommitHash   string     `json:"commit_hash"`
	Day          time.Time  `json:"day"`
	AuthorEmail  string     `json:"author_email"`
	TotalLOC     int        `json:"total_loc"`
	FilesChanged int        `json:"files_changed"`
	SizeBucket   SizeBucket `json:"size_bucket"`
	ComputedAt   time.Time  `json:"computed_at"`
}

// UserMetricsDailyRecord aggregates one identity's activity in one repo on one day.
type UserMetricsDailyRecord struct {
	RepoID             uuid.UUID `json:"repo_id"`
	Day                time.Time `json:"day"`
	AuthorEmail        string    `json:"author_email"`
	CommitsCount       int       `json:"commits_count"`
	LOCAdded           int       `json:"loc_added"`
	LOCDeleted         int       `json:"loc_deleted"`
	FilesChanged       int       `json:"files_changed"`
	LargeCommitsCount  int       `json:"large_commits_count"`
	AvgCommitSizeLOC   float64   `json:"avg_commit_size_loc"`
	PRsAuthored        int       `json:"prs_authored"`
	PRsMerged          int       `json:"prs_merged"`
	AvgPRCycleHours    float64   `json:"avg_pr_cycle_hours"`
	MedianPRCycleHours float64   `json:"median_pr_cycle_hours"`
	ComputedAt         time.Time `json:"computed_at"`
}

// RepoMetricsDailyRecord rolls up all identities of one repo on one day.
type RepoMetricsDailyRecord struct {
	RepoID             uuid.UUID `json:"repo_id"`
	Day                time.Time `json:"day"`
	CommitsCount       int       `json:"commits_count"`
	TotalLOCTouched    int       `json:"total_loc_touched"`
	AvgCommitSizeLOC   float64   `json:"avg_commit_size_loc"`
	LargeCommitRatio   float64   `json:"large_commit_ratio"`
	PRsMerged          int       `json:"prs_merged"`
	MedianPRCycleHours float64   `json:"median_pr_cycle_hours"`
	ComputedAt         time.Time `json:"computed_at"`
}

// FileMetricsRecord is a hotspot snapshot of one file over a trailing window.
type FileMetricsRecord struct {
	RepoID       uuid.UUID `json:"repo_id"`
	Day          time.Time `json:"day"`
	Path         string    `json:"path"`
	Churn        int       `json:"churn"`
	Contributors int       `json:"contributors"`
	CommitsCount int       `json:"commits_count"`
	HotspotScore float64   `json:"hotspot_score"`
	ComputedAt   time.Time `json:"computed_at"`
}

// DailyMetricsResult bundles everything computed for one day.
type DailyMetricsResult struct {
	Day           time.Time                `json:"day"`
	RepoMetrics   []RepoMetricsDailyRecord `json:"repo_metrics"`
	UserMetrics   []UserMetricsDailyRecord `json:"user_metrics"`
	CommitMetrics []CommitMetricsRecord    `json:"commit_metrics"`
}

// WorkItem is a tracked unit of work from an issue tracker.
type WorkItem struct {
	WorkItemID  string     `json:"work_item_id" yaml:"work_item_id"`
	Provider    string     `json:"provider" yaml:"provider"`
	WorkScopeID string     `json:"work_scope_id" yaml:"work_scope_id"`
	Title       string     `json:"title" yaml:"title"`
	Type        string     `json:"type" yaml:"type"`
	Status      string     `json:"status" yaml:"status"`
	Assignees   []string   `json:"assignees" yaml:"assignees"`
	StoryPoints *float64   `json:"story_points,omitempty" yaml:"story_points"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at"`
}

// WorkItemMetricsDailyRecord aggregates work-item flow for one (provider, scope, team) on one day.
type WorkItemMetricsDailyRecord struct {
	Day                      time.Time `json:"day"`
	Provider                 string    `json:"provider"`
	WorkScopeID              string    `json:"work_scope_id"`
	TeamID                   string    `json:"team_id"`
	TeamName                 string    `json:"team_name"`
	ItemsStarted             int       `json:"items_started"`
	ItemsCompleted           int       `json:"items_completed"`
	ItemsStartedUnassigned   int       `json:"items_started_unassigned"`
	ItemsCompletedUnassigned int       `json:"items_completed_unassigned"`
	WIPCountEndOfDay         int       `json:"wip_count_end_of_day"`
	WIPUnassignedEndOfDay    int       `json:"wip_unassigned_end_of_day"`
	CycleTimeP50Hours        *float64  `json:"cycle_time_p50_hours"`
	CycleTimeP90Hours        *float64  `json:"cycle_time_p90_hours"`
	LeadTimeP50Hours         *float64  `json:"lead_time_p50_hours"`
	LeadTimeP90Hours         *float64  `json:"lead_time_p90_hours"`
	WIPAgeP50Hours           *float64  `json:"wip_age_p50_hours"`
	WIPAgeP90Hours           *float64  `json:"wip_age_p90_hours"`
	BugCompletedRatio        float64   `json:"bug_completed_ratio"`
	StoryPointsCompleted     float64   `json:"story_points_completed"`
	ComputedAt               time.Time `json:"computed_at"`
}

// WorkItemUserMetricsDailyRecord aggregates work-item flow for one assignee on one day.
type WorkItemUserMetricsDailyRecord struct {
	Day               time.Time `json:"day"`
	Provider          string    `json:"provider"`
	WorkScopeID       string    `json:"work_scope_id"`
	UserIdentity      string    `json:"user_identity"`
	TeamID            string    `json:"team_id"`
	TeamName          string    `json:"team_name"`
	ItemsStarted      int       `json:"items_started"`
	ItemsCompleted    int       `json:"items_completed"`
	WIPCountEndOfDay  int       `json:"wip_count_end_of_day"`
	CycleTimeP50Hours *float64  `json:"cycle_time_p50_hours"`
	CycleTimeP90Hours *float64  `json:"cycle_time_p90_hours"`
	ComputedAt        time.Time `json:"computed_at"`
}

// WorkItemCycleTimeRecord is emitted once per work item completed on the day.
type WorkItemCycleTimeRecord struct {
	WorkItemID     string     `json:"work_item_id"`
	Provider       string     `json:"provider"`
	Day            time.Time  `json:"day"`
	WorkScopeID    string     `json:"work_scope_id"`
	TeamID         string     `json:"team_id"`
	TeamName       string     `json:"team_name"`
	Assignee       string     `json:"assignee,omitempty"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    time.Time  `json:"completed_at"`
	CycleTimeHours *float64   `json:"cycle_time_hours"`
	LeadTimeHours  float64    `json:"lead_time_hours"`
	ComputedAt     time.Time  `json:"computed_at"`
}

// WorkItemMetricsResult bundles the work-item metrics of one day.
type WorkItemMetricsResult struct {
	Groups     []WorkItemMetricsDailyRecord     `json:"groups"`
	Users      []WorkItemUserMetricsDailyRecord `json:"users"`
	CycleTimes []WorkItemCycleTimeRecord        `json:"cycle_times"`
}
