package parquet

import (
	"time"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
)

func dayKey(t time.Time) string { return t.UTC().Format(contract.DateFormat) }

// RepoMetricsRow maps to the repo_metrics_daily table.
type RepoMetricsRow struct {
	RepoID             string    `parquet:"repo_id,snappy"`
	Day                time.Time `parquet:"day,snappy"`
	CommitsCount       int32     `parquet:"commits_count"`
	TotalLOCTouched    int64     `parquet:"total_loc_touched"`
	AvgCommitSizeLOC   float64   `parquet:"avg_commit_size_loc"`
	LargeCommitRatio   float64   `parquet:"large_commit_ratio"`
	PRsMerged          int32     `parquet:"prs_merged"`
	MedianPRCycleHours float64   `parquet:"median_pr_cycle_hours"`
	ComputedAt         time.Time `parquet:"computed_at,snappy"`
}

func (r RepoMetricsRow) Key() string        { return r.RepoID + ":" + dayKey(r.Day) }
func (r RepoMetricsRow) Version() time.Time { return r.ComputedAt }

// FromRepoMetrics converts a repo rollup into its columnar row.
func FromRepoMetrics(r schema.RepoMetricsDailyRecord, computed time.Time) RepoMetricsRow {
	return RepoMetricsRow{
		RepoID:             r.RepoID.String(),
		Day:                schema.UTCDay(r.Day),
		CommitsCount:       int32(r.CommitsCount),
		TotalLOCTouched:    int64(r.TotalLOCTouched),
		AvgCommitSizeLOC:   r.AvgCommitSizeLOC,
		LargeCommitRatio:   r.LargeCommitRatio,
		PRsMerged:          int32(r.PRsMerged),
		MedianPRCycleHours: r.MedianPRCycleHours,
		ComputedAt:         computed.UTC(),
	}
}

// UserMetricsRow maps to the user_metrics_daily table.
type UserMetricsRow struct {
	RepoID             string    `parquet:"repo_id,snappy"`
	Day                time.Time `parquet:"day,snappy"`
	AuthorEmail        string    `parquet:"author_email,snappy"`
	CommitsCount       int32     `parquet:"commits_count"`
	LOCAdded           int64     `parquet:"loc_added"`
	LOCDeleted         int64     `parquet:"loc_deleted"`
	FilesChanged       int32     `parquet:"files_changed"`
	LargeCommitsCount  int32     `parquet:"large_commits_count"`
	AvgCommitSizeLOC   float64   `parquet:"avg_commit_size_loc"`
	PRsAuthored        int32     `parquet:"prs_authored"`
	PRsMerged          int32     `parquet:"prs_merged"`
	AvgPRCycleHours    float64   `parquet:"avg_pr_cycle_hours"`
	MedianPRCycleHours float64   `parquet:"median_pr_cycle_hours"`
	ComputedAt         time.Time `parquet:"computed_at,snappy"`
}

func (r UserMetricsRow) Key() string {
	return r.RepoID + ":" + dayKey(r.Day) + ":" + r.AuthorEmail
}
func (r UserMetricsRow) Version() time.Time { return r.ComputedAt }

// FromUserMetrics converts an identity rollup into its columnar row.
func FromUserMetrics(r schema.UserMetricsDailyRecord, computed time.Time) UserMetricsRow {
	return UserMetricsRow{
		RepoID:             r.RepoID.String(),
		Day:                schema.UTCDay(r.Day),
		AuthorEmail:        r.AuthorEmail,
		CommitsCount:       int32(r.CommitsCount),
		LOCAdded:           int64(r.LOCAdded),
		LOCDeleted:         int64(r.LOCDeleted),
		FilesChanged:       int32(r.FilesChanged),
		LargeCommitsCount:  int32(r.LargeCommitsCount),
		AvgCommitSizeLOC:   r.AvgCommitSizeLOC,
		PRsAuthored:        int32(r.PRsAuthored),
		PRsMerged:          int32(r.PRsMerged),
		AvgPRCycleHours:    r.AvgPRCycleHours,
		MedianPRCycleHours: r.MedianPRCycleHours,
		ComputedAt:         computed.UTC(),
	}
}

// CommitMetricsRow maps to the commit_metrics table.
type CommitMetricsRow struct {
	RepoID       string    `parquet:"repo_id,snappy"`
	Day          time.Time `parquet:"day,snappy"`
	CommitHash   string    `parquet:"commit_hash,snappy"`
	AuthorEmail  string    `parquet:"author_email,snappy"`
	TotalLOC     int64     `parquet:"total_loc"`
	FilesChanged int32     `parquet:"files_changed"`
	SizeBucket   string    `parquet:"size_bucket,snappy"`
	ComputedAt   time.Time `parquet:"computed_at,snappy"`
}

func (r CommitMetricsRow) Key() string {
	return r.RepoID + ":" + dayKey(r.Day) + ":" + r.CommitHash
}
func (r CommitMetricsRow) Version() time.Time { return r.ComputedAt }

// FromCommitMetrics converts a commit record into its columnar row.
func FromCommitMetrics(r schema.CommitMetricsRecord, computed time.Time) CommitMetricsRow {
	return CommitMetricsRow{
		RepoID:       r.RepoID.String(),
		Day:          schema.UTCDay(r.Day),
		CommitHash:   r.CommitHash,
		AuthorEmail:  r.AuthorEmail,
		TotalLOC:     int64(r.TotalLOC),
		FilesChanged: int32(r.FilesChanged),
		SizeBucket:   string(r.SizeBucket),
		ComputedAt:   computed.UTC(),
	}
}

// FileMetricsRow maps to the file_metrics_daily table.
type FileMetricsRow struct {
	RepoID       string    `parquet:"repo_id,snappy"`
	Day          time.Time `parquet:"day,snappy"`
	Path         string    `parquet:"path,snappy"`
	Churn        int64     `parquet:"churn"`
	Contributors int32     `parquet:"contributors"`
	CommitsCount int32     `parquet:"commits_count"`
	HotspotScore float64   `parquet:"hotspot_score"`
	ComputedAt   time.Time `parquet:"computed_at,snappy"`
}

func (r FileMetricsRow) Key() string        { return r.RepoID + ":" + dayKey(r.Day) + ":" + r.Path }
func (r FileMetricsRow) Version() time.Time { return r.ComputedAt }

// FromFileMetrics converts a hotspot snapshot into its columnar row.
func FromFileMetrics(r schema.FileMetricsRecord, computed time.Time) FileMetricsRow {
	return FileMetricsRow{
		RepoID:       r.RepoID.String(),
		Day:          schema.UTCDay(r.Day),
		Path:         r.Path,
		Churn:        int64(r.Churn),
		Contributors: int32(r.Contributors),
		CommitsCount: int32(r.CommitsCount),
		HotspotScore: r.HotspotScore,
		ComputedAt:   computed.UTC(),
	}
}

// WorkItemMetricsRow maps to the work_item_metrics_daily table.
type WorkItemMetricsRow struct {
	Day                      time.Time `parquet:"day,snappy"`
	Provider                 string    `parquet:"provider,snappy"`
	WorkScopeID              string    `parquet:"work_scope_id,snappy"`
	TeamID                   string    `parquet:"team_id,snappy"`
	TeamName                 string    `parquet:"team_name,snappy"`
	ItemsStarted             int32     `parquet:"items_started"`
	ItemsCompleted           int32     `parquet:"items_completed"`
	ItemsStartedUnassigned   int32     `parquet:"items_started_unassigned"`
	ItemsCompletedUnassigned int32     `parquet:"items_completed_unassigned"`
	WIPCountEndOfDay         int32     `parquet:"wip_count_end_of_day"`
	WIPUnassignedEndOfDay    int32     `parquet:"wip_unassigned_end_of_day"`
	CycleTimeP50Hours        *float64  `parquet:"cycle_time_p50_hours,optional"`
	CycleTimeP90Hours        *float64  `parquet:"cycle_time_p90_hours,optional"`
	LeadTimeP50Hours         *float64  `parquet:"lead_time_p50_hours,optional"`
	LeadTimeP90Hours         *float64  `parquet:"lead_time_p90_hours,optional"`
	WIPAgeP50Hours           *float64  `parquet:"wip_age_p50_hours,optional"`
	WIPAgeP90Hours           *float64  `parquet:"wip_age_p90_hours,optional"`
	BugCompletedRatio        float64   `parquet:"bug_completed_ratio"`
	StoryPointsCompleted     float64   `parquet:"story_points_completed"`
	ComputedAt               time.Time `parquet:"computed_at,snappy"`
}

func (r WorkItemMetricsRow) Key() string {
	return dayKey(r.Day) + ":" + r.Provider + ":" + r.WorkScopeID + ":" + r.TeamID
}
func (r WorkItemMetricsRow) Version() time.Time { return r.ComputedAt }

// FromWorkItemMetrics converts a team flow record into its columnar row.
func FromWorkItemMetrics(r schema.WorkItemMetricsDailyRecord, computed time.Time) WorkItemMetricsRow {
	return WorkItemMetricsRow{
		Day:                      schema.UTCDay(r.Day),
		Provider:                 r.Provider,
		WorkScopeID:              r.WorkScopeID,
		TeamID:                   r.TeamID,
		TeamName:                 r.TeamName,
		ItemsStarted:             int32(r.ItemsStarted),
		ItemsCompleted:           int32(r.ItemsCompleted),
		ItemsStartedUnassigned:   int32(r.ItemsStartedUnassigned),
		ItemsCompletedUnassigned: int32(r.ItemsCompletedUnassigned),
		WIPCountEndOfDay:         int32(r.WIPCountEndOfDay),
		WIPUnassignedEndOfDay:    int32(r.WIPUnassignedEndOfDay),
		CycleTimeP50Hours:        r.CycleTimeP50Hours,
		CycleTimeP90Hours:        r.CycleTimeP90Hours,
		LeadTimeP50Hours:         r.LeadTimeP50Hours,
		LeadTimeP90Hours:         r.LeadTimeP90Hours,
		WIPAgeP50Hours:           r.WIPAgeP50Hours,
		WIPAgeP90Hours:           r.WIPAgeP90Hours,
		BugCompletedRatio:        r.BugCompletedRatio,
		StoryPointsCompleted:     r.StoryPointsCompleted,
		ComputedAt:               computed.UTC(),
	}
}

// WorkItemUserMetricsRow maps to the work_item_user_metrics_daily table.
type WorkItemUserMetricsRow struct {
	Day               time.Time `parquet:"day,snappy"`
	Provider          string    `parquet:"provider,snappy"`
	WorkScopeID       string    `parquet:"work_scope_id,snappy"`
	UserIdentity      string    `parquet:"user_identity,snappy"`
	TeamID            string    `parquet:"team_id,snappy"`
	TeamName          string    `parquet:"team_name,snappy"`
	ItemsStarted      int32     `parquet:"items_started"`
	ItemsCompleted    int32     `parquet:"items_completed"`
	WIPCountEndOfDay  int32     `parquet:"wip_count_end_of_day"`
	CycleTimeP50Hours *float64  `parquet:"cycle_time_p50_hours,optional"`
	CycleTimeP90Hours *float64  `parquet:"cycle_time_p90_hours,optional"`
	ComputedAt        time.Time `parquet:"computed_at,snappy"`
}

func (r WorkItemUserMetricsRow) Key() string {
	return dayKey(r.Day) + ":" + r.Provider + ":" + r.WorkScopeID + ":" + r.UserIdentity + ":" + r.TeamID
}
func (r WorkItemUserMetricsRow) Version() time.Time { return r.ComputedAt }

// FromWorkItemUserMetrics converts an assignee flow record into its columnar row.
func FromWorkItemUserMetrics(r schema.WorkItemUserMetricsDailyRecord, computed time.Time) WorkItemUserMetricsRow {
	return WorkItemUserMetricsRow{
		Day:               schema.UTCDay(r.Day),
		Provider:          r.Provider,
		WorkScopeID:       r.WorkScopeID,
		UserIdentity:      r.UserIdentity,
		TeamID:            r.TeamID,
		TeamName:          r.TeamName,
		ItemsStarted:      int32(r.ItemsStarted),
		ItemsCompleted:    int32(r.ItemsCompleted),
		WIPCountEndOfDay:  int32(r.WIPCountEndOfDay),
		CycleTimeP50Hours: r.CycleTimeP50Hours,
		CycleTimeP90Hours: r.CycleTimeP90Hours,
		ComputedAt:        computed.UTC(),
	}
}

// CycleTimeRow maps to the work_item_cycle_times table.
type CycleTimeRow struct {
	Provider       string     `parquet:"provider,snappy"`
	WorkItemID     string     `parquet:"work_item_id,snappy"`
	Day            time.Time  `parquet:"day,snappy"`
	WorkScopeID    string     `parquet:"work_scope_id,snappy"`
	TeamID         string     `parquet:"team_id,snappy"`
	TeamName       string     `parquet:"team_name,snappy"`
	Assignee       *string    `parquet:"assignee,optional,snappy"`
	Type           string     `parquet:"type,snappy"`
	Status         string     `parquet:"status,snappy"`
	CreatedAt      time.Time  `parquet:"created_at,snappy"`
	StartedAt      *time.Time `parquet:"started_at,optional,snappy"`
	CompletedAt    time.Time  `parquet:"completed_at,snappy"`
	CycleTimeHours *float64   `parquet:"cycle_time_hours,optional"`
	LeadTimeHours  float64    `parquet:"lead_time_hours"`
	ComputedAt     time.Time  `parquet:"computed_at,snappy"`
}

func (r CycleTimeRow) Key() string        { return r.Provider + ":" + r.WorkItemID }
func (r CycleTimeRow) Version() time.Time { return r.ComputedAt }

// FromCycleTime converts a completed item record into its columnar row.
func FromCycleTime(r schema.WorkItemCycleTimeRecord, computed time.Time) CycleTimeRow {
	var assignee *string
	if r.Assignee != "" {
		a := r.Assignee
		assignee = &a
	}
	return CycleTimeRow{
		Provider:       r.Provider,
		WorkItemID:     r.WorkItemID,
		Day:            schema.UTCDay(r.Day),
		WorkScopeID:    r.WorkScopeID,
		TeamID:         r.TeamID,
		TeamName:       r.TeamName,
		Assignee:       assignee,
		Type:           r.Type,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt.UTC(),
		StartedAt:      timePtr(r.StartedAt),
		CompletedAt:    r.CompletedAt.UTC(),
		CycleTimeHours: r.CycleTimeHours,
		LeadTimeHours:  r.LeadTimeHours,
		ComputedAt:     computed.UTC(),
	}
}
