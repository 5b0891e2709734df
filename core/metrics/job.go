package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"go.uber.org/zap"
)

// JobOptions configures the daily job. WorkItems and Teams are optional.
type JobOptions struct {
	Backend           schema.Backend
	HotspotWindowDays int
	CommitMetrics     bool
	WorkItems         contract.WorkItemSource
	Teams             contract.TeamResolver
}

// DailyJob loads facts for each day of a window, computes the daily metrics and
// writes them back to the same backend.
type DailyJob struct {
	backend contract.MetricsBackend
	opts    JobOptions
	log     *zap.Logger
	now     func() time.Time
}

// NewDailyJob builds a job over backend.
func NewDailyJob(backend contract.MetricsBackend, opts JobOptions, log *zap.Logger) *DailyJob {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.HotspotWindowDays < 1 {
		opts.HotspotWindowDays = contract.DefaultHotspotWindowDays
	}
	return &DailyJob{backend: backend, opts: opts, log: log, now: time.Now}
}

// DateRange returns the backfillDays UTC days ending at day, oldest first.
func DateRange(day time.Time, backfillDays int) []time.Time {
	end := schema.UTCDay(day)
	n := max(backfillDays, 1)
	days := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, end.AddDate(0, 0, -i))
	}
	return days
}

// Run computes and persists the metrics of every day in [day-backfillDays+1, day].
// A nil repoID covers all repositories. Every record of one run shares one computed_at.
func (j *DailyJob) Run(ctx context.Context, day time.Time, backfillDays int, repoID *uuid.UUID) (schema.DailyJobSummary, error) {
	started := j.now()
	computedAt := started.UTC()
	days := DateRange(day, backfillDays)
	summary := schema.DailyJobSummary{Backend: j.opts.Backend}

	fields := []zap.Field{
		zap.String("day", schema.UTCDay(day).Format(contract.DateFormat)),
		zap.Int("backfill_days", len(days)),
		zap.Int("hotspot_window_days", j.opts.HotspotWindowDays),
	}
	if repoID != nil {
		fields = append(fields, zap.String("repo_id", repoID.String()))
	}
	j.log.Info("Daily metrics job", fields...)

	var items []schema.WorkItem
	if j.opts.WorkItems != nil {
		var err error
		if items, err = j.opts.WorkItems.WorkItems(ctx); err != nil {
			return summary, fmt.Errorf("failed to load work items: %w", err)
		}
		j.log.Info("Work items ready for compute", zap.Int("count", len(items)))
	}

	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		report, err := j.runDay(ctx, d, repoID, items, computedAt)
		if err != nil {
			return summary, fmt.Errorf("daily metrics for %s: %w", d.Format(contract.DateFormat), err)
		}
		summary.Days = append(summary.Days, report)
	}

	summary.Duration = j.now().Sub(started)
	j.log.Info("Daily metrics job finished", zap.Int("days", len(summary.Days)), zap.Duration("duration", summary.Duration))
	return summary, nil
}

func (j *DailyJob) runDay(ctx context.Context, day time.Time, repoID *uuid.UUID, items []schema.WorkItem, computedAt time.Time) (schema.DailyJobDay, error) {
	start, end := schema.DayWindow(day)
	report := schema.DailyJobDay{Day: start}

	statRows, err := j.backend.LoadCommitStatRows(ctx, start, end, repoID)
	if err != nil {
		return report, fmt.Errorf("failed to load commit stats: %w", err)
	}
	prRows, err := j.backend.LoadPullRequestRows(ctx, start, end, repoID)
	if err != nil {
		return report, fmt.Errorf("failed to load pull requests: %w", err)
	}
	report.StatRowsScanned = len(statRows)
	report.PRRowsScanned = len(prRows)
	j.log.Debug("Loaded source facts", zap.Time("day", start), zap.Int("stat_rows", len(statRows)), zap.Int("pr_rows", len(prRows)))

	result, err := ComputeDailyMetrics(start, statRows, prRows, computedAt, j.opts.CommitMetrics)
	if err != nil {
		return report, err
	}
	if err := j.backend.WriteRepoMetrics(ctx, result.RepoMetrics); err != nil {
		return report, fmt.Errorf("failed to write repo metrics: %w", err)
	}
	if err := j.backend.WriteUserMetrics(ctx, result.UserMetrics); err != nil {
		return report, fmt.Errorf("failed to write user metrics: %w", err)
	}
	if err := j.backend.WriteCommitMetrics(ctx, result.CommitMetrics); err != nil {
		return report, fmt.Errorf("failed to write commit metrics: %w", err)
	}
	report.Repos = len(result.RepoMetrics)
	report.Users = len(result.UserMetrics)
	report.Commits = len(result.CommitMetrics)

	hotspots, err := j.dayHotspots(ctx, start, end, repoID, statRows, computedAt)
	if err != nil {
		return report, err
	}
	if err := j.backend.WriteFileMetrics(ctx, hotspots); err != nil {
		return report, fmt.Errorf("failed to write file metrics: %w", err)
	}
	report.Hotspots = len(hotspots)

	if j.opts.WorkItems != nil {
		wi := ComputeWorkItemMetricsDaily(start, items, computedAt, j.opts.Teams)
		if err := j.backend.WriteWorkItemMetrics(ctx, wi.Groups); err != nil {
			return report, fmt.Errorf("failed to write work item metrics: %w", err)
		}
		if err := j.backend.WriteWorkItemUserMetrics(ctx, wi.Users); err != nil {
			return report, fmt.Errorf("failed to write work item user metrics: %w", err)
		}
		if err := j.backend.WriteWorkItemCycleTimes(ctx, wi.CycleTimes); err != nil {
			return report, fmt.Errorf("failed to write work item cycle times: %w", err)
		}
		report.WorkItemGroups = len(wi.Groups)
		report.WorkItemUsers = len(wi.Users)
		report.WorkItemCycles = len(wi.CycleTimes)
	}

	j.log.Info("Computed derived metrics",
		zap.Time("day", start),
		zap.Int("repos", report.Repos),
		zap.Int("users", report.Users),
		zap.Int("commits", report.Commits),
		zap.Int("hotspots", report.Hotspots),
		zap.Int("work_item_groups", report.WorkItemGroups))
	return report, nil
}

// dayHotspots scores the files of every repository active on the day over the trailing window.
func (j *DailyJob) dayHotspots(ctx context.Context, start, end time.Time, repoID *uuid.UUID, dayRows []schema.CommitStatRow, computedAt time.Time) ([]schema.FileMetricsRecord, error) {
	active := activeRepos(dayRows)
	if len(active) == 0 {
		return nil, nil
	}
	windowStart := start.AddDate(0, 0, -(j.opts.HotspotWindowDays - 1))
	windowRows, err := j.backend.LoadCommitStatRows(ctx, windowStart, end, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load hotspot window: %w", err)
	}

	var out []schema.FileMetricsRecord
	for _, id := range active {
		records, err := ComputeFileHotspots(id, start, windowRows, computedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// Hotspots computes the hotspot ranking of one repository over the windowDays
// ending at day, straight from the fact rows. Nothing is written.
func (j *DailyJob) Hotspots(ctx context.Context, repoID uuid.UUID, day time.Time, windowDays int) ([]schema.FileMetricsRecord, error) {
	if windowDays < 1 {
		windowDays = j.opts.HotspotWindowDays
	}
	start, end := schema.DayWindow(day)
	windowStart := start.AddDate(0, 0, -(windowDays - 1))
	rows, err := j.backend.LoadCommitStatRows(ctx, windowStart, end, &repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit stats: %w", err)
	}
	return ComputeFileHotspots(repoID, start, rows, j.now())
}

func activeRepos(rows []schema.CommitStatRow) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	for _, r := range rows {
		if r.RepoID != uuid.Nil {
			seen[r.RepoID] = struct{}{}
		}
	}
	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
