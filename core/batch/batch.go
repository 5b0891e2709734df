// Package batch syncs many remote repositories into a fact store.
//
// Fetching runs on a bounded pool of workers; every storage write goes through a
// single writer goroutine fed by a bounded channel, so a slow store applies
// backpressure to the fetchers instead of buffering results in memory.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/internal/gitclient"
	"github.com/huangsam/gitpulse/internal/remote"
	"github.com/huangsam/gitpulse/schema"
	"go.uber.org/zap"
)

// Options configures an orchestrator run.
type Options struct {
	MaxConcurrent int
	MaxRepos      int
	MaxCommits    int
	MaxPRs        int
	BatchSize     int
	Blame         schema.BlameMode
	BlameLimit    int
	Since         *time.Time
	PullRequests  bool
	Backfill      bool

	// OnResult is called on the writer goroutine once a result has been handled.
	OnResult func(schema.BatchResult)
}

// OptionsFromConfig maps validated configuration onto orchestrator options.
func OptionsFromConfig(cfg *contract.Config) Options {
	return Options{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxRepos:      cfg.MaxRepos,
		MaxCommits:    cfg.MaxCommits,
		MaxPRs:        cfg.MaxPRs,
		BatchSize:     cfg.BatchSize,
		Blame:         cfg.Blame,
		BlameLimit:    cfg.BlameLimit,
		Since:         cfg.Since,
		PullRequests:  cfg.PullRequests,
		Backfill:      cfg.Backfill,
	}
}

// Orchestrator drives a whole-organization or pattern-matched sync.
type Orchestrator struct {
	connector contract.Connector
	store     contract.FactStore
	gate      contract.Gate
	opts      Options
	log       *zap.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. The gate paces pull request paging
// across all workers and may be nil.
func NewOrchestrator(connector contract.Connector, store contract.FactStore, gate contract.Gate, opts Options, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	opts.MaxConcurrent = max(opts.MaxConcurrent, 1)
	if opts.BatchSize <= 0 {
		opts.BatchSize = contract.DefaultBatchSize
	}
	if opts.Blame == "" {
		opts.Blame = schema.BlameSample
	}
	return &Orchestrator{
		connector: connector,
		store:     store,
		gate:      gate,
		opts:      opts,
		log:       log.With(zap.String("provider", string(connector.Provider()))),
		now:       time.Now,
	}
}

// Run lists the matching repositories and syncs each of them. A listing failure
// aborts the run; per-repository failures are recorded in the summary and logged.
func (o *Orchestrator) Run(ctx context.Context, filter schema.RepoFilter, pattern string) (schema.BatchSummary, error) {
	started := o.now()
	summary := schema.BatchSummary{Provider: o.connector.Provider(), Pattern: pattern}

	repos, err := o.list(ctx, filter, pattern)
	if err != nil {
		return summary, fmt.Errorf("failed to list repositories: %w", err)
	}
	o.log.Info("Batch sync starting",
		zap.Int("repositories", len(repos)),
		zap.String("pattern", pattern),
		zap.Int("max_concurrent", o.opts.MaxConcurrent))

	repoCh := make(chan schema.Repository)
	resultCh := make(chan schema.BatchResult, 2*o.opts.MaxConcurrent)

	// Single writer
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range resultCh {
			result = o.write(ctx, result)
			summary.Results = append(summary.Results, result)
			if o.opts.OnResult != nil {
				o.opts.OnResult(result)
			}
		}
	}()

	var wg sync.WaitGroup
	for range o.opts.MaxConcurrent {
		wg.Go(func() {
			for repo := range repoCh {
				resultCh <- o.fetch(ctx, repo)
			}
		})
	}

feed:
	for _, repo := range repos {
		select {
		case repoCh <- repo:
		case <-ctx.Done():
			break feed
		}
	}
	close(repoCh)
	wg.Wait()
	close(resultCh)
	<-done

	sort.SliceStable(summary.Results, func(i, j int) bool {
		return summary.Results[i].Repository.FullName < summary.Results[j].Repository.FullName
	})
	for _, r := range summary.Results {
		summary.Total++
		if r.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		if r.Stored {
			summary.Stored++
		}
	}
	summary.Duration = o.now().Sub(started)

	o.log.Info("Batch sync complete",
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Int("total", summary.Total),
		zap.Int("stored", summary.Stored),
		zap.Duration("duration", summary.Duration))
	return summary, ctx.Err()
}

func (o *Orchestrator) list(ctx context.Context, filter schema.RepoFilter, pattern string) ([]schema.Repository, error) {
	if pattern != "" {
		return o.connector.ListRepositoriesWithPattern(ctx, filter, pattern, o.opts.MaxRepos)
	}
	return o.connector.ListRepositories(ctx, filter, o.opts.MaxRepos)
}

// fetch gathers everything the writer needs for one repository. Only a stats or
// commit failure fails the repository; pull requests are best effort.
func (o *Orchestrator) fetch(ctx context.Context, repo schema.Repository) schema.BatchResult {
	result := schema.BatchResult{Repository: repo}
	log := o.log.With(zap.String("repo", repo.FullName))

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	stats, err := o.connector.GetRepoStats(ctx, repo.FullName, o.opts.MaxCommits)
	if err != nil {
		result.Error = err.Error()
		log.Warn("Failed to fetch repository stats", zap.Error(err))
		return result
	}
	result.Stats = &stats

	commits, err := o.connector.ListCommits(ctx, repo.FullName, o.opts.Since, o.opts.MaxCommits)
	if err != nil {
		result.Error = err.Error()
		log.Warn("Failed to list commits", zap.Error(err))
		return result
	}
	result.Commits = commits

	if o.opts.PullRequests {
		err := o.connector.WalkPullRequests(ctx, repo.FullName, "all", o.opts.MaxPRs, o.gate, func(page []schema.PullRequest) error {
			result.PullRequests = append(result.PullRequests, page...)
			return nil
		})
		if err != nil {
			log.Warn("Failed to fetch pull requests", zap.Int("fetched", len(result.PullRequests)), zap.Error(err))
		}
	}

	result.Success = true
	log.Info("Processed repository",
		zap.Int("commits", len(result.Commits)),
		zap.Int("pull_requests", len(result.PullRequests)),
		zap.Int("total_commits", stats.TotalCommits))
	return result
}

// write stores one result. It runs on the writer goroutine only.
func (o *Orchestrator) write(ctx context.Context, result schema.BatchResult) schema.BatchResult {
	if !result.Success {
		return result
	}
	repo := result.Repository
	log := o.log.With(zap.String("repo", repo.FullName))
	synced := o.now().UTC()
	provider := o.connector.Provider()
	repoID := schema.RemoteRepoID(provider, repo)

	tags := []string{string(provider)}
	if repo.Language != "" {
		tags = append(tags, repo.Language)
	}
	record := schema.Repo{
		ID:   repoID,
		Repo: repo.FullName,
		Ref:  repo.DefaultBranch,
		Settings: map[string]any{
			"source":          string(provider),
			"provider_id":     repo.ID,
			"url":             repo.URL,
			"default_branch":  repo.DefaultBranch,
			"batch_processed": true,
		},
		Tags:      tags,
		CreatedAt: synced,
	}
	if err := o.store.InsertRepo(ctx, record); err != nil {
		result.Error = fmt.Sprintf("store repository: %v", err)
		log.Error("Failed to store repository", zap.Error(err))
		return result
	}

	if err := insertBatches(ctx, toGitCommits(repoID, result.Commits, synced), o.opts.BatchSize, o.store.InsertGitCommitData); err != nil {
		log.Warn("Failed to store commits", zap.Error(err))
	}
	if err := insertBatches(ctx, toGitPullRequests(repoID, result.PullRequests, synced), o.opts.BatchSize, o.store.InsertGitPullRequests); err != nil {
		log.Warn("Failed to store pull requests", zap.Error(err))
	}
	if result.Stats != nil {
		marker := aggregateStat(repoID, schema.AggregateStatsMarker, result.Stats.Additions, result.Stats.Deletions, synced)
		if err := o.store.InsertGitCommitStats(ctx, []schema.GitCommitStat{marker}); err != nil {
			log.Warn("Failed to store aggregate stats", zap.Error(err))
		}
	}
	result.Stored = true

	if o.opts.Backfill {
		bf := o.backfill(ctx, repoID, result)
		result.Backfill = &bf
	}
	return result
}

// backfill fills in the fact families the store has nothing for yet, so that
// repeated runs only fetch what is missing.
func (o *Orchestrator) backfill(ctx context.Context, repoID uuid.UUID, result schema.BatchResult) schema.BackfillResult {
	var out schema.BackfillResult
	repo := result.Repository
	log := o.log.With(zap.String("repo", repo.FullName), zap.String("step", "backfill"))

	hasFiles, err := o.store.HasAnyGitFiles(ctx, repoID)
	if err != nil {
		log.Warn("Existence probe failed", zap.Error(err))
		return out
	}
	hasStats, err := o.store.HasAnyGitCommitStats(ctx, repoID)
	if err != nil {
		log.Warn("Existence probe failed", zap.Error(err))
		return out
	}
	hasBlame := o.opts.Blame == schema.BlameNone
	if !hasBlame {
		hasBlame, err = o.store.HasAnyGitBlame(ctx, repoID)
		if err != nil {
			log.Warn("Existence probe failed", zap.Error(err))
			return out
		}
	}
	if hasFiles && hasStats && hasBlame {
		return out
	}
	synced := o.now().UTC()

	var paths []string
	if !hasFiles || !hasBlame {
		listed, err := o.connector.ListFiles(ctx, repo.FullName, repo.DefaultBranch)
		if err != nil {
			log.Warn("Failed to list files", zap.Error(err))
		}
		for _, p := range listed {
			if !contract.IsSkippable(p) {
				paths = append(paths, p)
			}
		}
	}

	if !hasFiles && len(paths) > 0 {
		files := make([]schema.GitFile, 0, len(paths))
		for _, p := range paths {
			files = append(files, schema.GitFile{RepoID: repoID, Path: p, LastSynced: synced})
		}
		if err := insertBatches(ctx, files, o.opts.BatchSize, o.store.InsertGitFileData); err != nil {
			log.Warn("Failed to store files", zap.Error(err))
		} else {
			out.Files = len(files)
		}
	}

	if !hasStats {
		stats := o.fetchCommitStats(ctx, repoID, repo.FullName, result.Commits, synced, &out)
		if err := insertBatches(ctx, stats, o.opts.BatchSize, o.store.InsertGitCommitStats); err != nil {
			log.Warn("Failed to store commit stats", zap.Error(err))
		} else {
			out.CommitStats = len(stats)
		}
	}

	if !hasBlame {
		var lines []schema.GitBlame
		for _, p := range gitclient.SelectBlameFiles(paths, o.opts.Blame, o.opts.BlameLimit) {
			fetchedAt := o.now()
			blame, err := o.connector.GetFileBlame(ctx, repo.FullName, p, repo.DefaultBranch)
			if err != nil {
				out.FailedBlame++
				log.Debug("Failed to fetch blame", zap.String("path", p), zap.Error(err))
				continue
			}
			blame.Path = p
			lines = append(lines, blameLines(repoID, blame, fetchedAt, synced)...)
		}
		if err := insertBatches(ctx, lines, o.opts.BatchSize, o.store.InsertBlameData); err != nil {
			log.Warn("Failed to store blame", zap.Error(err))
		} else {
			out.BlameLines = len(lines)
		}
	}

	log.Info("Backfill finished",
		zap.Int("files", out.Files),
		zap.Int("commit_stats", out.CommitStats),
		zap.Int("blame_lines", out.BlameLines),
		zap.Int("failed_commits", out.FailedCommit),
		zap.Int("failed_blame", out.FailedBlame))
	return out
}

// fetchCommitStats collects per-file stats of the already listed commits. A commit
// whose provider reports totals but no file list gets a per-commit marker row, and
// so does a commit the provider refuses for good, so later runs do not ask again.
func (o *Orchestrator) fetchCommitStats(ctx context.Context, repoID uuid.UUID, fullName string, commits []schema.RemoteCommit, synced time.Time, out *schema.BackfillResult) []schema.GitCommitStat {
	var rows []schema.GitCommitStat
	for _, c := range commits {
		if ctx.Err() != nil {
			break
		}
		stats, err := o.connector.GetCommitStats(ctx, fullName, c.SHA)
		if err != nil {
			out.FailedCommit++
			o.log.Debug("Failed to fetch commit stats", zap.String("sha", c.SHA), zap.Error(err))
			if !remote.IsRetryable(err) && ctx.Err() == nil {
				rows = append(rows, aggregateStat(repoID, c.SHA, 0, 0, synced))
			}
			continue
		}
		if len(stats.Files) == 0 {
			rows = append(rows, aggregateStat(repoID, c.SHA, stats.Additions, stats.Deletions, synced))
			continue
		}
		for _, f := range stats.Files {
			if contract.IsSkippable(f.Path) {
				continue
			}
			rows = append(rows, schema.GitCommitStat{
				RepoID:      repoID,
				CommitHash:  c.SHA,
				FilePath:    f.Path,
				Additions:   f.Additions,
				Deletions:   f.Deletions,
				OldFileMode: unknownMode,
				NewFileMode: unknownMode,
				LastSynced:  synced,
			})
		}
	}
	return rows
}

// insertBatches writes items in slices of at most size.
func insertBatches[T any](ctx context.Context, items []T, size int, insert func(context.Context, []T) error) error {
	for start := 0; start < len(items); start += size {
		if err := insert(ctx, items[start:min(start+size, len(items))]); err != nil {
			return err
		}
	}
	return nil
}
