package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/internal/parquet"
	"github.com/huangsam/gitpulse/schema"
	"go.uber.org/zap"
)

// ParquetStore is the append-only columnar store. Every write adds an immutable part
// file; reads keep the newest version of each natural key.
type ParquetStore struct {
	root string
	mu   sync.Mutex
	seq  uint64
	log  *zap.Logger
	now  func() time.Time
}

var (
	_ contract.FactStore      = &ParquetStore{} // Compile-time check
	_ contract.MetricsBackend = &ParquetStore{} // Compile-time check
)

// OpenParquet opens the columnar store rooted at the directory named by conn.
func OpenParquet(conn string, log *zap.Logger) (*ParquetStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	root := contract.StripScheme(conn)
	if root == "" {
		return nil, fmt.Errorf("parquet connection string has no directory. Use parquet:///abs/dir")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parquet root %s: %w. Check that the directory is writable", root, err)
	}
	log.Debug("Columnar store ready", zap.String("root", root))
	return &ParquetStore{root: root, log: log, now: time.Now}, nil
}

// Backend returns schema.ParquetBackend.
func (s *ParquetStore) Backend() schema.Backend { return schema.ParquetBackend }

// Close is a no-op; part files are closed as they are written.
func (s *ParquetStore) Close() error { return nil }

// partPath returns a fresh part file path for table. Names sort in write order.
func (s *ParquetStore) partPath(table string) string {
	s.seq++
	name := fmt.Sprintf("part-%020d-%06d%s", s.now().UnixNano(), s.seq, parquet.PartExt)
	return filepath.Join(s.root, table, name)
}

func appendPart[T any](s *ParquetStore, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.partPath(table)
	if err := parquet.WritePart(path, rows); err != nil {
		return fmt.Errorf("failed to append to %s: %w", table, err)
	}
	s.log.Debug("Appended part", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

func readLatest[T parquet.Versioned](s *ParquetStore, table string) ([]T, error) {
	rows, err := parquet.ReadParts[T](filepath.Join(s.root, table))
	if err != nil {
		return nil, err
	}
	return parquet.Latest(rows), nil
}

// InsertRepo appends a new version of the repository, preserving its first creation time.
func (s *ParquetStore) InsertRepo(_ context.Context, repo schema.Repo) error {
	existing, err := readLatest[parquet.RepoRow](s, reposTable)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	createdAt := repo.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	for _, r := range existing {
		if r.ID == repo.ID.String() {
			createdAt = r.CreatedAt
			break
		}
	}
	var settings *string
	if len(repo.Settings) > 0 {
		raw, err := json.Marshal(repo.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal repo settings: %w", err)
		}
		str := string(raw)
		settings = &str
	}
	row := parquet.RepoRow{
		ID:         repo.ID.String(),
		Repo:       repo.Repo,
		Ref:        repo.Ref,
		Settings:   settings,
		Tags:       repo.Tags,
		CreatedAt:  createdAt.UTC(),
		LastSynced: now,
	}
	return appendPart(s, reposTable, []parquet.RepoRow{row})
}

// InsertGitFileData appends file snapshots.
func (s *ParquetStore) InsertGitFileData(_ context.Context, files []schema.GitFile) error {
	rows := make([]parquet.FileRow, len(files))
	for i, f := range files {
		rows[i] = parquet.FromGitFile(f, s.synced(f.LastSynced))
	}
	return appendPart(s, gitFilesTable, rows)
}

// InsertGitCommitData appends commits.
func (s *ParquetStore) InsertGitCommitData(_ context.Context, commits []schema.GitCommit) error {
	rows := make([]parquet.CommitRow, len(commits))
	for i, c := range commits {
		rows[i] = parquet.FromGitCommit(c, s.synced(c.LastSynced))
	}
	return appendPart(s, gitCommitsTable, rows)
}

// InsertGitCommitStats appends per-file commit deltas.
func (s *ParquetStore) InsertGitCommitStats(_ context.Context, stats []schema.GitCommitStat) error {
	rows := make([]parquet.CommitStatRow, len(stats))
	for i, st := range stats {
		rows[i] = parquet.FromGitCommitStat(st, s.synced(st.LastSynced))
	}
	return appendPart(s, gitCommitStatTable, rows)
}

// InsertBlameData appends blame lines.
func (s *ParquetStore) InsertBlameData(_ context.Context, lines []schema.GitBlame) error {
	rows := make([]parquet.BlameRow, len(lines))
	for i, b := range lines {
		rows[i] = parquet.FromGitBlame(b, s.synced(b.LastSynced))
	}
	return appendPart(s, gitBlameTable, rows)
}

// InsertGitPullRequests appends pull requests.
func (s *ParquetStore) InsertGitPullRequests(_ context.Context, prs []schema.GitPullRequest) error {
	rows := make([]parquet.PullRequestRow, len(prs))
	for i, p := range prs {
		rows[i] = parquet.FromGitPullRequest(p, s.synced(p.LastSynced))
	}
	return appendPart(s, gitPRTable, rows)
}

// HasAnyGitFiles scans file parts for the repo.
func (s *ParquetStore) HasAnyGitFiles(_ context.Context, repoID uuid.UUID) (bool, error) {
	rows, err := parquet.ReadParts[parquet.FileRow](filepath.Join(s.root, gitFilesTable))
	if err != nil {
		return false, err
	}
	id := repoID.String()
	for _, r := range rows {
		if r.RepoID == id {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyGitCommitStats scans stat parts for a per-commit row of the repo.
func (s *ParquetStore) HasAnyGitCommitStats(_ context.Context, repoID uuid.UUID) (bool, error) {
	rows, err := parquet.ReadParts[parquet.CommitStatRow](filepath.Join(s.root, gitCommitStatTable))
	if err != nil {
		return false, err
	}
	id := repoID.String()
	for _, r := range rows {
		if r.RepoID == id && r.CommitHash != schema.AggregateStatsMarker {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyGitBlame scans blame parts for the repo.
func (s *ParquetStore) HasAnyGitBlame(_ context.Context, repoID uuid.UUID) (bool, error) {
	rows, err := parquet.ReadParts[parquet.BlameRow](filepath.Join(s.root, gitBlameTable))
	if err != nil {
		return false, err
	}
	id := repoID.String()
	for _, r := range rows {
		if r.RepoID == id {
			return true, nil
		}
	}
	return false, nil
}

func tableStatus[T parquet.Versioned](s *ParquetStore, table string) (schema.TableStatus, error) {
	rows, err := readLatest[T](s, table)
	if err != nil {
		return schema.TableStatus{}, err
	}
	st := schema.TableStatus{Name: table, Rows: int64(len(rows))}
	for _, r := range rows {
		if r.Version().After(st.LastSynced) {
			st.LastSynced = r.Version()
		}
	}
	return st, nil
}

// Status reports the number of live keys and the newest version per fact table.
func (s *ParquetStore) Status(_ context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:   schema.ParquetBackend,
		Family:    schema.AppendOnlyFamily,
		Connected: true,
	}
	probes := []func() (schema.TableStatus, error){
		func() (schema.TableStatus, error) { return tableStatus[parquet.RepoRow](s, reposTable) },
		func() (schema.TableStatus, error) { return tableStatus[parquet.FileRow](s, gitFilesTable) },
		func() (schema.TableStatus, error) { return tableStatus[parquet.CommitRow](s, gitCommitsTable) },
		func() (schema.TableStatus, error) { return tableStatus[parquet.CommitStatRow](s, gitCommitStatTable) },
		func() (schema.TableStatus, error) { return tableStatus[parquet.BlameRow](s, gitBlameTable) },
		func() (schema.TableStatus, error) { return tableStatus[parquet.PullRequestRow](s, gitPRTable) },
	}
	for _, probe := range probes {
		st, err := probe()
		if err != nil {
			return status, fmt.Errorf("failed to get status: %w", err)
		}
		status.Tables = append(status.Tables, st)
	}
	return status, nil
}

// LoadCommitStatRows joins the newest commits in [start, end) with their newest stats.
func (s *ParquetStore) LoadCommitStatRows(_ context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.CommitStatRow, error) {
	commits, err := readLatest[parquet.CommitRow](s, gitCommitsTable)
	if err != nil {
		return nil, err
	}
	stats, err := readLatest[parquet.CommitStatRow](s, gitCommitStatTable)
	if err != nil {
		return nil, err
	}
	byCommit := make(map[string][]parquet.CommitStatRow)
	for _, st := range stats {
		k := st.RepoID + ":" + st.CommitHash
		byCommit[k] = append(byCommit[k], st)
	}

	var rows []schema.CommitStatRow
	for _, c := range commits {
		if repoID != nil && c.RepoID != repoID.String() {
			continue
		}
		if c.CommitterWhen.Before(start) || !c.CommitterWhen.Before(end) {
			continue
		}
		base := schema.CommitStatRow{
			RepoID:        parquet.ParseID(c.RepoID),
			CommitHash:    c.Hash,
			AuthorEmail:   c.AuthorEmail,
			AuthorName:    c.AuthorName,
			CommitterWhen: c.CommitterWhen.UTC(),
		}
		fileStats := byCommit[c.Key()]
		if len(fileStats) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, st := range fileStats {
			row := base
			row.FilePath = st.FilePath
			row.Additions = int(st.Additions)
			row.Deletions = int(st.Deletions)
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.RepoID != b.RepoID {
			return a.RepoID.String() < b.RepoID.String()
		}
		if a.CommitHash != b.CommitHash {
			return a.CommitHash < b.CommitHash
		}
		return a.FilePath < b.FilePath
	})
	return rows, nil
}

// LoadPullRequestRows returns the newest pull requests created or merged in [start, end).
func (s *ParquetStore) LoadPullRequestRows(_ context.Context, start, end time.Time, repoID *uuid.UUID) ([]schema.PullRequestRow, error) {
	prs, err := readLatest[parquet.PullRequestRow](s, gitPRTable)
	if err != nil {
		return nil, err
	}
	inWindow := func(t time.Time) bool { return !t.Before(start) && t.Before(end) }

	var rows []schema.PullRequestRow
	for _, p := range prs {
		if repoID != nil && p.RepoID != repoID.String() {
			continue
		}
		merged := p.MergedAt != nil && inWindow(*p.MergedAt)
		if !inWindow(p.CreatedAt) && !merged {
			continue
		}
		rows = append(rows, p.ToRow())
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RepoID != rows[j].RepoID {
			return rows[i].RepoID.String() < rows[j].RepoID.String()
		}
		return rows[i].Number < rows[j].Number
	})
	return rows, nil
}

// WriteRepoMetrics appends repo rollups.
func (s *ParquetStore) WriteRepoMetrics(_ context.Context, rows []schema.RepoMetricsDailyRecord) error {
	out := make([]parquet.RepoMetricsRow, len(rows))
	for i, r := range rows {
		out[i] = parquet.FromRepoMetrics(r, s.synced(r.ComputedAt))
	}
	return appendPart(s, repoMetricsTable, out)
}

// WriteUserMetrics appends identity rollups.
func (s *ParquetStore) WriteUserMetrics(_ context.Context, rows []schema.UserMetricsDailyRecord) error {
	out := make([]parquet.UserMetricsRow, len(rows))
	for i, r := range rows {
		out[i] = parquet.FromUserMetrics(r, s.synced(r.ComputedAt))
	}
	return appendPart(s, userMetricsTable, out)
}

// WriteCommitMetrics appends per-commit records.
func (s *ParquetStore) WriteCommitMetrics(_ context.Context, rows []schema.CommitMetricsRecord) error {
	out := make([]parquet.CommitMetricsRow, len(rows))
	for i, r := range rows {
		out[i] = parquet.FromCommitMetrics(r, s.synced(r.ComputedAt))
	}
	return appendPart(s, commitMetricsTable, out)
}

// WriteFileMetrics appends hotspot snapshots.
func (s *ParquetStore) WriteFileMetrics(_ context.Context, rows []schema.FileMetricsRecord) error {
	out := make([]parquet.FileMetricsRow, len(rows))
	for i, r := range rows {
		out[i] = parquet.FromFileMetrics(r, s.synced(r.ComputedAt))
	}
	return appendPart(s, fileMetricsTable, out)
}

// WriteWorkItemMetrics appends team flow records.
func (s *ParquetStore) WriteWorkItemMetrics(_ context.Context, rows []schema.WorkItemMetricsDailyRecord) error {
	out := make([]parquet.WorkItemMetricsRow, len(rows))
	for i, r := range rows {
		out[i] = parquet.FromWorkItemMetrics(r, s.synced(r.ComputedAt))
	}
	return appendPart(s, workItemMetricsTable, out)
}

// WriteWorkItemUserMetrics appends assignee flow records.
func (s *ParquetStore) WriteWorkItemUserMetrics(_ context.Context, rows []schema.WorkItemUserMetricsDailyRecord) error {
	out := make([]parquet.WorkItemUserMetricsRow, len(rows))
	for i, r := range rows {
		out[i] = parquet.FromWorkItemUserMetrics(r, s.synced(r.ComputedAt))
	}
	return appendPart(s, workItemUserMetricsTable, out)
}

// WriteWorkItemCycleTimes appends completed item records.
func (s *ParquetStore) WriteWorkItemCycleTimes(_ context.Context, rows []schema.WorkItemCycleTimeRecord) error {
	out := make([]parquet.CycleTimeRow, len(rows))
	for i, r := range rows {
		out[i] = parquet.FromCycleTime(r, s.synced(r.ComputedAt))
	}
	return appendPart(s, workItemCycleTimesTable, out)
}

func (s *ParquetStore) synced(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}
